package kafka

import (
	"context"
	"fmt"

	"github.com/gmbyapa/ktopics/topic"
)

type Offset int64

const (
	Earliest Offset = -2
	Latest   Offset = -1
)

func (o Offset) String() string {
	switch o {
	case Earliest:
		return `Earliest`
	case Latest:
		return `Latest`
	default:
		return fmt.Sprint(int64(o))
	}
}

// FetchRequest asks for at most Limit messages of one partition starting at Offset.
type FetchRequest struct {
	Topic     string
	Partition int32
	Offset    Offset
	Limit     int
}

func (r FetchRequest) String() string {
	return fmt.Sprintf(`%s[%d]@%s(limit %d)`, r.Topic, r.Partition, r.Offset, r.Limit)
}

// MessageFetcher reads batches of messages for display.
type MessageFetcher interface {
	// FetchMessages returns the messages in offset order. Fewer than Limit messages are
	// returned when the partition end is reached.
	FetchMessages(ctx context.Context, req FetchRequest) ([]topic.Message, error)
	Close() error
}

// HeadersToMap converts record headers to the string form used by topic.Message. A header
// repeated on a record keeps its last value.
func HeadersToMap(headers RecordHeaders) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[string(h.Key)] = string(h.Value)
	}

	return m
}
