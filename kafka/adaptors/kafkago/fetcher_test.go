package kafkago

import (
	"testing"
	"time"

	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/topic"
	kafkago "github.com/segmentio/kafka-go"
)

func TestStartOffset(t *testing.T) {
	tests := []struct {
		name   string
		req    kafka.FetchRequest
		first  int64
		last   int64
		start  int64
		readOK bool
	}{
		{`earliest`, kafka.FetchRequest{Offset: kafka.Earliest, Limit: 5}, 10, 100, 10, true},
		{`latest`, kafka.FetchRequest{Offset: kafka.Latest, Limit: 5}, 10, 100, 95, true},
		{`latest over short partition`, kafka.FetchRequest{Offset: kafka.Latest, Limit: 50}, 10, 20, 10, true},
		{`explicit`, kafka.FetchRequest{Offset: 42, Limit: 5}, 10, 100, 42, true},
		{`explicit before first`, kafka.FetchRequest{Offset: 3, Limit: 5}, 10, 100, 10, true},
		{`explicit at end`, kafka.FetchRequest{Offset: 100, Limit: 5}, 10, 100, 0, false},
		{`empty partition`, kafka.FetchRequest{Offset: kafka.Earliest, Limit: 5}, 7, 7, 0, false},
		{`no limit`, kafka.FetchRequest{Offset: kafka.Earliest}, 0, 100, 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			start, ok := startOffset(test.req, test.first, test.last)
			if ok != test.readOK || start != test.start {
				t.Errorf(`want (%d, %v) have (%d, %v)`, test.start, test.readOK, start, ok)
			}
		})
	}
}

func TestToMessage(t *testing.T) {
	ts := time.Unix(1600000000, 0)
	m := toMessage(kafkago.Message{
		Partition: 3,
		Offset:    7,
		Key:       []byte(`k`),
		Value:     []byte(`v`),
		Time:      ts,
		Headers: []kafkago.Header{
			{Key: `trace`, Value: []byte(`a`)},
			{Key: `trace`, Value: []byte(`b`)},
		},
	})

	if m.Partition != 3 || m.Offset != 7 || m.Key != `k` || m.Content != `v` {
		t.Errorf(`unexpected message %+v`, m)
	}

	if m.Headers[`trace`] != `b` {
		t.Errorf(`want last header value have %s`, m.Headers[`trace`])
	}

	if m.Timestamp != ts.UnixMilli() || m.TimestampType != topic.TimestampCreateTime {
		t.Errorf(`unexpected timestamp %d %s`, m.Timestamp, m.TimestampType)
	}

	if m := toMessage(kafkago.Message{}); m.TimestampType != topic.TimestampNone || m.Timestamp != 0 {
		t.Errorf(`unexpected timestamp %d %s`, m.Timestamp, m.TimestampType)
	}
}

func TestNewFetcher_Requires_Brokers(t *testing.T) {
	if _, err := NewFetcher(NewConfig()); err == nil {
		t.Error(`expected missing brokers error`)
	}

	if _, err := NewFetcher(&Config{BootstrapServers: []string{`localhost:9092`}, Logger: NewConfig().Logger}); err != nil {
		t.Error(err)
	}
}
