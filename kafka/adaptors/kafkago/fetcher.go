// Package kafkago reads message batches with segmentio/kafka-go.
package kafkago

import (
	"context"
	"fmt"
	"time"

	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/tryfix/log"
)

type Config struct {
	BootstrapServers []string
	MaxWait          time.Duration
	MinBytes         int
	MaxBytes         int
	Logger           log.Logger
}

func NewConfig() *Config {
	return &Config{
		MaxWait:  2 * time.Second,
		MinBytes: 1,
		MaxBytes: 10e6,
		Logger:   log.NewNoopLogger(),
	}
}

type fetcher struct {
	conf   *Config
	logger log.Logger
}

// NewFetcher creates a kafka.MessageFetcher. Each fetch opens its own partition reader.
func NewFetcher(conf *Config) (kafka.MessageFetcher, error) {
	if len(conf.BootstrapServers) < 1 {
		return nil, errors.New(`[BootstrapServers] cannot be empty`)
	}

	return &fetcher{
		conf:   conf,
		logger: conf.Logger.NewLog(log.Prefixed(`kafka-go-fetcher`)),
	}, nil
}

func (f *fetcher) offsets(ctx context.Context, req kafka.FetchRequest) (first, last int64, err error) {
	conn, err := kafkago.DialLeader(ctx, `tcp`, f.conf.BootstrapServers[0], req.Topic, int(req.Partition))
	if err != nil {
		return 0, 0, errors.Wrapf(err, `failed to dial leader of %s[%d]`, req.Topic, req.Partition)
	}
	defer conn.Close()

	first, last, err = conn.ReadOffsets()
	if err != nil {
		return 0, 0, errors.Wrapf(err, `cannot read offsets of %s[%d]`, req.Topic, req.Partition)
	}

	return first, last, nil
}

func (f *fetcher) FetchMessages(ctx context.Context, req kafka.FetchRequest) ([]topic.Message, error) {
	first, last, err := f.offsets(ctx, req)
	if err != nil {
		return nil, err
	}

	start, ok := startOffset(req, first, last)
	if !ok {
		return nil, nil
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   f.conf.BootstrapServers,
		Topic:     req.Topic,
		Partition: int(req.Partition),
		MinBytes:  f.conf.MinBytes,
		MaxBytes:  f.conf.MaxBytes,
		MaxWait:   f.conf.MaxWait,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			f.logger.Warn(fmt.Sprintf(`reader close failed %s`, err))
		}
	}()

	if err := reader.SetOffset(start); err != nil {
		return nil, errors.Wrapf(err, `cannot seek %s`, req)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.conf.MaxWait)
	defer cancel()

	var messages []topic.Message
	for len(messages) < req.Limit {
		msg, err := reader.ReadMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				f.logger.Debug(fmt.Sprintf(`fetch %s timed out with %d messages`, req, len(messages)))
				return messages, nil
			}
			return messages, errors.Wrapf(err, `fetch %s failed`, req)
		}

		messages = append(messages, toMessage(msg))
		if msg.Offset >= last-1 {
			break
		}
	}

	return messages, nil
}

// startOffset resolves the first offset to read from the partition bounds [first, last). It
// reports false when nothing can be read.
func startOffset(req kafka.FetchRequest, first, last int64) (int64, bool) {
	var start int64
	switch req.Offset {
	case kafka.Earliest:
		start = first
	case kafka.Latest:
		start = last - int64(req.Limit)
	default:
		start = int64(req.Offset)
	}
	if start < first {
		start = first
	}

	if start >= last || req.Limit < 1 {
		return 0, false
	}

	return start, true
}

func toMessage(msg kafkago.Message) topic.Message {
	headers := make(kafka.RecordHeaders, 0, len(msg.Headers))
	for _, h := range msg.Headers {
		headers = append(headers, kafka.RecordHeader{Key: []byte(h.Key), Value: h.Value})
	}

	m := topic.Message{
		Partition:     int32(msg.Partition),
		Offset:        msg.Offset,
		TimestampType: topic.TimestampNone,
		Key:           string(msg.Key),
		Headers:       kafka.HeadersToMap(headers),
		Content:       string(msg.Value),
	}

	if !msg.Time.IsZero() {
		m.Timestamp = msg.Time.UnixMilli()
		m.TimestampType = topic.TimestampCreateTime
	}

	return m
}

func (f *fetcher) Close() error {
	return nil
}
