package sarama

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type FetcherConfig struct {
	BootstrapServers []string
	// MaxWait bounds how long a fetch waits for the next message before returning what it has.
	MaxWait         time.Duration
	Sarama          *sarama.Config
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewFetcherConfig() *FetcherConfig {
	conf := &FetcherConfig{
		MaxWait:         2 * time.Second,
		Sarama:          sarama.NewConfig(),
		Logger:          log.NewNoopLogger(),
		MetricsReporter: metrics.NoopReporter(),
	}
	conf.Sarama.Version = sarama.V2_4_0_0
	conf.Sarama.Consumer.Return.Errors = true

	return conf
}

type fetcher struct {
	client   sarama.Client
	consumer sarama.Consumer
	maxWait  time.Duration
	logger   log.Logger
	metrics  struct {
		fetchLatency metrics.Observer
		fetched      metrics.Counter
	}
}

// NewFetcher creates a kafka.MessageFetcher backed by a sarama consumer.
func NewFetcher(conf *FetcherConfig) (kafka.MessageFetcher, error) {
	if len(conf.BootstrapServers) < 1 {
		return nil, errors.New(`[BootstrapServers] cannot be empty`)
	}

	client, err := sarama.NewClient(conf.BootstrapServers, conf.Sarama)
	if err != nil {
		return nil, errors.Wrap(err, `client failed`)
	}

	con, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return nil, errors.Wrap(err, `new consumer failed`)
	}

	f := &fetcher{
		client:   client,
		consumer: con,
		maxWait:  conf.MaxWait,
		logger:   conf.Logger.NewLog(log.Prefixed(`message-fetcher`)),
	}

	labels := []string{`topic`, `partition`}
	f.metrics.fetchLatency = conf.MetricsReporter.Observer(metrics.MetricConf{
		Path:   `ktopics_fetch_latency_microseconds`,
		Labels: labels,
	})
	f.metrics.fetched = conf.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `ktopics_fetched_messages_total`,
		Labels: labels,
	})

	return f, nil
}

func (f *fetcher) bounds(req kafka.FetchRequest) (start, end int64, err error) {
	oldest, err := f.client.GetOffset(req.Topic, req.Partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, errors.Wrapf(err, `cannot get oldest offset for %s[%d]`, req.Topic, req.Partition)
	}

	newest, err := f.client.GetOffset(req.Topic, req.Partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, errors.Wrapf(err, `cannot get latest offset for %s[%d]`, req.Topic, req.Partition)
	}

	switch req.Offset {
	case kafka.Earliest:
		start = oldest
	case kafka.Latest:
		start = newest - int64(req.Limit)
	default:
		start = int64(req.Offset)
	}

	if start < oldest {
		start = oldest
	}

	return start, newest, nil
}

func (f *fetcher) FetchMessages(ctx context.Context, req kafka.FetchRequest) ([]topic.Message, error) {
	defer func(begin time.Time) {
		f.metrics.fetchLatency.Observe(float64(time.Since(begin).Microseconds()), map[string]string{
			`topic`:     req.Topic,
			`partition`: fmt.Sprint(req.Partition),
		})
	}(time.Now())

	start, end, err := f.bounds(req)
	if err != nil {
		return nil, err
	}

	// partition is empty or start is past the end
	if start >= end || req.Limit < 1 {
		return nil, nil
	}

	pc, err := f.consumer.ConsumePartition(req.Topic, req.Partition, start)
	if err != nil {
		return nil, errors.Wrapf(err, `cannot initiate partition consumer for %s`, req)
	}
	defer func() {
		if err := pc.Close(); err != nil {
			f.logger.Warn(fmt.Sprintf(`partition consumer close failed %s`, err))
		}
	}()

	var messages []topic.Message
	timer := time.NewTimer(f.maxWait)
	defer timer.Stop()

	for len(messages) < req.Limit {
		select {
		case <-ctx.Done():
			return messages, ctx.Err()
		case <-timer.C:
			f.logger.Debug(fmt.Sprintf(`fetch %s timed out with %d messages`, req, len(messages)))
			return messages, nil
		case err := <-pc.Errors():
			return messages, errors.Wrapf(err, `fetch %s failed`, req)
		case msg := <-pc.Messages():
			messages = append(messages, toMessage(msg))
			f.metrics.fetched.Count(1, map[string]string{
				`topic`:     req.Topic,
				`partition`: fmt.Sprint(req.Partition),
			})
			if msg.Offset >= end-1 {
				return messages, nil
			}
		}
	}

	return messages, nil
}

func toMessage(msg *sarama.ConsumerMessage) topic.Message {
	headers := make(kafka.RecordHeaders, 0, len(msg.Headers))
	for _, h := range msg.Headers {
		headers = append(headers, kafka.RecordHeader{Key: h.Key, Value: h.Value})
	}

	m := topic.Message{
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		TimestampType: topic.TimestampNone,
		Key:           string(msg.Key),
		Headers:       kafka.HeadersToMap(headers),
		Content:       string(msg.Value),
	}

	if !msg.Timestamp.IsZero() {
		m.Timestamp = msg.Timestamp.UnixMilli()
		// sarama does not expose the batch timestamp type
		m.TimestampType = topic.TimestampCreateTime
	}

	return m
}

func (f *fetcher) Close() error {
	if err := f.consumer.Close(); err != nil {
		return err
	}

	return f.client.Close()
}
