/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package librd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	librdKafka "github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
	"github.com/tryfix/log"
)

type adminOptions struct {
	Timeout time.Duration
	Logger  log.Logger
	Librd   librdKafka.ConfigMap
}

func (opts *adminOptions) apply(options ...AdminOption) {
	opts.Logger = log.NewNoopLogger()
	opts.Timeout = 10 * time.Second
	opts.Librd = librdKafka.ConfigMap{}
	for _, opt := range options {
		opt(opts)
	}
}

type AdminOption func(*adminOptions)

func WithLogger(logger log.Logger) AdminOption {
	return func(options *adminOptions) {
		options.Logger = logger
	}
}

func WithTimeout(duration time.Duration) AdminOption {
	return func(options *adminOptions) {
		options.Timeout = duration
	}
}

// WithConfig sets additional librdkafka properties (eg: security settings).
func WithConfig(key string, val librdKafka.ConfigValue) AdminOption {
	return func(options *adminOptions) {
		options.Librd[key] = val
	}
}

type kAdmin struct {
	admin   *librdKafka.AdminClient
	logger  log.Logger
	timeout time.Duration
}

func NewAdmin(bootstrapServer []string, options ...AdminOption) (*kAdmin, error) {
	opts := new(adminOptions)
	opts.apply(options...)
	config := librdKafka.ConfigMap{
		`bootstrap.servers`: strings.Join(bootstrapServer, `,`),
	}
	for key, val := range opts.Librd {
		config[key] = val
	}

	admin, err := librdKafka.NewAdminClient(&config)
	if err != nil {
		return nil, errors.Wrap(err, `admin client failed`)
	}

	return &kAdmin{
		admin:   admin,
		logger:  opts.Logger.NewLog(log.Prefixed(`kafka-admin`)),
		timeout: opts.Timeout,
	}, nil
}

func (a *kAdmin) ListTopics(_ context.Context) ([]topic.RawTopic, error) {
	topicMeta, err := a.admin.GetMetadata(nil, true, int(a.timeout.Milliseconds()))
	if err != nil {
		return nil, errors.Wrap(err, `cannot get metadata`)
	}

	var names []string
	for name := range topicMeta.Topics {
		names = append(names, name)
	}
	sort.Strings(names)

	topics := make([]topic.RawTopic, 0, len(names))
	for _, name := range names {
		meta := topicMeta.Topics[name]
		if meta.Error.Code() != librdKafka.ErrNoError {
			a.logger.Warn(fmt.Sprintf(`topic [%s] metadata error %s, skipped`, name, meta.Error))
			continue
		}
		topics = append(topics, rawTopic(meta))
	}

	return topics, nil
}

func rawTopic(meta librdKafka.TopicMetadata) topic.RawTopic {
	raw := topic.RawTopic{
		Name: meta.Topic,
		// librdkafka metadata has no internal flag, internal topics are prefixed with __
		Internal:   strings.HasPrefix(meta.Topic, `__`),
		Partitions: make([]topic.RawPartition, 0, len(meta.Partitions)),
	}

	pts := append([]librdKafka.PartitionMetadata(nil), meta.Partitions...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })

	for _, pt := range pts {
		rp := topic.RawPartition{
			Partition: pt.ID,
			Leader:    pt.Leader,
		}
		for _, broker := range pt.Replicas {
			rp.Replicas = append(rp.Replicas, topic.RawReplica{
				Broker: broker,
				Leader: broker == pt.Leader,
			})
		}
		raw.Partitions = append(raw.Partitions, rp)
	}

	return raw
}

func (a *kAdmin) DescribeConfigs(ctx context.Context, name string) ([]topic.Config, error) {
	results, err := a.admin.DescribeConfigs(ctx, []librdKafka.ConfigResource{{
		Type: librdKafka.ResourceTopic,
		Name: name,
	}}, librdKafka.SetAdminRequestTimeout(a.timeout))
	if err != nil {
		return nil, errors.Wrapf(err, `DescribeConfig failed for topic %s`, name)
	}

	var configs []topic.Config
	for _, res := range results {
		if res.Error.Code() != librdKafka.ErrNoError {
			return nil, errors.Wrapf(res.Error, `DescribeConfig error response for topic %s`, name)
		}

		var keys []string
		for key := range res.Config {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			entry := res.Config[key]
			configs = append(configs, topic.Config{
				Name:         entry.Name,
				Value:        entry.Value,
				DefaultValue: defaultValue(entry),
			})
		}
	}

	return configs, nil
}

// synonymPrecedence orders the config sources a broker falls back to when a topic override is
// removed, most specific first.
var synonymPrecedence = []librdKafka.ConfigSource{
	librdKafka.ConfigSourceDynamicBroker,
	librdKafka.ConfigSourceDynamicDefaultBroker,
	librdKafka.ConfigSourceStaticBroker,
	librdKafka.ConfigSourceDefault,
}

func defaultValue(entry librdKafka.ConfigEntryResult) string {
	if entry.Source == librdKafka.ConfigSourceDefault {
		return entry.Value
	}

	names := make([]string, 0, len(entry.Synonyms))
	for name := range entry.Synonyms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, source := range synonymPrecedence {
		for _, name := range names {
			if syn := entry.Synonyms[name]; syn.Source == source {
				return syn.Value
			}
		}
	}

	v, _ := topic.KnownDefault(entry.Name)
	return v
}

func (a *kAdmin) CreateTopic(ctx context.Context, data form.FormattedData) error {
	result, err := a.admin.CreateTopics(ctx, []librdKafka.TopicSpecification{{
		Topic:             data.Name,
		NumPartitions:     int(data.Partitions),
		ReplicationFactor: int(data.ReplicationFactor),
		Config:            data.TopicConfigs(),
	}}, librdKafka.SetAdminOperationTimeout(a.timeout))
	if err != nil {
		return errors.Wrapf(err, `could not create topic [%s]`, data.Name)
	}

	for _, res := range result {
		if res.Error.Code() != librdKafka.ErrNoError {
			return errors.Wrapf(res.Error, `topic create error response for [%s]`, res.Topic)
		}
	}

	a.logger.Info(fmt.Sprintf(`topic [%s] created`, data.Name))

	return nil
}

func (a *kAdmin) UpdateTopicConfigs(ctx context.Context, data form.FormattedData) error {
	resource := librdKafka.ConfigResource{
		Type: librdKafka.ResourceTopic,
		Name: data.Name,
	}
	for key, val := range data.TopicConfigs() {
		resource.Config = append(resource.Config, librdKafka.ConfigEntry{
			Name:      key,
			Value:     val,
			Operation: librdKafka.AlterOperationSet,
		})
	}

	results, err := a.admin.AlterConfigs(ctx, []librdKafka.ConfigResource{resource},
		librdKafka.SetAdminRequestTimeout(a.timeout))
	if err != nil {
		return errors.Wrapf(err, `could not update configs of topic [%s]`, data.Name)
	}

	for _, res := range results {
		if res.Error.Code() != librdKafka.ErrNoError {
			return errors.Wrapf(res.Error, `config update error response for [%s]`, res.Name)
		}
	}

	return nil
}

func (a *kAdmin) DeleteTopic(ctx context.Context, name string) error {
	result, err := a.admin.DeleteTopics(ctx, []string{name},
		librdKafka.SetAdminOperationTimeout(a.timeout))
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf(`could not delete topic [%s]`, name))
	}

	for _, res := range result {
		if res.Error.Code() != librdKafka.ErrNoError {
			if res.Error.Code() == librdKafka.ErrUnknownTopic || res.Error.Code() == librdKafka.ErrUnknownTopicOrPart {
				a.logger.Warn(res.Error)
				continue
			}

			return errors.Wrapf(res.Error, `topic delete error response for [%s]`, res.Topic)
		}
	}

	return nil
}

func (a *kAdmin) Close() error {
	a.admin.Close()
	return nil
}
