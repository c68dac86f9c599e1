/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
)

// MockKafkaAdmin implements kafka.Admin and kafka.MessageFetcher on top of Topics.
type MockKafkaAdmin struct {
	Topics *Topics

	mu sync.Mutex
	// Errs overrides the result of the named operation when set.
	Errs map[string]error
}

func NewMockAdmin(brokers ...int32) *MockKafkaAdmin {
	return &MockKafkaAdmin{
		Topics: NewMockTopics(brokers...),
		Errs:   map[string]error{},
	}
}

// FailWith makes every later call of op return err. A nil err clears the failure.
func (m *MockKafkaAdmin) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.Errs, op)
		return
	}
	m.Errs[op] = err
}

func (m *MockKafkaAdmin) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Errs[op]
}

func (m *MockKafkaAdmin) ListTopics(_ context.Context) ([]topic.RawTopic, error) {
	if err := m.failure(`ListTopics`); err != nil {
		return nil, err
	}

	topics := m.Topics.Topics()
	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)

	raw := make([]topic.RawTopic, 0, len(names))
	for _, name := range names {
		raw = append(raw, topics[name].raw())
	}

	return raw, nil
}

func (m *MockKafkaAdmin) DescribeConfigs(_ context.Context, name string) ([]topic.Config, error) {
	if err := m.failure(`DescribeConfigs`); err != nil {
		return nil, err
	}

	tp, err := m.Topics.Topic(name)
	if err != nil {
		return nil, err
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()

	return append([]topic.Config{}, tp.Configs...), nil
}

func (m *MockKafkaAdmin) CreateTopic(_ context.Context, data form.FormattedData) error {
	if err := m.failure(`CreateTopic`); err != nil {
		return err
	}

	return m.Topics.AddTopic(&MockTopic{
		Name:    data.Name,
		Configs: configsOf(data),
	}, data.Partitions, data.ReplicationFactor)
}

func (m *MockKafkaAdmin) UpdateTopicConfigs(_ context.Context, data form.FormattedData) error {
	if err := m.failure(`UpdateTopicConfigs`); err != nil {
		return err
	}

	tp, err := m.Topics.Topic(data.Name)
	if err != nil {
		return err
	}

	tp.mu.Lock()
	tp.Configs = configsOf(data)
	tp.mu.Unlock()

	return nil
}

func configsOf(data form.FormattedData) []topic.Config {
	entries := data.TopicConfigs()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]topic.Config, 0, len(names))
	for _, name := range names {
		c := topic.Config{Name: name, Value: entries[name]}
		if opt, err := topic.FindCustomParamOption(name); err == nil {
			c.DefaultValue = opt.DefaultValue
		}
		configs = append(configs, c)
	}

	return configs
}

func (m *MockKafkaAdmin) DeleteTopic(_ context.Context, name string) error {
	if err := m.failure(`DeleteTopic`); err != nil {
		return err
	}

	if _, err := m.Topics.Topic(name); err != nil {
		return nil
	}

	return m.Topics.RemoveTopic(name)
}

func (m *MockKafkaAdmin) FetchMessages(ctx context.Context, req kafka.FetchRequest) ([]topic.Message, error) {
	if err := m.failure(`FetchMessages`); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tp, err := m.Topics.Topic(req.Topic)
	if err != nil {
		return nil, err
	}

	pt, err := tp.Partition(req.Partition)
	if err != nil {
		return nil, err
	}

	start := int64(req.Offset)
	switch req.Offset {
	case kafka.Earliest:
		start = 0
	case kafka.Latest:
		start = pt.Latest() - int64(req.Limit)
	}

	return pt.Fetch(start, req.Limit), nil
}

func (m *MockKafkaAdmin) Close() error { return nil }
