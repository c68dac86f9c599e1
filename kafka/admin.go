package kafka

import (
	"context"

	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
)

// Admin is the cluster facing side of the topic state. Results are returned as raw payloads,
// validation happens when they are applied to a topic.State.
type Admin interface {
	// ListTopics returns every topic with its partition and replica layout.
	ListTopics(ctx context.Context) ([]topic.RawTopic, error)
	// DescribeConfigs returns the configuration listing of a topic.
	DescribeConfigs(ctx context.Context, topic string) ([]topic.Config, error)
	// CreateTopic creates a topic from a submitted form.
	CreateTopic(ctx context.Context, data form.FormattedData) error
	// UpdateTopicConfigs replaces the configuration overrides of an existing topic.
	UpdateTopicConfigs(ctx context.Context, data form.FormattedData) error
	DeleteTopic(ctx context.Context, topic string) error
	Close() error
}
