/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package sarama

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
	"github.com/tryfix/log"
)

type adminOptions struct {
	KafkaVersion sarama.KafkaVersion
	Timeout      time.Duration
	Logger       log.Logger
}

func (opts *adminOptions) apply(options ...AdminOption) {
	opts.KafkaVersion = sarama.V2_4_0_0
	opts.Timeout = 20 * time.Second
	opts.Logger = log.NewNoopLogger()
	for _, opt := range options {
		opt(opts)
	}
}

type AdminOption func(*adminOptions)

func WithKafkaVersion(version sarama.KafkaVersion) AdminOption {
	return func(options *adminOptions) {
		options.KafkaVersion = version
	}
}

func WithTimeout(timeout time.Duration) AdminOption {
	return func(options *adminOptions) {
		options.Timeout = timeout
	}
}

func WithLogger(logger log.Logger) AdminOption {
	return func(options *adminOptions) {
		options.Logger = logger
	}
}

type kAdmin struct {
	admin           sarama.ClusterAdmin
	logger          log.Logger
	adminConfig     *sarama.Config
	bootstrapServer []string
	mu              sync.RWMutex
}

func NewAdmin(bootstrapServer []string, options ...AdminOption) (*kAdmin, error) {
	opts := new(adminOptions)
	opts.apply(options...)
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = opts.KafkaVersion
	saramaConfig.Admin.Timeout = opts.Timeout
	logger := opts.Logger.NewLog(log.Prefixed(`kafka-admin`))
	admin, err := sarama.NewClusterAdmin(bootstrapServer, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, `admin client failed`)
	}

	return &kAdmin{
		admin:           admin,
		logger:          logger,
		adminConfig:     saramaConfig,
		bootstrapServer: bootstrapServer,
	}, nil
}

func (a *kAdmin) reconnect() error {
	admin, err := sarama.NewClusterAdmin(a.bootstrapServer, a.adminConfig)
	if err != nil {
		return errors.Wrap(err, `admin client failed`)
	}

	a.mu.Lock()
	a.admin = admin
	a.mu.Unlock()

	return nil
}

func (a *kAdmin) client() sarama.ClusterAdmin {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.admin
}

// withReconnect retries fn on broker connections closed by connections.max.idle.ms
// (https://github.com/Shopify/sarama/issues/2215).
func (a *kAdmin) withReconnect(ctx context.Context, fn func(admin sarama.ClusterAdmin) error) error {
	var reconCount int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(a.client())
		if err == nil {
			return nil
		}

		if _, ok := err.(*net.OpError); ok && reconCount < 3 {
			if recErr := a.reconnect(); recErr != nil {
				return recErr
			}
			reconCount++
			continue
		}

		return err
	}
}

func (a *kAdmin) ListTopics(ctx context.Context) ([]topic.RawTopic, error) {
	var names []string
	var metas []*sarama.TopicMetadata
	err := a.withReconnect(ctx, func(admin sarama.ClusterAdmin) error {
		details, err := admin.ListTopics()
		if err != nil {
			return err
		}

		names = names[:0]
		for name := range details {
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) == 0 {
			metas = nil
			return nil
		}

		metas, err = admin.DescribeTopics(names)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, `cannot get metadata`)
	}

	topics := make([]topic.RawTopic, 0, len(metas))
	for _, meta := range metas {
		if meta.Err != sarama.ErrNoError {
			a.logger.Warn(fmt.Sprintf(`topic [%s] metadata error %s, skipped`, meta.Name, meta.Err))
			continue
		}
		topics = append(topics, rawTopic(meta))
	}

	return topics, nil
}

func rawTopic(meta *sarama.TopicMetadata) topic.RawTopic {
	raw := topic.RawTopic{
		Name:       meta.Name,
		Internal:   meta.IsInternal,
		Partitions: make([]topic.RawPartition, 0, len(meta.Partitions)),
	}

	pts := append([]*sarama.PartitionMetadata(nil), meta.Partitions...)
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

// DescribeConfigs sends the describe request directly so the response carries config synonyms,
// ClusterAdmin.DescribeConfig never asks for them.
func (a *kAdmin) DescribeConfigs(ctx context.Context, name string) ([]topic.Config, error) {
	req := &sarama.DescribeConfigsRequest{
		Resources: []*sarama.ConfigResource{{
			Type: sarama.TopicResource,
			Name: name,
		}},
		IncludeSynonyms: true,
	}
	if a.adminConfig.Version.IsAtLeast(sarama.V1_1_0_0) {
		req.Version = 1
	}
	if a.adminConfig.Version.IsAtLeast(sarama.V2_0_0_0) {
		req.Version = 2
	}

	var entries []*sarama.ConfigEntry
	err := a.withReconnect(ctx, func(admin sarama.ClusterAdmin) error {
		broker, err := admin.Controller()
		if err != nil {
			return err
		}

		res, err := broker.DescribeConfigs(req)
		if err != nil {
			return err
		}

		entries, err = resourceConfigs(res, name)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, `DescribeConfig failed for topic %s`, name)
	}

	configs := make([]topic.Config, 0, len(entries))
	for _, entry := range entries {
		configs = append(configs, topic.Config{
			Name:         entry.Name,
			Value:        entry.Value,
			DefaultValue: defaultValue(*entry),
		})
	}

	return configs, nil
}

func resourceConfigs(res *sarama.DescribeConfigsResponse, name string) ([]*sarama.ConfigEntry, error) {
	for _, resource := range res.Resources {
		if resource.Name != name {
			continue
		}

		if resource.ErrorCode != 0 {
			return nil, errors.Wrap(sarama.KError(resource.ErrorCode), resource.ErrorMsg)
		}

		return resource.Configs, nil
	}

	return nil, errors.Errorf(`no config resource in response for topic %s`, name)
}

// defaultValue resolves the value a config would have without a topic level override. Brokers
// older than 1.1 send no synonyms, the stock default is used for those.
func defaultValue(entry sarama.ConfigEntry) string {
	if entry.Default || entry.Source == sarama.SourceDefault {
		return entry.Value
	}

	for _, syn := range entry.Synonyms {
		if syn.Source != sarama.SourceTopic {
			return syn.ConfigValue
		}
	}

	v, _ := topic.KnownDefault(entry.Name)
	return v
}

func (a *kAdmin) CreateTopic(ctx context.Context, data form.FormattedData) error {
	details := &sarama.TopicDetail{
		NumPartitions:     data.Partitions,
		ReplicationFactor: data.ReplicationFactor,
		ConfigEntries:     map[string]*string{},
	}

	for cName, cVal := range data.TopicConfigs() {
		conf := cVal
		details.ConfigEntries[cName] = &conf
	}

	err := a.withReconnect(ctx, func(admin sarama.ClusterAdmin) error {
		return admin.CreateTopic(data.Name, details, false)
	})
	if err != nil {
		if e, ok := err.(*sarama.TopicError); ok && e.Err == sarama.ErrTopicAlreadyExists {
			return errors.Wrapf(err, `topic [%s] already exists`, data.Name)
		}
		return errors.Wrapf(err, `could not create topic [%s]`, data.Name)
	}

	a.logger.Info(fmt.Sprintf(`topic [%s] created`, data.Name))

	return nil
}

func (a *kAdmin) UpdateTopicConfigs(ctx context.Context, data form.FormattedData) error {
	entries := map[string]*string{}
	for cName, cVal := range data.TopicConfigs() {
		conf := cVal
		entries[cName] = &conf
	}

	err := a.withReconnect(ctx, func(admin sarama.ClusterAdmin) error {
		return admin.AlterConfig(sarama.TopicResource, data.Name, entries, false)
	})
	if err != nil {
		return errors.Wrapf(err, `could not update configs of topic [%s]`, data.Name)
	}

	a.logger.Info(fmt.Sprintf(`topic [%s] configs updated [%s]`, data.Name, keys(entries)))

	return nil
}

func keys(m map[string]*string) string {
	var list []string
	for k := range m {
		list = append(list, k)
	}
	sort.Strings(list)
	return strings.Join(list, `,`)
}

func (a *kAdmin) DeleteTopic(ctx context.Context, name string) error {
	err := a.withReconnect(ctx, func(admin sarama.ClusterAdmin) error {
		return admin.DeleteTopic(name)
	})
	if err != nil && !errors.Is(err, sarama.ErrUnknownTopicOrPartition) {
		return errors.Wrap(err, fmt.Sprintf(`could not delete topic [%s]`, name))
	}

	return nil
}

func (a *kAdmin) Close() error {
	if err := a.client().Close(); err != nil {
		a.logger.Warn(fmt.Sprintf(`kafkaAdmin cannot close broker : %+v`, err))
		return err
	}

	return nil
}
