// Package refresh keeps a topic.State in step with the cluster. Every collaborator result is
// applied to the state as one mutation once it has completed.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/pkg/async"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type Config struct {
	// Interval between two refresh cycles.
	Interval time.Duration
	// WatchTopics are consumed into the message buffer on every cycle.
	WatchTopics []string
	// MessagesPerFetch is the per partition fetch limit.
	MessagesPerFetch int
	Logger           log.Logger
	MetricsReporter  metrics.Reporter
}

func NewConfig() *Config {
	return &Config{
		Interval:         10 * time.Second,
		MessagesPerFetch: 20,
		Logger:           log.NewNoopLogger(),
		MetricsReporter:  metrics.NoopReporter(),
	}
}

func (c *Config) validate() error {
	if c.Interval <= 0 {
		return errors.New(`[Interval] must be positive`)
	}

	if c.MessagesPerFetch < 1 {
		return errors.New(`[MessagesPerFetch] must be at least 1`)
	}

	return nil
}

// Refresher is the single writer of a topic.State. It polls the Admin for the topic listing
// and configurations and the MessageFetcher for messages of the watched topics.
type Refresher struct {
	admin   kafka.Admin
	fetcher kafka.MessageFetcher
	state   *topic.State
	conf    *Config
	logger  log.Logger

	// serializes the cluster facing writes: refresh cycles, submissions and deletions
	writeMu sync.Mutex

	mu sync.Mutex
	// next offset to fetch per watched topic partition
	watched map[string]map[int32]kafka.Offset

	metrics struct {
		latency  metrics.Observer
		failures metrics.Counter
		fetched  metrics.Counter
	}
}

// New creates a Refresher. fetcher may be nil, in which case no messages are consumed.
func New(state *topic.State, admin kafka.Admin, fetcher kafka.MessageFetcher, conf *Config) (*Refresher, error) {
	if state == nil || admin == nil {
		return nil, errors.New(`state and admin are required`)
	}

	if err := conf.validate(); err != nil {
		return nil, errors.Wrap(err, `invalid refresh config`)
	}

	r := &Refresher{
		admin:   admin,
		fetcher: fetcher,
		state:   state,
		conf:    conf,
		logger:  conf.Logger.NewLog(log.Prefixed(`refresher`)),
		watched: map[string]map[int32]kafka.Offset{},
	}

	for _, name := range conf.WatchTopics {
		r.watched[name] = map[int32]kafka.Offset{}
	}

	r.metrics.latency = conf.MetricsReporter.Observer(metrics.MetricConf{
		Path: `topic_refresh_latency_microseconds`,
	})
	r.metrics.failures = conf.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `topic_refresh_failures_total`,
		Labels: []string{`op`},
	})
	r.metrics.fetched = conf.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `topic_refresh_fetched_messages_total`,
		Labels: []string{`topic`},
	})

	return r, nil
}

// RefreshTopics applies the current listing, drops topics which are no longer listed and
// attaches the configuration of every listed topic. A failed listing leaves the state
// untouched. Listed topics failing validation keep their last known record and are reported
// after the valid ones are applied. A failed configuration fetch keeps the last known
// configuration of that topic.
func (r *Refresher) RefreshTopics(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.refreshTopics(ctx)
}

func (r *Refresher) refreshTopics(ctx context.Context) error {
	listing, err := r.admin.ListTopics(ctx)
	if err != nil {
		r.metrics.failures.Count(1, map[string]string{`op`: `list_topics`})
		return errors.Wrap(err, `topic listing failed`)
	}

	var rejected *topic.ListingError
	if err := r.state.ApplyTopics(listing); err != nil {
		if !errors.As(err, &rejected) {
			return errors.Wrap(err, `topic listing rejected`)
		}
		r.metrics.failures.Count(float64(len(rejected.Errors)), map[string]string{`op`: `apply_topics`})
		r.logger.Warn(fmt.Sprintf(`topic listing partially applied: %s`, rejected))
	}

	listed := make(map[string]struct{}, len(listing))
	for _, raw := range listing {
		listed[raw.Name] = struct{}{}
	}

	for _, name := range r.state.Names() {
		if _, ok := listed[name]; !ok {
			r.logger.Info(fmt.Sprintf(`topic [%s] no longer exists`, name))
			r.state.Remove(name)
		}
	}

	for _, name := range r.state.Names() {
		if err := r.refreshConfig(ctx, name); err != nil {
			r.logger.Warn(err)
		}
	}

	if rejected != nil {
		return rejected
	}

	return nil
}

// RefreshConfig fetches and applies the configuration of one topic. A result arriving after
// the topic was removed is dropped.
func (r *Refresher) RefreshConfig(ctx context.Context, name string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.refreshConfig(ctx, name)
}

func (r *Refresher) refreshConfig(ctx context.Context, name string) error {
	configs, err := r.admin.DescribeConfigs(ctx, name)
	if err != nil {
		r.metrics.failures.Count(1, map[string]string{`op`: `describe_configs`})
		return errors.Wrapf(err, `config fetch failed for topic [%s]`, name)
	}

	err = r.state.ApplyConfig(name, configs)
	var notFound *topic.NotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound):
		r.logger.Debug(fmt.Sprintf(`config of removed topic [%s] dropped`, name))
		return nil
	default:
		r.metrics.failures.Count(1, map[string]string{`op`: `apply_config`})
		return errors.Wrapf(err, `config of topic [%s] rejected`, name)
	}
}

// Watch starts consuming name into the message buffer from the partition ends.
func (r *Refresher) Watch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.watched[name]; !ok {
		r.watched[name] = map[int32]kafka.Offset{}
	}
}

func (r *Refresher) Unwatch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.watched, name)
}

func (r *Refresher) Watched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.watched))
	for name := range r.watched {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// RefreshMessages fetches the next batch of every partition of the watched topics. The first
// fetch of a partition reads the latest MessagesPerFetch messages, later fetches continue
// after the last seen offset.
func (r *Refresher) RefreshMessages(ctx context.Context) error {
	if r.fetcher == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.watched))
	for name := range r.watched {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tp, ok := r.state.Topic(name)
		if !ok {
			continue
		}

		next := r.watched[name]
		for _, pt := range tp.Partitions {
			offset, ok := next[pt.Partition]
			if !ok {
				offset = kafka.Latest
			}

			req := kafka.FetchRequest{
				Topic:     name,
				Partition: pt.Partition,
				Offset:    offset,
				Limit:     r.conf.MessagesPerFetch,
			}

			messages, err := r.fetcher.FetchMessages(ctx, req)
			if err != nil {
				r.metrics.failures.Count(1, map[string]string{`op`: `fetch_messages`})
				return errors.Wrapf(err, `fetch %s failed`, req)
			}

			if len(messages) > 0 {
				next[pt.Partition] = kafka.Offset(messages[len(messages)-1].Offset + 1)
				r.state.AppendMessages(messages)
				r.metrics.fetched.Count(float64(len(messages)), map[string]string{`topic`: name})
			}
		}
	}

	return nil
}

// Refresh runs one full cycle and reports its latency. Messages are still fetched when only
// some listed topics were rejected.
func (r *Refresher) Refresh(ctx context.Context) error {
	defer func(begin time.Time) {
		r.metrics.latency.Observe(float64(time.Since(begin).Microseconds()), nil)
	}(time.Now())

	err := r.RefreshTopics(ctx)
	var rejected *topic.ListingError
	if err != nil && !errors.As(err, &rejected) {
		return err
	}

	if err := r.RefreshMessages(ctx); err != nil {
		return err
	}

	return err
}

// Submit creates the topic described by data or, when it is already known, replaces its
// configuration overrides. The topic is refreshed afterwards.
func (r *Refresher) Submit(ctx context.Context, data *form.Data) error {
	formatted := data.Format()
	if formatted.Name == `` {
		return errors.New(`topic name cannot be empty`)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, ok := r.state.Topic(formatted.Name); ok {
		if err := r.admin.UpdateTopicConfigs(ctx, formatted); err != nil {
			return errors.Wrapf(err, `topic [%s] update failed`, formatted.Name)
		}
		r.logger.Info(fmt.Sprintf(`topic [%s] updated`, formatted.Name))

		return r.refreshConfig(ctx, formatted.Name)
	}

	if err := r.admin.CreateTopic(ctx, formatted); err != nil {
		return errors.Wrapf(err, `topic [%s] create failed`, formatted.Name)
	}
	r.logger.Info(fmt.Sprintf(`topic [%s] created`, formatted.Name))

	return r.refreshTopics(ctx)
}

// Delete removes the topic from the cluster and the state.
func (r *Refresher) Delete(ctx context.Context, name string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.admin.DeleteTopic(ctx, name); err != nil {
		return errors.Wrapf(err, `topic [%s] delete failed`, name)
	}

	r.Unwatch(name)
	r.state.Remove(name)
	r.logger.Info(fmt.Sprintf(`topic [%s] deleted`, name))

	return nil
}

// Run refreshes on every Interval until the group stops. Failed cycles are logged and the
// last applied state is kept.
func (r *Refresher) Run(opts *async.Opts) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-opts.Stopping()
		cancel()
	}()

	if err := r.Refresh(ctx); err != nil {
		r.logger.Error(fmt.Sprintf(`initial refresh failed due to %s`, err))
	}
	opts.Ready()

	ticker := time.NewTicker(r.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error(fmt.Sprintf(`refresh failed due to %s`, err))
			}
		case <-opts.Stopping():
			r.logger.Info(`refresher stopped`)
			return nil
		}
	}
}
