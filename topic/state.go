package topic

import (
	"fmt"
	"sync"

	"github.com/gmbyapa/ktopics/pkg/orderedmap"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type stateOptions struct {
	maxMessages     int
	logger          log.Logger
	metricsReporter metrics.Reporter
}

func (opts *stateOptions) apply(options ...StateOption) {
	opts.logger = log.NewNoopLogger()
	opts.metricsReporter = metrics.NoopReporter()
	for _, opt := range options {
		opt(opts)
	}
}

type StateOption func(*stateOptions)

// WithMaxMessages caps the message buffer, the oldest messages are evicted first. Zero means
// unbounded.
func WithMaxMessages(n int) StateOption {
	return func(options *stateOptions) {
		options.maxMessages = n
	}
}

func WithLogger(logger log.Logger) StateOption {
	return func(options *stateOptions) {
		options.logger = logger
	}
}

func WithMetricsReporter(reporter metrics.Reporter) StateOption {
	return func(options *stateOptions) {
		options.metricsReporter = reporter
	}
}

// State holds every known topic by name together with the display order of the names and a
// buffer of consumed messages.
//
// Each mutation is applied as one step under the state lock, readers never observe the name
// index and the name order out of step. All reads return copies.
type State struct {
	mu          sync.RWMutex
	topics      *orderedmap.Map[string, DetailedTopic]
	messages    []Message
	maxMessages int
	logger      log.Logger
	metrics     struct {
		topics    metrics.Gauge
		messages  metrics.Gauge
		mutations metrics.Counter
		evicted   metrics.Counter
	}
}

func NewState(options ...StateOption) *State {
	opts := new(stateOptions)
	opts.apply(options...)

	s := &State{
		topics:      orderedmap.New[string, DetailedTopic](),
		maxMessages: opts.maxMessages,
		logger:      opts.logger.NewLog(log.Prefixed(`topic-state`)),
	}

	s.metrics.topics = opts.metricsReporter.Gauge(metrics.MetricConf{Path: `topic_state_topics`})
	s.metrics.messages = opts.metricsReporter.Gauge(metrics.MetricConf{Path: `topic_state_messages`})
	s.metrics.mutations = opts.metricsReporter.Counter(metrics.MetricConf{
		Path:   `topic_state_mutations_total`,
		Labels: []string{`op`},
	})
	s.metrics.evicted = opts.metricsReporter.Counter(metrics.MetricConf{Path: `topic_state_evicted_messages_total`})

	return s
}

// Upsert inserts t when its name is unseen, otherwise merges it into the known record. The
// display order never changes on update.
func (s *State) Upsert(t DetailedTopic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(t)
	s.metrics.mutations.Count(1, map[string]string{`op`: `upsert`})
}

func (s *State) upsert(t DetailedTopic) {
	t = t.clone()
	inserted := s.topics.Upsert(t.Name, t, func(existing, newer DetailedTopic) DetailedTopic {
		return existing.Merge(newer)
	})

	if inserted {
		s.logger.Debug(fmt.Sprintf(`topic [%s] added`, t.Name))
		s.metrics.topics.Count(float64(s.topics.Len()), nil)
	}

	merged, _ := s.topics.Get(t.Name)
	for _, issue := range merged.Inconsistencies() {
		s.logger.Warn(fmt.Sprintf(`topic [%s]: %s`, t.Name, issue))
	}
}

// Remove deletes the topic. Removing an unknown topic is a no-op.
func (s *State) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.topics.Delete(name) {
		s.logger.Debug(fmt.Sprintf(`topic [%s] removed`, name))
		s.metrics.topics.Count(float64(s.topics.Len()), nil)
	}
	s.metrics.mutations.Count(1, map[string]string{`op`: `remove`})
}

// ApplyTopics validates a topic listing and upserts every valid topic in it. Topics failing
// validation keep their last known record and are reported together in a *ListingError.
func (s *State) ApplyTopics(listing []RawTopic) error {
	topics := make([]Topic, 0, len(listing))
	var failed []error
	for _, raw := range listing {
		t, err := NewTopic(raw)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		topics = append(topics, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range topics {
		s.upsert(MergeDetails(t, DeriveDetails(t)))
	}
	s.metrics.mutations.Count(1, map[string]string{`op`: `apply_topics`})

	if len(failed) > 0 {
		return &ListingError{Errors: failed}
	}

	return nil
}

// ApplyDetails merges a detail fetch result into the named topic. Results for unknown topics
// (eg: deleted while the fetch was in flight) are rejected with a *NotFoundError.
func (s *State) ApplyDetails(name string, d Details) error {
	return s.applyKnown(DetailedTopic{
		Topic:   Topic{Name: name},
		Details: d,
	}, `apply_details`)
}

// ApplyConfig validates a configuration listing and attaches it to the named topic. Unknown
// topics are rejected with a *NotFoundError.
func (s *State) ApplyConfig(name string, configs []Config) error {
	if _, err := NewConfigRegistry(configs); err != nil {
		return err
	}

	if configs == nil {
		configs = []Config{}
	}

	return s.applyKnown(DetailedTopic{
		Topic:  Topic{Name: name},
		Config: configs,
	}, `apply_config`)
}

func (s *State) applyKnown(t DetailedTopic, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.topics.Has(t.Name) {
		s.logger.Debug(fmt.Sprintf(`%s dropped, topic [%s] unknown`, op, t.Name))
		return notFound(`topic`, t.Name)
	}

	s.upsert(t)
	s.metrics.mutations.Count(1, map[string]string{`op`: op})

	return nil
}

// AppendMessages appends to the message buffer in arrival order.
func (s *State) AppendMessages(messages []Message) {
	if len(messages) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, messages...)
	if s.maxMessages > 0 && len(s.messages) > s.maxMessages {
		evicted := len(s.messages) - s.maxMessages
		kept := make([]Message, s.maxMessages)
		copy(kept, s.messages[evicted:])
		s.messages = kept
		s.metrics.evicted.Count(float64(evicted), nil)
	}

	s.metrics.messages.Count(float64(len(s.messages)), nil)
	s.metrics.mutations.Count(1, map[string]string{`op`: `append_messages`})
}

func (s *State) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.metrics.messages.Count(0, nil)
}

// Reset drops every topic and message.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topics.Reset()
	s.messages = nil
	s.metrics.topics.Count(0, nil)
	s.metrics.messages.Count(0, nil)
}

func (s *State) Topic(name string) (DetailedTopic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics.Get(name)
	if !ok {
		return DetailedTopic{}, false
	}

	return t.clone(), true
}

// Config returns the indexed configuration of the named topic.
func (s *State) Config(name string) (*ConfigRegistry, error) {
	t, ok := s.Topic(name)
	if !ok {
		return nil, notFound(`topic`, name)
	}

	return NewConfigRegistry(t.Config)
}

// Names returns the topic names in display order.
func (s *State) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.topics.Keys()
}

// Topics returns every topic in display order.
func (s *State) Topics() []DetailedTopic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]DetailedTopic, 0, s.topics.Len())
	s.topics.Range(func(_ string, t DetailedTopic) bool {
		topics = append(topics, t.clone())
		return true
	})

	return topics
}

// Messages returns a snapshot of the message buffer.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.topics.Len()
}
