package mocks

import (
	"errors"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/gmbyapa/ktopics/topic"
)

type MockPartition struct {
	Leader   int32
	Replicas []int32
	messages []topic.Message
	*sync.Mutex
}

// Append adds a message and assigns it the next offset.
func (p *MockPartition) Append(m topic.Message) {
	p.Lock()
	defer p.Unlock()

	m.Offset = int64(len(p.messages))
	p.messages = append(p.messages, m)
}

func (p *MockPartition) Latest() int64 {
	p.Lock()
	defer p.Unlock()

	return int64(len(p.messages))
}

func (p *MockPartition) Fetch(start int64, limit int) []topic.Message {
	p.Lock()
	defer p.Unlock()

	if start < 0 {
		start = 0
	}

	if start >= int64(len(p.messages)) || limit < 1 {
		return nil
	}

	to := int(start) + limit
	if to > len(p.messages) {
		to = len(p.messages)
	}

	chunk := make([]topic.Message, to-int(start))
	copy(chunk, p.messages[start:to])

	return chunk
}

type MockTopic struct {
	Name       string
	Internal   bool
	Configs    []topic.Config
	partitions []*MockPartition
	mu         *sync.Mutex
}

func (tp *MockTopic) Partition(id int32) (*MockPartition, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if id < 0 || int(id) >= len(tp.partitions) {
		return nil, sarama.ErrUnknownTopicOrPartition
	}

	return tp.partitions[id], nil
}

func (tp *MockTopic) raw() topic.RawTopic {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	raw := topic.RawTopic{
		Name:       tp.Name,
		Internal:   tp.Internal,
		Partitions: make([]topic.RawPartition, 0, len(tp.partitions)),
	}
	for id, pt := range tp.partitions {
		rp := topic.RawPartition{Partition: int32(id), Leader: pt.Leader}
		for _, b := range pt.Replicas {
			rp.Replicas = append(rp.Replicas, topic.RawReplica{Broker: b, Leader: b == pt.Leader})
		}
		raw.Partitions = append(raw.Partitions, rp)
	}

	return raw
}

// Topics is an in-memory cluster.
type Topics struct {
	*sync.Mutex
	topics  map[string]*MockTopic
	brokers []int32
}

// NewMockTopics creates a cluster whose partitions are spread over the given brokers.
func NewMockTopics(brokers ...int32) *Topics {
	if len(brokers) == 0 {
		brokers = []int32{1}
	}

	return &Topics{
		topics:  make(map[string]*MockTopic),
		brokers: brokers,
		Mutex:   new(sync.Mutex),
	}
}

// AddTopic creates a topic with partitions assigned round robin, the first replica of every
// partition being its leader.
func (td *Topics) AddTopic(tp *MockTopic, partitions int32, replicationFactor int16) error {
	td.Lock()
	defer td.Unlock()

	if _, ok := td.topics[tp.Name]; ok {
		return sarama.ErrTopicAlreadyExists
	}

	if int(replicationFactor) > len(td.brokers) || replicationFactor < 1 {
		return sarama.ErrInvalidReplicationFactor
	}

	if partitions < 1 {
		return sarama.ErrInvalidPartitions
	}

	tp.mu = new(sync.Mutex)
	tp.partitions = make([]*MockPartition, partitions)
	for i := int32(0); i < partitions; i++ {
		pt := &MockPartition{Mutex: new(sync.Mutex)}
		for r := int16(0); r < replicationFactor; r++ {
			pt.Replicas = append(pt.Replicas, td.brokers[(int(i)+int(r))%len(td.brokers)])
		}
		pt.Leader = pt.Replicas[0]
		tp.partitions[i] = pt
	}
	td.topics[tp.Name] = tp

	return nil
}

func (td *Topics) RemoveTopic(name string) error {
	td.Lock()
	defer td.Unlock()

	if _, ok := td.topics[name]; !ok {
		return errors.New(`topic does not exists`)
	}
	delete(td.topics, name)

	return nil
}

func (td *Topics) Topic(name string) (*MockTopic, error) {
	td.Lock()
	defer td.Unlock()

	t, ok := td.topics[name]
	if !ok {
		return nil, sarama.ErrUnknownTopicOrPartition
	}

	return t, nil
}

func (td *Topics) Topics() map[string]*MockTopic {
	td.Lock()
	defer td.Unlock()

	topics := make(map[string]*MockTopic, len(td.topics))
	for name, t := range td.topics {
		topics[name] = t
	}

	return topics
}
