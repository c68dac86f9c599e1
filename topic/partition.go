package topic

import (
	"fmt"
)

// RawReplica is a replica as reported by the cluster before validation.
type RawReplica struct {
	Broker int32 `json:"broker"`
	Leader bool  `json:"leader"`
}

// RawPartition is a partition as reported by the cluster before validation.
type RawPartition struct {
	Partition int32        `json:"partition"`
	Leader    int32        `json:"leader"`
	Replicas  []RawReplica `json:"replicas"`
}

// RawTopic is one entry of a topic listing.
type RawTopic struct {
	Name       string         `json:"name"`
	Internal   bool           `json:"internal"`
	Partitions []RawPartition `json:"partitions"`
}

type Replica struct {
	Broker int32 `json:"broker"`
	Leader bool  `json:"leader"`
	// InSync is always true for replicas built by this package.
	InSync bool `json:"inSync"`
}

type Partition struct {
	Partition int32     `json:"partition"`
	Leader    int32     `json:"leader"`
	Replicas  []Replica `json:"replicas"`
}

// Replica returns the replica hosted on broker.
func (p Partition) Replica(broker int32) (Replica, error) {
	for _, r := range p.Replicas {
		if r.Broker == broker {
			return r, nil
		}
	}

	return Replica{}, notFound(`replica`, fmt.Sprintf(`%d/%d`, p.Partition, broker))
}

// LeaderReplica returns the replica flagged as leader.
func (p Partition) LeaderReplica() Replica {
	r, _ := p.Replica(p.Leader)
	return r
}

type Topic struct {
	Name       string      `json:"name"`
	Internal   bool        `json:"internal"`
	Partitions []Partition `json:"partitions"`
}

// Partition returns the partition with the given index.
func (t Topic) Partition(index int32) (Partition, error) {
	// partitions usually arrive sorted by index
	if index >= 0 && int(index) < len(t.Partitions) && t.Partitions[index].Partition == index {
		return t.Partitions[index], nil
	}

	for _, p := range t.Partitions {
		if p.Partition == index {
			return p, nil
		}
	}

	return Partition{}, notFound(`partition`, fmt.Sprintf(`%s[%d]`, t.Name, index))
}

// NewPartition validates raw and converts it. Exactly one replica must be flagged as leader
// and its broker must match raw.Leader.
func NewPartition(raw RawPartition) (Partition, error) {
	if raw.Partition < 0 {
		return Partition{}, &ConsistencyError{Partition: raw.Partition, Reason: `negative partition index`}
	}

	pt := Partition{
		Partition: raw.Partition,
		Leader:    raw.Leader,
		Replicas:  make([]Replica, 0, len(raw.Replicas)),
	}

	brokers := make(map[int32]struct{}, len(raw.Replicas))
	var leaders []int32
	for _, r := range raw.Replicas {
		if _, ok := brokers[r.Broker]; ok {
			return Partition{}, &ConsistencyError{
				Partition: raw.Partition,
				Reason:    fmt.Sprintf(`broker %d listed twice`, r.Broker),
			}
		}
		brokers[r.Broker] = struct{}{}

		if r.Leader {
			leaders = append(leaders, r.Broker)
		}

		pt.Replicas = append(pt.Replicas, Replica{
			Broker: r.Broker,
			Leader: r.Leader,
			InSync: true,
		})
	}

	switch {
	case len(leaders) == 0:
		return Partition{}, &ConsistencyError{Partition: raw.Partition, Reason: `no leader replica`}
	case len(leaders) > 1:
		return Partition{}, &ConsistencyError{
			Partition: raw.Partition,
			Reason:    fmt.Sprintf(`multiple leader replicas %v`, leaders),
		}
	case leaders[0] != raw.Leader:
		return Partition{}, &ConsistencyError{
			Partition: raw.Partition,
			Reason:    fmt.Sprintf(`leader replica on broker %d but partition leader is %d`, leaders[0], raw.Leader),
		}
	}

	return pt, nil
}

// NewPartitions converts a partition listing, preserving its order.
func NewPartitions(raw []RawPartition) ([]Partition, error) {
	partitions := make([]Partition, 0, len(raw))
	seen := make(map[int32]struct{}, len(raw))
	for _, r := range raw {
		if _, ok := seen[r.Partition]; ok {
			return nil, &ConsistencyError{Partition: r.Partition, Reason: `partition listed twice`}
		}
		seen[r.Partition] = struct{}{}

		pt, err := NewPartition(r)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, pt)
	}

	return partitions, nil
}

// NewTopic validates a raw listing entry.
func NewTopic(raw RawTopic) (Topic, error) {
	if raw.Name == `` {
		return Topic{}, &ConsistencyError{Partition: -1, Reason: `topic without a name`}
	}

	partitions, err := NewPartitions(raw.Partitions)
	if err != nil {
		if ce, ok := err.(*ConsistencyError); ok {
			ce.Topic = raw.Name
		}
		return Topic{}, err
	}

	return Topic{
		Name:       raw.Name,
		Internal:   raw.Internal,
		Partitions: partitions,
	}, nil
}

// DeriveDetails computes the details that follow from the partition graph alone.
func DeriveDetails(t Topic) Details {
	var replicas, inSync, underReplicated int32
	var replicationFactor int32
	for _, p := range t.Partitions {
		n := int32(len(p.Replicas))
		replicas += n
		if n > replicationFactor {
			replicationFactor = n
		}

		var isr int32
		for _, r := range p.Replicas {
			if r.InSync {
				isr++
			}
		}
		inSync += isr
		if isr < n {
			underReplicated++
		}
	}

	return Details{
		PartitionCount:            Int32(int32(len(t.Partitions))),
		ReplicationFactor:         Int32(replicationFactor),
		Replicas:                  Int32(replicas),
		InSyncReplicas:            Int32(inSync),
		UnderReplicatedPartitions: Int32(underReplicated),
	}
}
