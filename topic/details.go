package topic

import (
	"fmt"
)

// Details are facts derived from a detail fetch. A nil field is unknown, which is different
// from a known zero.
type Details struct {
	PartitionCount            *int32 `json:"partitionCount,omitempty"`
	ReplicationFactor         *int32 `json:"replicationFactor,omitempty"`
	Replicas                  *int32 `json:"replicas,omitempty"`
	SegmentSize               *int64 `json:"segmentSize,omitempty"`
	InSyncReplicas            *int32 `json:"inSyncReplicas,omitempty"`
	SegmentCount              *int32 `json:"segmentCount,omitempty"`
	UnderReplicatedPartitions *int32 `json:"underReplicatedPartitions,omitempty"`
}

func Int32(v int32) *int32 { return &v }

func Int64(v int64) *int64 { return &v }

// Merge returns the field-wise union of d and newer. Known fields of newer win, unknown fields
// of newer never blank a known field of d.
func (d Details) Merge(newer Details) Details {
	return Details{
		PartitionCount:            pick32(d.PartitionCount, newer.PartitionCount),
		ReplicationFactor:         pick32(d.ReplicationFactor, newer.ReplicationFactor),
		Replicas:                  pick32(d.Replicas, newer.Replicas),
		SegmentSize:               pick64(d.SegmentSize, newer.SegmentSize),
		InSyncReplicas:            pick32(d.InSyncReplicas, newer.InSyncReplicas),
		SegmentCount:              pick32(d.SegmentCount, newer.SegmentCount),
		UnderReplicatedPartitions: pick32(d.UnderReplicatedPartitions, newer.UnderReplicatedPartitions),
	}
}

func pick32(old, newer *int32) *int32 {
	if newer != nil {
		return Int32(*newer)
	}
	if old != nil {
		return Int32(*old)
	}
	return nil
}

func pick64(old, newer *int64) *int64 {
	if newer != nil {
		return Int64(*newer)
	}
	if old != nil {
		return Int64(*old)
	}
	return nil
}

// DetailedTopic is the per topic record held by State.
//
// Partitions == nil means the record carries no structural data, Config == nil means it
// carries no configuration. Both are left untouched by Merge in that case.
type DetailedTopic struct {
	Topic
	Details
	Config []Config `json:"config,omitempty"`
}

// MergeDetails combines the structural topic with its derived details.
func MergeDetails(t Topic, d Details) DetailedTopic {
	return DetailedTopic{
		Topic:   t,
		Details: d.Merge(Details{}),
	}
}

func (t DetailedTopic) hasStructure() bool {
	return t.Partitions != nil
}

// Merge applies newer on top of t.
func (t DetailedTopic) Merge(newer DetailedTopic) DetailedTopic {
	merged := DetailedTopic{
		Topic:   t.Topic,
		Details: t.Details.Merge(newer.Details),
		Config:  t.Config,
	}

	if newer.hasStructure() {
		merged.Internal = newer.Internal
		merged.Partitions = newer.Partitions
	}

	if newer.Config != nil {
		merged.Config = newer.Config
	}

	return merged
}

// Inconsistencies lists derived fields that disagree with the partition graph.
func (t DetailedTopic) Inconsistencies() []string {
	if !t.hasStructure() {
		return nil
	}

	derived := DeriveDetails(t.Topic)
	var issues []string
	check := func(field string, have, want *int32) {
		if have != nil && *have != *want {
			issues = append(issues, fmt.Sprintf(`%s is %d, partition graph says %d`, field, *have, *want))
		}
	}

	check(`partitionCount`, t.PartitionCount, derived.PartitionCount)
	check(`replicas`, t.Replicas, derived.Replicas)
	check(`inSyncReplicas`, t.InSyncReplicas, derived.InSyncReplicas)

	return issues
}

// clone returns a copy that shares nothing mutable with t.
func (t DetailedTopic) clone() DetailedTopic {
	c := DetailedTopic{
		Topic: Topic{
			Name:     t.Name,
			Internal: t.Internal,
		},
		Details: t.Details.Merge(Details{}),
	}

	if t.Partitions != nil {
		c.Partitions = make([]Partition, len(t.Partitions))
		for i, p := range t.Partitions {
			c.Partitions[i] = Partition{
				Partition: p.Partition,
				Leader:    p.Leader,
				Replicas:  append([]Replica(nil), p.Replicas...),
			}
		}
	}

	if t.Config != nil {
		c.Config = append([]Config{}, t.Config...)
	}

	return c
}
