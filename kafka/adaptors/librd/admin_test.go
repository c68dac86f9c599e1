package librd

import (
	"testing"

	librdKafka "github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/gmbyapa/ktopics/topic"
)

func TestRawTopic(t *testing.T) {
	raw := rawTopic(librdKafka.TopicMetadata{
		Topic: `__consumer_offsets`,
		Partitions: []librdKafka.PartitionMetadata{
			{ID: 1, Leader: 3, Replicas: []int32{3, 1}},
			{ID: 0, Leader: 1, Replicas: []int32{1, 2}},
		},
	})

	if !raw.Internal {
		t.Error(`expected internal topic`)
	}

	tp, err := topic.NewTopic(raw)
	if err != nil {
		t.Fatal(err)
	}

	if tp.Partitions[0].Partition != 0 || tp.Partitions[1].LeaderReplica().Broker != 3 {
		t.Errorf(`unexpected partitions %+v`, tp.Partitions)
	}
}

func TestDefaultValue(t *testing.T) {
	entry := librdKafka.ConfigEntryResult{
		Name:   `retention.ms`,
		Value:  `1000`,
		Source: librdKafka.ConfigSourceDynamicTopic,
		Synonyms: map[string]librdKafka.ConfigEntryResult{
			`retention.ms`:        {Name: `retention.ms`, Value: `1000`, Source: librdKafka.ConfigSourceDynamicTopic},
			`log.retention.hours`: {Name: `log.retention.hours`, Value: `168`, Source: librdKafka.ConfigSourceDefault},
			`log.retention.ms`:    {Name: `log.retention.ms`, Value: `86400000`, Source: librdKafka.ConfigSourceStaticBroker},
		},
	}

	for i := 0; i < 20; i++ {
		if v := defaultValue(entry); v != `86400000` {
			t.Fatalf(`want 86400000 have %s`, v)
		}
	}

	if v := defaultValue(librdKafka.ConfigEntryResult{Value: `delete`, Source: librdKafka.ConfigSourceDefault}); v != `delete` {
		t.Errorf(`want delete have %s`, v)
	}
}

func TestDefaultValue_Without_Synonyms(t *testing.T) {
	v := defaultValue(librdKafka.ConfigEntryResult{
		Name:   `segment.ms`,
		Value:  `1000`,
		Source: librdKafka.ConfigSourceDynamicTopic,
	})
	if v != `604800000` {
		t.Errorf(`want 604800000 have %s`, v)
	}

	v = defaultValue(librdKafka.ConfigEntryResult{
		Name:   `unknown.setting`,
		Value:  `1`,
		Source: librdKafka.ConfigSourceDynamicTopic,
	})
	if v != `` {
		t.Errorf(`expected empty default have %s`, v)
	}
}
