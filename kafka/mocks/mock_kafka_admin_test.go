package mocks

import (
	"context"
	"testing"

	"github.com/gmbyapa/ktopics/kafka"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
)

func TestMockKafkaAdmin_Listing_Is_Valid(t *testing.T) {
	ctx := context.Background()
	admin := NewMockAdmin(1, 2, 3)

	d := form.NewData()
	d.Name = `orders`
	d.Partitions = 4
	d.ReplicationFactor = 3
	if err := admin.CreateTopic(ctx, d.Format()); err != nil {
		t.Fatal(err)
	}

	listing, err := admin.ListTopics(ctx)
	if err != nil {
		t.Fatal(err)
	}

	state := topic.NewState()
	if err := state.ApplyTopics(listing); err != nil {
		t.Fatal(err)
	}

	tp, ok := state.Topic(`orders`)
	if !ok {
		t.Fatal(`topic missing`)
	}

	if len(tp.Partitions) != 4 || *tp.ReplicationFactor != 3 {
		t.Errorf(`unexpected topic %+v`, tp)
	}

	if err := admin.CreateTopic(ctx, d.Format()); err == nil {
		t.Error(`expected duplicate topic error`)
	}
}

func TestMockKafkaAdmin_FetchMessages(t *testing.T) {
	ctx := context.Background()
	admin := NewMockAdmin()
	if err := admin.Topics.AddTopic(&MockTopic{Name: `events`}, 1, 1); err != nil {
		t.Fatal(err)
	}

	tp, _ := admin.Topics.Topic(`events`)
	pt, _ := tp.Partition(0)
	for i := 0; i < 10; i++ {
		pt.Append(topic.Message{Content: `v`})
	}

	msgs, err := admin.FetchMessages(ctx, kafka.FetchRequest{Topic: `events`, Offset: kafka.Latest, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 3 || msgs[0].Offset != 7 || msgs[2].Offset != 9 {
		t.Errorf(`unexpected messages %+v`, msgs)
	}

	msgs, err = admin.FetchMessages(ctx, kafka.FetchRequest{Topic: `events`, Offset: kafka.Earliest, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Offset != 0 {
		t.Errorf(`unexpected messages %+v`, msgs)
	}

	if _, err := admin.FetchMessages(ctx, kafka.FetchRequest{Topic: `events`, Partition: 4, Limit: 2}); err == nil {
		t.Error(`expected unknown partition error`)
	}
}

func TestMockKafkaAdmin_DeleteTopic_Idempotent(t *testing.T) {
	ctx := context.Background()
	admin := NewMockAdmin()
	if err := admin.Topics.AddTopic(&MockTopic{Name: `events`}, 1, 1); err != nil {
		t.Fatal(err)
	}

	if err := admin.DeleteTopic(ctx, `events`); err != nil {
		t.Fatal(err)
	}

	if err := admin.DeleteTopic(ctx, `events`); err != nil {
		t.Error(err)
	}
}
