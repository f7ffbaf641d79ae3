package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewBus(nil)

	ch, cancel := bus.Subscribe(EntityFusionPost, 42)
	defer cancel()

	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 42, Type: LikeAdded, ActorID: 7})
	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 99, Type: LikeAdded, ActorID: 7})

	got := recvEvent(t, ch)
	assert.Equal(t, LikeAdded, got.Type)
	assert.Equal(t, uint(42), got.EntityID)
	assert.Equal(t, uint(7), got.ActorID)
	assert.False(t, got.At.IsZero())

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other entity: %+v", ev)
	default:
	}
}

func TestBusSubscribeAllReceivesEveryID(t *testing.T) {
	bus := NewBus(nil)

	ch, cancel := bus.SubscribeAll(EntityFusionPost)
	defer cancel()

	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 1, Type: ViewRecorded})
	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 2, Type: ShareRecorded})

	first := recvEvent(t, ch)
	second := recvEvent(t, ch)
	assert.Equal(t, uint(1), first.EntityID)
	assert.Equal(t, uint(2), second.EntityID)
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus(nil)

	ch, cancel := bus.Subscribe(EntityFusionPost, 5)
	cancel()

	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 5, Type: LikeAdded})

	select {
	case ev := <-ch:
		t.Fatalf("received event after cancel: %+v", ev)
	default:
	}
}

func TestBusFullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(nil)

	ch, cancel := bus.Subscribe(EntityFusionPost, 8)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 8, Type: ViewRecorded})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBusFansOutToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	bus := NewBus(rdb)

	sub := rdb.Subscribe(context.Background(), FanoutChannel(EntityFusionPost, 3))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Entity: EntityFusionPost, EntityID: 3, Type: CountersUpdated, Counters: &Counters{Likes: 4}})

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, CountersUpdated, ev.Type)
		require.NotNil(t, ev.Counters)
		assert.Equal(t, 4, ev.Counters.Likes)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fanout message")
	}
}

func TestBusIngestRepublishesLocally(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	bus := NewBus(rdb)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	require.NoError(t, bus.StartIngest(ctx))

	ch, cancel := bus.Subscribe(EntityFusionPost, 11)
	defer cancel()

	payload, err := json.Marshal(Event{Entity: EntityFusionPost, EntityID: 11, Type: CommentAdded, ActorID: 2})
	require.NoError(t, err)

	// The subscriber goroutine needs a moment to attach before we publish.
	require.Eventually(t, func() bool {
		if err := rdb.Publish(context.Background(), IngestChannel, payload).Err(); err != nil {
			return false
		}
		select {
		case ev := <-ch:
			assert.Equal(t, CommentAdded, ev.Type)
			assert.Equal(t, uint(11), ev.EntityID)
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFanoutChannelName(t *testing.T) {
	assert.Equal(t, "engagement:fusion_post:12", FanoutChannel(EntityFusionPost, 12))
}
