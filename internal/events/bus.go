// Package events provides the typed engagement event bus. Events are keyed by
// (entity type, entity id); subscribers attach per entity or per concrete id.
// When Redis is available the bus also fans events out over pub/sub so
// external collaborators (e.g. the comment subsystem) can produce and consume
// engagement deltas without sharing tables.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fusionforge/internal/middleware"
	"fusionforge/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EntityType identifies the aggregate an event belongs to.
type EntityType string

// EntityFusionPost is the only entity the engine aggregates today.
const EntityFusionPost EntityType = "fusion_post"

// Type enumerates engagement event kinds.
type Type string

const (
	LikeAdded       Type = "like_added"
	LikeRemoved     Type = "like_removed"
	CommentAdded    Type = "comment_added"
	CommentRemoved  Type = "comment_removed"
	ShareRecorded   Type = "share_recorded"
	ViewRecorded    Type = "view_recorded"
	ForkRecorded    Type = "fork_recorded"
	CountersUpdated Type = "counters_updated"
)

// Counters is a snapshot of a post's denormalized engagement counters.
type Counters struct {
	Likes    int `json:"likes"`
	Forks    int `json:"forks"`
	Views    int `json:"views"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// Event is one typed engagement delta or counter snapshot.
type Event struct {
	Entity   EntityType `json:"entity"`
	EntityID uint       `json:"entity_id"`
	Type     Type       `json:"type"`
	ActorID  uint       `json:"actor_id,omitempty"`
	At       time.Time  `json:"at"`
	Counters *Counters  `json:"counters,omitempty"`
}

// IngestChannel is the Redis channel external producers publish events to.
const IngestChannel = "engagement:ingest"

// FanoutChannel returns the Redis channel events for one entity are mirrored to.
func FanoutChannel(entity EntityType, id uint) string {
	return fmt.Sprintf("engagement:%s:%d", entity, id)
}

type subKey struct {
	entity EntityType
	id     uint
}

const subscriberBuffer = 16

// Bus is an in-process typed event bus with optional Redis fanout.
type Bus struct {
	mu   sync.RWMutex
	subs map[subKey]map[chan Event]struct{}
	all  map[EntityType]map[chan Event]struct{}
	rdb  *redis.Client
}

// NewBus returns a Bus. rdb may be nil; the bus then stays purely in-process.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{
		subs: make(map[subKey]map[chan Event]struct{}),
		all:  make(map[EntityType]map[chan Event]struct{}),
		rdb:  rdb,
	}
}

// Subscribe registers for events of one concrete entity. The returned cancel
// function must be called when the subscriber goes away.
func (b *Bus) Subscribe(entity EntityType, id uint) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	k := subKey{entity: entity, id: id}

	b.mu.Lock()
	m, ok := b.subs[k]
	if !ok {
		m = make(map[chan Event]struct{})
		b.subs[k] = m
	}
	m[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if m, ok := b.subs[k]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(b.subs, k)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeAll registers for every event of an entity type regardless of id.
func (b *Bus) SubscribeAll(entity EntityType) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	m, ok := b.all[entity]
	if !ok {
		m = make(map[chan Event]struct{})
		b.all[entity] = m
	}
	m[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if m, ok := b.all[entity]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(b.all, entity)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to all matching local subscribers and mirrors it to the
// entity's Redis fanout channel. Delivery is non-blocking: a subscriber whose
// buffer is full drops the event and must reconcile from the authoritative
// store on its next read.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	for ch := range b.subs[subKey{entity: ev.Entity, id: ev.EntityID}] {
		select {
		case ch <- ev:
		default:
			observability.EventBusDrops.WithLabelValues(string(ev.Entity)).Inc()
		}
	}
	for ch := range b.all[ev.Entity] {
		select {
		case ch <- ev:
		default:
			observability.EventBusDrops.WithLabelValues(string(ev.Entity)).Inc()
		}
	}
	b.mu.RUnlock()

	if b.rdb != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "failed to marshal event for fanout",
				slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
			return
		}
		if err := b.rdb.Publish(ctx, FanoutChannel(ev.Entity, ev.EntityID), payload).Err(); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to fan out event",
				slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
		}
	}
}

// StartIngest subscribes to the external ingest channel and republishes each
// decoded event locally. It returns immediately; the subscriber goroutine
// stops when ctx is cancelled. No-op without Redis.
func (b *Bus) StartIngest(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}

	sub := b.rdb.Subscribe(ctx, IngestChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					middleware.Logger.Warn("invalid ingest event payload",
						slog.String("error", err.Error()))
					continue
				}
				if ev.Entity == "" || ev.EntityID == 0 {
					continue
				}
				b.Publish(ctx, ev)
			}
		}
	}()

	return nil
}
