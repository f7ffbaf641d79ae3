package service

import (
	"context"
	"log/slog"
	"time"

	"fusionforge/internal/events"
	"fusionforge/internal/middleware"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"
	"fusionforge/internal/repository"
)

// EngagementService is the engagement aggregator: the single component that
// turns typed engagement events into counter mutations. Like counters
// reconcile against the like-set rather than applying deltas, so duplicate or
// out-of-order events converge on the same value. Counters are caches; a
// periodic recount trues them up against the membership tables.
type EngagementService struct {
	postRepo repository.FusionPostRepository
	engRepo  repository.EngagementRepository
	bus      *events.Bus
}

// NewEngagementService creates a new engagement service
func NewEngagementService(
	postRepo repository.FusionPostRepository,
	engRepo repository.EngagementRepository,
	bus *events.Bus,
) *EngagementService {
	return &EngagementService{
		postRepo: postRepo,
		engRepo:  engRepo,
		bus:      bus,
	}
}

// Apply applies one engagement event to its post's counters and publishes the
// resulting snapshot. Safe to call with duplicate or out-of-order events.
func (s *EngagementService) Apply(ctx context.Context, ev events.Event) error {
	if ev.Entity != events.EntityFusionPost || ev.EntityID == 0 {
		return models.NewValidationError("Event is not addressed to a fusion post")
	}
	observability.EngagementEvents.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case events.LikeAdded, events.LikeRemoved:
		// Reconcile against the authoritative set: a LikeRemoved arriving
		// before its LikeAdded still converges on cardinality.
		n, err := s.engRepo.CountLikes(ctx, ev.EntityID)
		if err != nil {
			return err
		}
		if err := s.postRepo.SetCounter(ctx, ev.EntityID, repository.CounterLikes, n); err != nil {
			return err
		}
	case events.CommentAdded:
		if err := s.postRepo.IncrementCounter(ctx, ev.EntityID, repository.CounterComments); err != nil {
			return err
		}
	case events.CommentRemoved:
		if err := s.postRepo.DecrementCounterFloored(ctx, ev.EntityID, repository.CounterComments); err != nil {
			return err
		}
	case events.ShareRecorded:
		if err := s.postRepo.IncrementCounter(ctx, ev.EntityID, repository.CounterShares); err != nil {
			return err
		}
	case events.ViewRecorded:
		if err := s.postRepo.IncrementCounter(ctx, ev.EntityID, repository.CounterViews); err != nil {
			return err
		}
	case events.ForkRecorded:
		// fork_count is incremented inside the fork transaction; the event
		// only triggers a fresh snapshot for live consumers.
	case events.CountersUpdated:
		// Our own output; nothing to apply.
		return nil
	default:
		return models.NewValidationError("Unknown engagement event type " + string(ev.Type))
	}

	s.publishSnapshot(ctx, ev.EntityID)
	return nil
}

// publishSnapshot pushes the current counter values for live consumers. Best
// effort: a failed read only costs one update, the next event re-publishes.
func (s *EngagementService) publishSnapshot(ctx context.Context, postID uint) {
	if s.bus == nil {
		return
	}
	snap, err := s.postRepo.GetCounters(ctx, postID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to read counters for snapshot",
			slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return
	}
	s.bus.Publish(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: postID,
		Type:     events.CountersUpdated,
		Counters: &events.Counters{
			Likes:    snap.LikesCount,
			Forks:    snap.ForkCount,
			Views:    snap.ViewsCount,
			Comments: snap.CommentCount,
			Shares:   snap.SharesCount,
		},
	})
}

// Run consumes events published to the bus by external producers (e.g. the
// comment subsystem over the Redis ingest channel) and applies them. Local
// operations call Apply directly and never publish their own deltas, so
// nothing is counted twice. Blocks until ctx is cancelled.
func (s *EngagementService) Run(ctx context.Context) {
	if s.bus == nil {
		return
	}
	ch, cancel := s.bus.SubscribeAll(events.EntityFusionPost)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if ev.Type == events.CountersUpdated {
				continue
			}
			if err := s.Apply(ctx, ev); err != nil {
				logEventApplyFailure(ctx, ev, err)
			}
		}
	}
}

func logEventApplyFailure(ctx context.Context, ev events.Event, err error) {
	middleware.Logger.WarnContext(ctx, "failed to apply engagement event",
		slog.String("type", string(ev.Type)),
		slog.Uint64("post_id", uint64(ev.EntityID)),
		slog.String("error", err.Error()))
}

// RunRecount periodically replaces the cached like and fork counters with
// authoritative counts from the membership tables. Blocks until ctx is
// cancelled.
func (s *EngagementService) RunRecount(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RecountAll(ctx); err != nil {
				middleware.Logger.WarnContext(ctx, "counter recount failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// RecountAll trues up like and fork counters for every post.
func (s *EngagementService) RecountAll(ctx context.Context) error {
	ids, err := s.postRepo.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.recountPost(ctx, id); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to recount post",
				slog.Uint64("post_id", uint64(id)), slog.String("error", err.Error()))
		}
	}
	observability.CounterRecounts.Inc()
	return nil
}

func (s *EngagementService) recountPost(ctx context.Context, postID uint) error {
	likes, err := s.engRepo.CountLikes(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.postRepo.SetCounter(ctx, postID, repository.CounterLikes, likes); err != nil {
		return err
	}

	forks, err := s.engRepo.CountForks(ctx, postID)
	if err != nil {
		return err
	}
	return s.postRepo.SetCounter(ctx, postID, repository.CounterForks, forks)
}
