package service

import (
	"context"
	"testing"
	"time"

	"fusionforge/internal/events"
	"fusionforge/internal/models"
	"fusionforge/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// likeSet is a tiny in-memory like-set letting aggregator tests exercise real
// reconciliation semantics.
type likeSet map[[2]uint]struct{}

func (ls likeSet) repo() *engagementRepoStub {
	stub := noopEngagementRepo()
	stub.addLikeFn = func(_ context.Context, userID, postID uint) (bool, error) {
		key := [2]uint{userID, postID}
		if _, ok := ls[key]; ok {
			return false, nil
		}
		ls[key] = struct{}{}
		return true, nil
	}
	stub.removeLikeFn = func(_ context.Context, userID, postID uint) (bool, error) {
		key := [2]uint{userID, postID}
		if _, ok := ls[key]; !ok {
			return false, nil
		}
		delete(ls, key)
		return true, nil
	}
	stub.countLikesFn = func(_ context.Context, postID uint) (int, error) {
		n := 0
		for key := range ls {
			if key[1] == postID {
				n++
			}
		}
		return n, nil
	}
	return stub
}

// counterBoard tracks SetCounter/Increment/Decrement calls per column.
type counterBoard map[repository.Counter]int

func (cb counterBoard) repo() *fusionPostRepoStub {
	stub := noopFusionPostRepo()
	stub.setCounterFn = func(_ context.Context, _ uint, c repository.Counter, v int) error {
		cb[c] = v
		return nil
	}
	stub.incrementCounterFn = func(_ context.Context, _ uint, c repository.Counter) error {
		cb[c]++
		return nil
	}
	stub.decrementFlooredFn = func(_ context.Context, _ uint, c repository.Counter) error {
		if cb[c] > 0 {
			cb[c]--
		}
		return nil
	}
	stub.getCountersFn = func(_ context.Context, _ uint) (*repository.CounterSnapshot, error) {
		return &repository.CounterSnapshot{
			LikesCount:   cb[repository.CounterLikes],
			ForkCount:    cb[repository.CounterForks],
			ViewsCount:   cb[repository.CounterViews],
			CommentCount: cb[repository.CounterComments],
			SharesCount:  cb[repository.CounterShares],
		}, nil
	}
	return stub
}

func likeEvent(t events.Type, userID uint) events.Event {
	return events.Event{Entity: events.EntityFusionPost, EntityID: 1, Type: t, ActorID: userID}
}

func TestEngagementService_Apply_LikeReconciliation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	set := likeSet{}
	counters := counterBoard{}
	engRepo := set.repo()
	svc := NewEngagementService(counters.repo(), engRepo, nil)

	// A duplicate LikeAdded converges on the same cardinality.
	_, err := engRepo.AddLike(ctx, 2, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeAdded, 2)))
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeAdded, 2)))
	assert.Equal(t, 1, counters[repository.CounterLikes])

	// A second distinct user raises the count to 2.
	_, err = engRepo.AddLike(ctx, 3, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeAdded, 3)))
	assert.Equal(t, 2, counters[repository.CounterLikes])

	// Unlike by a member drops to 1; unlike by a stranger changes nothing.
	_, err = engRepo.RemoveLike(ctx, 2, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeRemoved, 2)))
	assert.Equal(t, 1, counters[repository.CounterLikes])

	_, err = engRepo.RemoveLike(ctx, 9, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeRemoved, 9)))
	assert.Equal(t, 1, counters[repository.CounterLikes])
	assert.GreaterOrEqual(t, counters[repository.CounterLikes], 0)
}

func TestEngagementService_Apply_OutOfOrderLikeEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	set := likeSet{}
	counters := counterBoard{}
	svc := NewEngagementService(counters.repo(), set.repo(), nil)

	// The LikeRemoved event for user 5 is processed before its LikeAdded.
	// Reconciling against the set, not applying deltas, keeps the counter at
	// the set cardinality throughout.
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeRemoved, 5)))
	assert.Equal(t, 0, counters[repository.CounterLikes])

	set[[2]uint{5, 1}] = struct{}{}
	require.NoError(t, svc.Apply(ctx, likeEvent(events.LikeAdded, 5)))
	assert.Equal(t, 1, counters[repository.CounterLikes])
}

func TestEngagementService_Apply_CommentFloor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	counters := counterBoard{}
	svc := NewEngagementService(counters.repo(), noopEngagementRepo(), nil)

	ev := func(t events.Type) events.Event {
		return events.Event{Entity: events.EntityFusionPost, EntityID: 1, Type: t}
	}

	// A CommentRemoved before any CommentAdded must not go negative.
	require.NoError(t, svc.Apply(ctx, ev(events.CommentRemoved)))
	assert.Equal(t, 0, counters[repository.CounterComments])

	require.NoError(t, svc.Apply(ctx, ev(events.CommentAdded)))
	require.NoError(t, svc.Apply(ctx, ev(events.CommentAdded)))
	require.NoError(t, svc.Apply(ctx, ev(events.CommentRemoved)))
	assert.Equal(t, 1, counters[repository.CounterComments])
}

func TestEngagementService_Apply_MonotoneCounters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	counters := counterBoard{}
	svc := NewEngagementService(counters.repo(), noopEngagementRepo(), nil)

	ev := func(t events.Type) events.Event {
		return events.Event{Entity: events.EntityFusionPost, EntityID: 1, Type: t}
	}

	require.NoError(t, svc.Apply(ctx, ev(events.ShareRecorded)))
	require.NoError(t, svc.Apply(ctx, ev(events.ShareRecorded)))
	require.NoError(t, svc.Apply(ctx, ev(events.ViewRecorded)))
	assert.Equal(t, 2, counters[repository.CounterShares])
	assert.Equal(t, 1, counters[repository.CounterViews])

	// ForkRecorded never touches the counter here; the fork transaction
	// already did.
	require.NoError(t, svc.Apply(ctx, ev(events.ForkRecorded)))
	assert.Equal(t, 0, counters[repository.CounterForks])
}

func TestEngagementService_Apply_RejectsMalformedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewEngagementService(noopFusionPostRepo(), noopEngagementRepo(), nil)

	assertErrorCode(t, svc.Apply(ctx, events.Event{Type: events.LikeAdded}), models.CodeValidation)
	assertErrorCode(t, svc.Apply(ctx, events.Event{
		Entity: events.EntityFusionPost, EntityID: 1, Type: events.Type("mystery"),
	}), models.CodeValidation)
}

func TestEngagementService_Apply_PublishesSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	counters := counterBoard{}
	bus := events.NewBus(nil)
	svc := NewEngagementService(counters.repo(), noopEngagementRepo(), bus)

	ch, cancel := bus.Subscribe(events.EntityFusionPost, 1)
	defer cancel()

	require.NoError(t, svc.Apply(ctx, events.Event{
		Entity: events.EntityFusionPost, EntityID: 1, Type: events.ShareRecorded,
	}))

	select {
	case ev := <-ch:
		assert.Equal(t, events.CountersUpdated, ev.Type)
		require.NotNil(t, ev.Counters)
		assert.Equal(t, 1, ev.Counters.Shares)
	case <-time.After(time.Second):
		t.Fatal("expected a counter snapshot on the bus")
	}
}

func TestEngagementService_RecountAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	counters := counterBoard{}
	postRepo := counters.repo()
	postRepo.listIDsFn = func(_ context.Context) ([]uint, error) { return []uint{1}, nil }

	engRepo := noopEngagementRepo()
	engRepo.countLikesFn = func(_ context.Context, _ uint) (int, error) { return 7, nil }
	engRepo.countForksFn = func(_ context.Context, _ uint) (int, error) { return 3, nil }

	svc := NewEngagementService(postRepo, engRepo, nil)
	require.NoError(t, svc.RecountAll(ctx))

	assert.Equal(t, 7, counters[repository.CounterLikes])
	assert.Equal(t, 3, counters[repository.CounterForks])
}
