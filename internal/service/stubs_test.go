package service

import (
	"context"
	"errors"
	"testing"

	"fusionforge/internal/models"
	"fusionforge/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fusionPostRepoStub is a stub for repository.FusionPostRepository.
type fusionPostRepoStub struct {
	createFn           func(context.Context, *models.FusionPost) error
	getByIDFn          func(context.Context, uint, uint) (*models.FusionPost, error)
	listFn             func(context.Context, int, int, uint) ([]*models.FusionPost, error)
	listByOwnerFn      func(context.Context, uint, int, int, uint) ([]*models.FusionPost, error)
	listIDsFn          func(context.Context) ([]uint, error)
	createForkFn       func(context.Context, *models.FusionPost) error
	incrementCounterFn func(context.Context, uint, repository.Counter) error
	decrementFlooredFn func(context.Context, uint, repository.Counter) error
	setCounterFn       func(context.Context, uint, repository.Counter, int) error
	getCountersFn      func(context.Context, uint) (*repository.CounterSnapshot, error)
}

func (s *fusionPostRepoStub) Create(ctx context.Context, post *models.FusionPost) error {
	return s.createFn(ctx, post)
}
func (s *fusionPostRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.FusionPost, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *fusionPostRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.FusionPost, error) {
	return s.listFn(ctx, limit, offset, currentUserID)
}
func (s *fusionPostRepoStub) ListByOwner(ctx context.Context, ownerID uint, limit, offset int, currentUserID uint) ([]*models.FusionPost, error) {
	return s.listByOwnerFn(ctx, ownerID, limit, offset, currentUserID)
}
func (s *fusionPostRepoStub) ListIDs(ctx context.Context) ([]uint, error) {
	return s.listIDsFn(ctx)
}
func (s *fusionPostRepoStub) CreateFork(ctx context.Context, fork *models.FusionPost) error {
	return s.createForkFn(ctx, fork)
}
func (s *fusionPostRepoStub) IncrementCounter(ctx context.Context, id uint, counter repository.Counter) error {
	return s.incrementCounterFn(ctx, id, counter)
}
func (s *fusionPostRepoStub) DecrementCounterFloored(ctx context.Context, id uint, counter repository.Counter) error {
	return s.decrementFlooredFn(ctx, id, counter)
}
func (s *fusionPostRepoStub) SetCounter(ctx context.Context, id uint, counter repository.Counter, value int) error {
	return s.setCounterFn(ctx, id, counter, value)
}
func (s *fusionPostRepoStub) GetCounters(ctx context.Context, id uint) (*repository.CounterSnapshot, error) {
	return s.getCountersFn(ctx, id)
}

func noopFusionPostRepo() *fusionPostRepoStub {
	return &fusionPostRepoStub{
		createFn: func(_ context.Context, p *models.FusionPost) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.FusionPost, error) {
			return &models.FusionPost{ID: id}, nil
		},
		listFn: func(_ context.Context, _, _ int, _ uint) ([]*models.FusionPost, error) { return nil, nil },
		listByOwnerFn: func(_ context.Context, _ uint, _, _ int, _ uint) ([]*models.FusionPost, error) {
			return nil, nil
		},
		listIDsFn:          func(_ context.Context) ([]uint, error) { return nil, nil },
		createForkFn:       func(_ context.Context, f *models.FusionPost) error { f.ID = 2; return nil },
		incrementCounterFn: func(_ context.Context, _ uint, _ repository.Counter) error { return nil },
		decrementFlooredFn: func(_ context.Context, _ uint, _ repository.Counter) error { return nil },
		setCounterFn:       func(_ context.Context, _ uint, _ repository.Counter, _ int) error { return nil },
		getCountersFn: func(_ context.Context, _ uint) (*repository.CounterSnapshot, error) {
			return &repository.CounterSnapshot{}, nil
		},
	}
}

// layerRepoStub is a stub for repository.LayerRepository.
type layerRepoStub struct {
	createWithNextOrderFn func(context.Context, *models.Layer) error
	getByIDFn             func(context.Context, uint) (*models.Layer, error)
	listByPostFn          func(context.Context, uint) ([]*models.Layer, error)
	approveFn             func(context.Context, uint, uint) (bool, error)
}

func (s *layerRepoStub) CreateWithNextOrder(ctx context.Context, layer *models.Layer) error {
	return s.createWithNextOrderFn(ctx, layer)
}
func (s *layerRepoStub) GetByID(ctx context.Context, id uint) (*models.Layer, error) {
	return s.getByIDFn(ctx, id)
}
func (s *layerRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Layer, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *layerRepoStub) Approve(ctx context.Context, layerID, postID uint) (bool, error) {
	return s.approveFn(ctx, layerID, postID)
}

func noopLayerRepo() *layerRepoStub {
	order := 0
	return &layerRepoStub{
		createWithNextOrderFn: func(_ context.Context, l *models.Layer) error {
			order++
			l.ID = uint(order)
			l.LayerOrder = order
			return nil
		},
		getByIDFn:    func(_ context.Context, id uint) (*models.Layer, error) { return &models.Layer{ID: id}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Layer, error) { return nil, nil },
		approveFn:    func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// engagementRepoStub is a stub for repository.EngagementRepository.
type engagementRepoStub struct {
	addLikeFn      func(context.Context, uint, uint) (bool, error)
	removeLikeFn   func(context.Context, uint, uint) (bool, error)
	isLikedFn      func(context.Context, uint, uint) (bool, error)
	countLikesFn   func(context.Context, uint) (int, error)
	countForksFn   func(context.Context, uint) (int, error)
	likedPostIDsFn func(context.Context, uint, []uint) ([]uint, error)
}

func (s *engagementRepoStub) AddLike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.addLikeFn(ctx, userID, postID)
}
func (s *engagementRepoStub) RemoveLike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.removeLikeFn(ctx, userID, postID)
}
func (s *engagementRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *engagementRepoStub) CountLikes(ctx context.Context, postID uint) (int, error) {
	return s.countLikesFn(ctx, postID)
}
func (s *engagementRepoStub) CountForks(ctx context.Context, postID uint) (int, error) {
	return s.countForksFn(ctx, postID)
}
func (s *engagementRepoStub) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.likedPostIDsFn(ctx, userID, postIDs)
}

func noopEngagementRepo() *engagementRepoStub {
	return &engagementRepoStub{
		addLikeFn:      func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		removeLikeFn:   func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		isLikedFn:      func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		countLikesFn:   func(_ context.Context, _ uint) (int, error) { return 0, nil },
		countForksFn:   func(_ context.Context, _ uint) (int, error) { return 0, nil },
		likedPostIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
	}
}

// graphRepoStub is a stub for repository.GraphRepository.
type graphRepoStub struct {
	isConnectedFn           func(context.Context, uint, uint) (bool, error)
	isInvitedFn             func(context.Context, uint, uint) (bool, error)
	inCloseCircleFn         func(context.Context, uint, uint) (bool, error)
	followFn                func(context.Context, uint, uint) error
	unfollowFn              func(context.Context, uint, uint) error
	inviteFn                func(context.Context, uint, uint, uint) error
	revokeInviteFn          func(context.Context, uint, uint) error
	listInvitesFn           func(context.Context, uint) ([]*models.LayerInvite, error)
	addToCloseCircleFn      func(context.Context, uint, uint) error
	removeFromCloseCircleFn func(context.Context, uint, uint) error
}

func (s *graphRepoStub) IsConnected(ctx context.Context, a, b uint) (bool, error) {
	return s.isConnectedFn(ctx, a, b)
}
func (s *graphRepoStub) IsInvited(ctx context.Context, postID, userID uint) (bool, error) {
	return s.isInvitedFn(ctx, postID, userID)
}
func (s *graphRepoStub) InCloseCircle(ctx context.Context, ownerID, memberID uint) (bool, error) {
	return s.inCloseCircleFn(ctx, ownerID, memberID)
}
func (s *graphRepoStub) Follow(ctx context.Context, followerID, followeeID uint) error {
	return s.followFn(ctx, followerID, followeeID)
}
func (s *graphRepoStub) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return s.unfollowFn(ctx, followerID, followeeID)
}
func (s *graphRepoStub) Invite(ctx context.Context, postID, userID, invitedByID uint) error {
	return s.inviteFn(ctx, postID, userID, invitedByID)
}
func (s *graphRepoStub) RevokeInvite(ctx context.Context, postID, userID uint) error {
	return s.revokeInviteFn(ctx, postID, userID)
}
func (s *graphRepoStub) ListInvites(ctx context.Context, postID uint) ([]*models.LayerInvite, error) {
	return s.listInvitesFn(ctx, postID)
}
func (s *graphRepoStub) AddToCloseCircle(ctx context.Context, ownerID, memberID uint) error {
	return s.addToCloseCircleFn(ctx, ownerID, memberID)
}
func (s *graphRepoStub) RemoveFromCloseCircle(ctx context.Context, ownerID, memberID uint) error {
	return s.removeFromCloseCircleFn(ctx, ownerID, memberID)
}

func noopGraphRepo() *graphRepoStub {
	return &graphRepoStub{
		isConnectedFn:           func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		isInvitedFn:             func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		inCloseCircleFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		followFn:                func(_ context.Context, _, _ uint) error { return nil },
		unfollowFn:              func(_ context.Context, _, _ uint) error { return nil },
		inviteFn:                func(_ context.Context, _, _, _ uint) error { return nil },
		revokeInviteFn:          func(_ context.Context, _, _ uint) error { return nil },
		listInvitesFn:           func(_ context.Context, _ uint) ([]*models.LayerInvite, error) { return nil, nil },
		addToCloseCircleFn:      func(_ context.Context, _, _ uint) error { return nil },
		removeFromCloseCircleFn: func(_ context.Context, _, _ uint) error { return nil },
	}
}

// assertErrorCode asserts that err is an AppError carrying the given code.
func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
