package repository

import (
	"context"
	"errors"

	"fusionforge/internal/cache"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"

	"gorm.io/gorm"
)

// Counter names a denormalized counter column on fusion_posts. Counter update
// statements interpolate the column name, so only these values are accepted.
type Counter string

const (
	CounterLikes    Counter = "likes_count"
	CounterForks    Counter = "fork_count"
	CounterViews    Counter = "views_count"
	CounterComments Counter = "comment_count"
	CounterShares   Counter = "shares_count"
)

func (c Counter) valid() bool {
	switch c {
	case CounterLikes, CounterForks, CounterViews, CounterComments, CounterShares:
		return true
	}
	return false
}

// CounterSnapshot is one post's denormalized counters read in a single query.
type CounterSnapshot struct {
	LikesCount   int
	ForkCount    int
	ViewsCount   int
	CommentCount int
	SharesCount  int
}

// FusionPostRepository defines the interface for fusion post data operations
type FusionPostRepository interface {
	Create(ctx context.Context, post *models.FusionPost) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.FusionPost, error)
	List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.FusionPost, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int, currentUserID uint) ([]*models.FusionPost, error)
	ListIDs(ctx context.Context) ([]uint, error)
	CreateFork(ctx context.Context, fork *models.FusionPost) error
	IncrementCounter(ctx context.Context, id uint, counter Counter) error
	DecrementCounterFloored(ctx context.Context, id uint, counter Counter) error
	SetCounter(ctx context.Context, id uint, counter Counter, value int) error
	GetCounters(ctx context.Context, id uint) (*CounterSnapshot, error)
}

// fusionPostRepository implements FusionPostRepository
type fusionPostRepository struct {
	db *gorm.DB
}

// NewFusionPostRepository creates a new fusion post repository
func NewFusionPostRepository(db *gorm.DB) FusionPostRepository {
	return &fusionPostRepository{db: db}
}

func (r *fusionPostRepository) Create(ctx context.Context, post *models.FusionPost) error {
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Create(post).Error
	})
	if err == nil {
		cache.InvalidatePostsList(ctx)
	}
	return err
}

func (r *fusionPostRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.FusionPost, error) {
	var post models.FusionPost

	var err error
	if currentUserID == 0 {
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
			return r.applyLiked(r.db.WithContext(ctx), 0).
				Preload("Owner").
				First(&post, id).Error
		})
	} else {
		err = r.applyLiked(r.db.WithContext(ctx), currentUserID).
			Preload("Owner").
			First(&post, id).Error
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *fusionPostRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.FusionPost, error) {
	var posts []*models.FusionPost
	err := r.applyReadableScope(r.applyLiked(r.db.WithContext(ctx), currentUserID), currentUserID).
		Preload("Owner").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *fusionPostRepository) ListByOwner(ctx context.Context, ownerID uint, limit, offset int, currentUserID uint) ([]*models.FusionPost, error) {
	var posts []*models.FusionPost
	err := r.applyReadableScope(r.applyLiked(r.db.WithContext(ctx), currentUserID), currentUserID).
		Preload("Owner").
		Where("fusion_posts.owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *fusionPostRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.FusionPost{}).
		Pluck("id", &ids).Error
	return ids, err
}

// applyLiked adds a subquery computing whether currentUserID liked each post.
func (r *fusionPostRepository) applyLiked(db *gorm.DB, currentUserID uint) *gorm.DB {
	if currentUserID != 0 {
		return db.Select(
			"fusion_posts.*, EXISTS(SELECT 1 FROM likes WHERE likes.fusion_post_id = fusion_posts.id AND likes.user_id = ?) as liked",
			currentUserID,
		)
	}
	return db.Select("fusion_posts.*, false as liked")
}

// applyReadableScope restricts a listing to posts the requester may read per
// each post's privacy setting. Anonymous requesters see public posts only.
func (r *fusionPostRepository) applyReadableScope(db *gorm.DB, currentUserID uint) *gorm.DB {
	if currentUserID == 0 {
		return db.Where("fusion_posts.privacy = ?", models.PrivacyPublic)
	}
	return db.Where(
		`fusion_posts.privacy = ?
		 OR fusion_posts.owner_id = ?
		 OR (fusion_posts.privacy = ? AND EXISTS(
		     SELECT 1 FROM follows
		     WHERE (follows.follower_id = ? AND follows.followee_id = fusion_posts.owner_id)
		        OR (follows.follower_id = fusion_posts.owner_id AND follows.followee_id = ?)))
		 OR (fusion_posts.privacy = ? AND EXISTS(
		     SELECT 1 FROM layer_invites
		     WHERE layer_invites.fusion_post_id = fusion_posts.id AND layer_invites.user_id = ?))`,
		models.PrivacyPublic,
		currentUserID,
		models.PrivacyFollowers, currentUserID, currentUserID,
		models.PrivacyInvited, currentUserID,
	)
}

// CreateFork inserts the derived post and increments the source's fork_count
// in one transaction. fork.ForkedFromID must be set; a missing source rolls
// the whole operation back.
func (r *fusionPostRepository) CreateFork(ctx context.Context, fork *models.FusionPost) error {
	if fork.ForkedFromID == nil {
		return errors.New("fork has no source post")
	}
	sourceID := *fork.ForkedFromID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fork).Error; err != nil {
			return err
		}
		res := tx.Model(&models.FusionPost{}).
			Where("id = ?", sourceID).
			UpdateColumn("fork_count", gorm.Expr("fork_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err == nil {
		cache.InvalidatePost(ctx, sourceID)
		cache.InvalidatePostsList(ctx)
	}
	return err
}

func (r *fusionPostRepository) IncrementCounter(ctx context.Context, id uint, counter Counter) error {
	if !counter.valid() {
		return errors.New("unknown counter column")
	}
	defer observability.TrackQuery("update", "fusion_posts")()

	err := r.db.WithContext(ctx).Model(&models.FusionPost{}).
		Where("id = ?", id).
		UpdateColumn(string(counter), gorm.Expr(string(counter)+" + 1")).Error
	if err == nil {
		cache.InvalidatePost(ctx, id)
	}
	return err
}

// DecrementCounterFloored decrements a counter by one unless it is already
// zero. A decrement at zero is a silent no-op.
func (r *fusionPostRepository) DecrementCounterFloored(ctx context.Context, id uint, counter Counter) error {
	if !counter.valid() {
		return errors.New("unknown counter column")
	}
	defer observability.TrackQuery("update", "fusion_posts")()

	err := r.db.WithContext(ctx).Model(&models.FusionPost{}).
		Where("id = ? AND "+string(counter)+" > 0", id).
		UpdateColumn(string(counter), gorm.Expr(string(counter)+" - 1")).Error
	if err == nil {
		cache.InvalidatePost(ctx, id)
	}
	return err
}

func (r *fusionPostRepository) SetCounter(ctx context.Context, id uint, counter Counter, value int) error {
	if !counter.valid() {
		return errors.New("unknown counter column")
	}
	if value < 0 {
		value = 0
	}
	err := r.db.WithContext(ctx).Model(&models.FusionPost{}).
		Where("id = ?", id).
		UpdateColumn(string(counter), value).Error
	if err == nil {
		cache.InvalidatePost(ctx, id)
	}
	return err
}

func (r *fusionPostRepository) GetCounters(ctx context.Context, id uint) (*CounterSnapshot, error) {
	var snap CounterSnapshot
	res := r.db.WithContext(ctx).Model(&models.FusionPost{}).
		Select("likes_count, fork_count, views_count, comment_count, shares_count").
		Where("id = ?", id).
		Scan(&snap)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &snap, nil
}
