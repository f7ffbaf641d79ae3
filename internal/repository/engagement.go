package repository

import (
	"context"

	"fusionforge/internal/cache"
	"fusionforge/internal/models"

	"gorm.io/gorm"
)

// EngagementRepository owns the like-set and the authoritative counts derived
// from membership tables. The like-set, not the cached counter, decides
// whether a user's like is counted.
type EngagementRepository interface {
	AddLike(ctx context.Context, userID, postID uint) (bool, error)
	RemoveLike(ctx context.Context, userID, postID uint) (bool, error)
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	CountLikes(ctx context.Context, postID uint) (int, error)
	CountForks(ctx context.Context, postID uint) (int, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
}

// engagementRepository implements EngagementRepository
type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// AddLike inserts a like-set member, tolerating concurrent duplicates. It
// reports whether this call added the row; a repeat like is a no-op.
func (r *engagementRepository) AddLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO likes (user_id, fusion_post_id, created_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, fusion_post_id) DO NOTHING`,
		userID, postID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return res.RowsAffected > 0, nil
}

// RemoveLike deletes a like-set member. Removing an absent member is a no-op.
func (r *engagementRepository) RemoveLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND fusion_post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return res.RowsAffected > 0, nil
}

func (r *engagementRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND fusion_post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountLikes returns the like-set cardinality for a post.
func (r *engagementRepository) CountLikes(ctx context.Context, postID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("fusion_post_id = ?", postID).
		Count(&count).Error
	return int(count), err
}

// CountForks returns the number of posts whose lineage points at postID.
func (r *engagementRepository) CountForks(ctx context.Context, postID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FusionPost{}).
		Where("forked_from_id = ?", postID).
		Count(&count).Error
	return int(count), err
}

func (r *engagementRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND fusion_post_id IN ?", userID, postIDs).
		Pluck("fusion_post_id", &liked).Error
	return liked, err
}
