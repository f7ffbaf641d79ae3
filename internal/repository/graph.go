package repository

import (
	"context"

	"fusionforge/internal/models"

	"gorm.io/gorm"
)

// GraphRepository reads and writes the social-graph tables the access
// controller consults: follows, per-post invite lists, and close circles.
// Eligibility checks always hit the store so a relationship change takes
// effect on the very next submission.
type GraphRepository interface {
	IsConnected(ctx context.Context, userA, userB uint) (bool, error)
	IsInvited(ctx context.Context, postID, userID uint) (bool, error)
	InCloseCircle(ctx context.Context, ownerID, memberID uint) (bool, error)

	Follow(ctx context.Context, followerID, followeeID uint) error
	Unfollow(ctx context.Context, followerID, followeeID uint) error

	Invite(ctx context.Context, postID, userID, invitedByID uint) error
	RevokeInvite(ctx context.Context, postID, userID uint) error
	ListInvites(ctx context.Context, postID uint) ([]*models.LayerInvite, error)

	AddToCloseCircle(ctx context.Context, ownerID, memberID uint) error
	RemoveFromCloseCircle(ctx context.Context, ownerID, memberID uint) error
}

// graphRepository implements GraphRepository
type graphRepository struct {
	db *gorm.DB
}

// NewGraphRepository creates a new graph repository
func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db}
}

// IsConnected reports whether a follow edge exists in either direction.
func (r *graphRepository) IsConnected(ctx context.Context, userA, userB uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *graphRepository) IsInvited(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LayerInvite{}).
		Where("fusion_post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *graphRepository) InCloseCircle(ctx context.Context, ownerID, memberID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CloseCircleMember{}).
		Where("owner_id = ? AND member_id = ?", ownerID, memberID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *graphRepository) Follow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO follows (follower_id, followee_id, created_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID,
	).Error
}

func (r *graphRepository) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

func (r *graphRepository) Invite(ctx context.Context, postID, userID, invitedByID uint) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO layer_invites (fusion_post_id, user_id, invited_by_id, created_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (fusion_post_id, user_id) DO NOTHING`,
		postID, userID, invitedByID,
	).Error
}

func (r *graphRepository) RevokeInvite(ctx context.Context, postID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("fusion_post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.LayerInvite{}).Error
}

func (r *graphRepository) ListInvites(ctx context.Context, postID uint) ([]*models.LayerInvite, error) {
	var invites []*models.LayerInvite
	err := r.db.WithContext(ctx).
		Where("fusion_post_id = ?", postID).
		Order("created_at ASC").
		Find(&invites).Error
	return invites, err
}

func (r *graphRepository) AddToCloseCircle(ctx context.Context, ownerID, memberID uint) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO close_circle_members (owner_id, member_id, created_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (owner_id, member_id) DO NOTHING`,
		ownerID, memberID,
	).Error
}

func (r *graphRepository) RemoveFromCloseCircle(ctx context.Context, ownerID, memberID uint) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND member_id = ?", ownerID, memberID).
		Delete(&models.CloseCircleMember{}).Error
}
