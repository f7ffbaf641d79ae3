package models

import (
	"time"
)

// Follow is a directed edge in the social graph. The followers contributor
// policy treats the edge as symmetric: either direction between requester and
// owner satisfies it.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:1" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:2" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Follow) TableName() string {
	return "follows"
}

// LayerInvite grants one user contribution (and read, for invited-privacy
// posts) access to one fusion post.
type LayerInvite struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FusionPostID uint      `gorm:"not null;uniqueIndex:idx_invite_post_user,priority:1" json:"fusion_post_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_invite_post_user,priority:2" json:"user_id"`
	InvitedByID  uint      `gorm:"not null" json:"invited_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (LayerInvite) TableName() string {
	return "layer_invites"
}

// CloseCircleMember marks MemberID as part of OwnerID's close circle.
type CloseCircleMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;uniqueIndex:idx_circle_owner_member,priority:1" json:"owner_id"`
	MemberID  uint      `gorm:"not null;uniqueIndex:idx_circle_owner_member,priority:2" json:"member_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (CloseCircleMember) TableName() string {
	return "close_circle_members"
}
