package models

import (
	"time"
)

// Like represents a user's like on a fusion post.
// The combination of UserID and FusionPostID must be unique; the like-set is
// the source of truth for likes_count, which is only a cache of cardinality.
type Like struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_like_user_post,priority:1" json:"user_id"`
	FusionPostID uint      `gorm:"not null;uniqueIndex:idx_like_user_post,priority:2;index" json:"fusion_post_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Like) TableName() string {
	return "likes"
}
