package models

import (
	"time"
)

// Layer is one typed, ordered contribution appended to a fusion post.
// LayerOrder is unique and strictly increasing within a post; assignment
// happens atomically at the storage layer. A layer with IsApproved=false is
// visible only to its author and the post owner.
type Layer struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FusionPostID uint       `gorm:"not null;uniqueIndex:idx_layer_post_order,priority:1;index" json:"fusion_post_id"`
	AuthorID     uint       `gorm:"not null;index" json:"author_id"`
	Author       User       `gorm:"foreignKey:AuthorID" json:"author"`
	Type         LayerType  `gorm:"type:varchar(20);not null" json:"type"`
	Content      string     `gorm:"type:text" json:"content"`
	MediaURL     string     `gorm:"size:2048" json:"media_url,omitempty"`
	LayerOrder   int        `gorm:"not null;uniqueIndex:idx_layer_post_order,priority:2" json:"layer_order"`
	IsApproved   bool       `gorm:"not null;default:false" json:"is_approved"`
	Likes        int        `gorm:"not null;default:0" json:"likes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Layer) TableName() string {
	return "layers"
}

// VisibleTo reports whether the layer may appear in requesterID's view of the
// post. Pending layers are visible only to their author and the post owner.
func (l *Layer) VisibleTo(requesterID, postOwnerID uint) bool {
	if l.IsApproved {
		return true
	}
	return requesterID != 0 && (requesterID == l.AuthorID || requesterID == postOwnerID)
}
