package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// LayerType identifies the kind of content a layer (or a post's seed) carries.
type LayerType string

const (
	LayerTypeText    LayerType = "text"
	LayerTypeImage   LayerType = "image"
	LayerTypeVideo   LayerType = "video"
	LayerTypeVoice   LayerType = "voice"
	LayerTypeDraw    LayerType = "draw"
	LayerTypeSticker LayerType = "sticker"
	LayerTypeOverlay LayerType = "overlay"
)

// AllLayerTypes lists every valid layer type.
var AllLayerTypes = []LayerType{
	LayerTypeText, LayerTypeImage, LayerTypeVideo, LayerTypeVoice,
	LayerTypeDraw, LayerTypeSticker, LayerTypeOverlay,
}

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	for _, known := range AllLayerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsMedia reports whether layers of this type carry a media attachment
// rather than (or in addition to) text content.
func (t LayerType) IsMedia() bool {
	switch t {
	case LayerTypeImage, LayerTypeVideo, LayerTypeVoice, LayerTypeDraw, LayerTypeSticker, LayerTypeOverlay:
		return true
	}
	return false
}

// LayerTypeSet is the set of layer types a post accepts, persisted as a
// comma-separated varchar column.
type LayerTypeSet []LayerType

// Contains reports whether t is in the set.
func (s LayerTypeSet) Contains(t LayerType) bool {
	for _, v := range s {
		if v == t {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s LayerTypeSet) Value() (driver.Value, error) {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = string(t)
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner.
func (s *LayerTypeSet) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into LayerTypeSet", value)
	}

	if raw == "" {
		*s = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(LayerTypeSet, 0, len(parts))
	for _, p := range parts {
		out = append(out, LayerType(strings.TrimSpace(p)))
	}
	*s = out
	return nil
}

// PostPrivacy controls who may read a fusion post.
type PostPrivacy string

const (
	// PrivacyPublic makes the post readable by anyone.
	PrivacyPublic PostPrivacy = "public"
	// PrivacyFollowers restricts reads to the owner's graph neighbors.
	PrivacyFollowers PostPrivacy = "followers"
	// PrivacyInvited restricts reads to the per-post invite list.
	PrivacyInvited PostPrivacy = "invited"
)

// Valid reports whether p is a known privacy setting.
func (p PostPrivacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyFollowers, PrivacyInvited:
		return true
	}
	return false
}

// ContributorPolicy controls who may append layers to a fusion post.
type ContributorPolicy string

const (
	// ContributorsPublic allows any authenticated identity to contribute.
	ContributorsPublic ContributorPolicy = "public"
	// ContributorsFollowers allows the owner's graph neighbors.
	ContributorsFollowers ContributorPolicy = "followers"
	// ContributorsInvited allows only the per-post invite list.
	ContributorsInvited ContributorPolicy = "invited"
	// ContributorsCloseCircle allows only the owner's close-circle set.
	ContributorsCloseCircle ContributorPolicy = "close_circle"
)

// Valid reports whether p is a known contributor policy.
func (p ContributorPolicy) Valid() bool {
	switch p {
	case ContributorsPublic, ContributorsFollowers, ContributorsInvited, ContributorsCloseCircle:
		return true
	}
	return false
}

// ModerationMode governs whether a submitted layer is immediately visible,
// queued for the owner, or run through an automated content filter.
type ModerationMode string

const (
	// ModerationNone publishes every accepted layer immediately.
	ModerationNone ModerationMode = "none"
	// ModerationPreApprove queues every layer until the owner approves it.
	ModerationPreApprove ModerationMode = "pre_approve"
	// ModerationAuto delegates the decision to a pluggable content filter.
	ModerationAuto ModerationMode = "auto"
)

// Valid reports whether m is a known moderation mode.
func (m ModerationMode) Valid() bool {
	switch m {
	case ModerationNone, ModerationPreApprove, ModerationAuto:
		return true
	}
	return false
}

// FusionPost is a post whose content grows by accretion of contributor layers.
// The seed (Title, SeedContent, SeedType) is conceptually layer 0: always
// approved, immutable after creation. Counter columns are denormalized caches;
// membership rows (likes), layer rows and fork rows are the sources of truth.
type FusionPost struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OwnerID uint   `gorm:"not null;index" json:"owner_id"`
	Owner   User   `gorm:"foreignKey:OwnerID" json:"owner"`
	Title   string `gorm:"size:300;not null" json:"title"`

	SeedContent string    `gorm:"type:text;not null" json:"seed_content"`
	SeedType    LayerType `gorm:"type:varchar(20);not null" json:"seed_type"`

	Privacy             PostPrivacy       `gorm:"type:varchar(20);not null;default:'public'" json:"privacy"`
	AllowedContributors ContributorPolicy `gorm:"type:varchar(20);not null;default:'public'" json:"allowed_contributors"`
	AllowedLayerTypes   LayerTypeSet      `gorm:"type:varchar(120);not null" json:"allowed_layer_types"`
	ModerationMode      ModerationMode    `gorm:"type:varchar(20);not null;default:'none'" json:"moderation_mode"`

	// ForkedFromID is a weak lineage back-reference, not an ownership edge.
	ForkedFromID *uint `gorm:"index" json:"forked_from_id,omitempty"`

	LikesCount   int `gorm:"not null;default:0" json:"likes_count"`
	ForkCount    int `gorm:"not null;default:0" json:"fork_count"`
	ViewsCount   int `gorm:"not null;default:0" json:"views_count"`
	CommentCount int `gorm:"not null;default:0" json:"comment_count"`
	SharesCount  int `gorm:"not null;default:0" json:"shares_count"`

	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->" json:"liked"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (FusionPost) TableName() string {
	return "fusion_posts"
}

// SeedLayer renders the post's immutable seed as a synthetic layer 0 so
// consumers receive one uniformly ordered sequence.
func (p *FusionPost) SeedLayer() *Layer {
	return &Layer{
		FusionPostID: p.ID,
		AuthorID:     p.OwnerID,
		Type:         p.SeedType,
		Content:      p.SeedContent,
		LayerOrder:   0,
		IsApproved:   true,
		CreatedAt:    p.CreatedAt,
	}
}
