// Package seed provides helpers to create demo and test data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"fusionforge/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db *gorm.DB
	r  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateFusionPost constructs and persists a sample `models.FusionPost` owned
// by the given user. Defaults to a public, unmoderated text post.
func (f *Factory) CreateFusionPost(owner *models.User, overrides ...func(*models.FusionPost)) (*models.FusionPost, error) {
	post := &models.FusionPost{
		OwnerID:             owner.ID,
		Title:               gofakeit.Sentence(4),
		SeedContent:         gofakeit.Paragraph(1, 2, 6, "\n"),
		SeedType:            models.LayerTypeText,
		Privacy:             models.PrivacyPublic,
		AllowedContributors: models.ContributorsPublic,
		AllowedLayerTypes:   models.LayerTypeSet{models.LayerTypeText, models.LayerTypeImage, models.LayerTypeDraw},
		ModerationMode:      models.ModerationNone,
	}

	// realistic created_at spread
	daysBack := f.r.Intn(90)
	hoursBack := f.r.Intn(24)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(post)
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateLayer appends a layer to the post at the next free order position.
// Callers pass the order explicitly so batches stay deterministic.
func (f *Factory) CreateLayer(author *models.User, post *models.FusionPost, order int, overrides ...func(*models.Layer)) (*models.Layer, error) {
	layer := &models.Layer{
		FusionPostID: post.ID,
		AuthorID:     author.ID,
		Type:         models.LayerTypeText,
		Content:      gofakeit.Sentence(8),
		LayerOrder:   order,
		IsApproved:   true,
	}

	switch layer.Type {
	case models.LayerTypeImage, models.LayerTypeDraw, models.LayerTypeSticker, models.LayerTypeOverlay:
		layer.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		layer.Content = ""
	}

	for _, override := range overrides {
		override(layer)
	}

	if err := f.db.Create(layer).Error; err != nil {
		return nil, err
	}
	return layer, nil
}

// CreateLike persists a like from `user` on `post` and bumps the cached
// counter so seeded data matches what the recount would compute.
func (f *Factory) CreateLike(user *models.User, post *models.FusionPost) error {
	like := &models.Like{
		UserID:       user.ID,
		FusionPostID: post.ID,
	}
	if err := f.db.Create(like).Error; err != nil {
		return err
	}
	return f.db.Model(post).UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
}

// CreateFollow persists a follower edge from `follower` to `followee`.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	follow := &models.Follow{
		FollowerID: follower.ID,
		FolloweeID: followee.ID,
	}
	return f.db.Create(follow).Error
}

// CreateCloseCircleMember adds `member` to `owner`'s close circle.
func (f *Factory) CreateCloseCircleMember(owner, member *models.User) error {
	edge := &models.CloseCircleMember{
		OwnerID:  owner.ID,
		MemberID: member.ID,
	}
	return f.db.Create(edge).Error
}

// CreateInvite persists a contribution invite for `user` on `post`, issued by
// the post owner.
func (f *Factory) CreateInvite(post *models.FusionPost, user *models.User) error {
	invite := &models.LayerInvite{
		FusionPostID: post.ID,
		UserID:       user.ID,
		InvitedByID:  post.OwnerID,
	}
	return f.db.Create(invite).Error
}
