package service

import (
	"context"
	"errors"

	"fusionforge/internal/events"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"
	"fusionforge/internal/repository"
	"fusionforge/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// FusionPostService owns the fusion post lifecycle: creation, reads, forking,
// and the engagement actions that feed the aggregator.
type FusionPostService struct {
	postRepo   repository.FusionPostRepository
	engRepo    repository.EngagementRepository
	graphRepo  repository.GraphRepository
	access     *AccessController
	aggregator *EngagementService
}

// CreateFusionPostInput carries the creation payload for a fusion post.
type CreateFusionPostInput struct {
	OwnerID             uint
	Title               string
	SeedContent         string
	SeedType            models.LayerType
	Privacy             models.PostPrivacy
	AllowedContributors models.ContributorPolicy
	AllowedLayerTypes   []models.LayerType
	ModerationMode      models.ModerationMode
}

// ForkInput carries a fork request. TitleOverride is optional; the default is
// the source title suffixed with " (Fork)".
type ForkInput struct {
	SourcePostID  uint
	RequesterID   uint
	TitleOverride string
}

// ListFusionPostsInput carries pagination for post listing.
type ListFusionPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
	OwnerID       *uint
}

// NewFusionPostService creates a new fusion post service
func NewFusionPostService(
	postRepo repository.FusionPostRepository,
	engRepo repository.EngagementRepository,
	graphRepo repository.GraphRepository,
	access *AccessController,
	aggregator *EngagementService,
) *FusionPostService {
	return &FusionPostService{
		postRepo:   postRepo,
		engRepo:    engRepo,
		graphRepo:  graphRepo,
		access:     access,
		aggregator: aggregator,
	}
}

// CreateFusionPost validates the payload and persists a new post. The seed
// is immutable after this call.
func (s *FusionPostService) CreateFusionPost(ctx context.Context, in CreateFusionPostInput) (*models.FusionPost, error) {
	if in.OwnerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateSeed(in.SeedType, in.SeedContent); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	privacy := in.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	if !privacy.Valid() {
		return nil, models.NewValidationError("Invalid privacy setting")
	}

	contributors := in.AllowedContributors
	if contributors == "" {
		contributors = models.ContributorsPublic
	}
	if !contributors.Valid() {
		return nil, models.NewValidationError("Invalid contributor policy")
	}

	mode := in.ModerationMode
	if mode == "" {
		mode = models.ModerationNone
	}
	if !mode.Valid() {
		return nil, models.NewValidationError("Invalid moderation mode")
	}

	if len(in.AllowedLayerTypes) == 0 {
		return nil, models.NewValidationError("allowed_layer_types must not be empty")
	}
	var layerTypes models.LayerTypeSet
	for _, t := range in.AllowedLayerTypes {
		if !t.Valid() {
			return nil, models.NewValidationError("Unknown layer type " + string(t))
		}
		if !layerTypes.Contains(t) {
			layerTypes = append(layerTypes, t)
		}
	}

	post := &models.FusionPost{
		OwnerID:             in.OwnerID,
		Title:               in.Title,
		SeedContent:         in.SeedContent,
		SeedType:            in.SeedType,
		Privacy:             privacy,
		AllowedContributors: contributors,
		AllowedLayerTypes:   layerTypes,
		ModerationMode:      mode,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// GetFusionPost returns one post, gated by its privacy setting.
func (s *FusionPostService) GetFusionPost(ctx context.Context, id, currentUserID uint) (*models.FusionPost, error) {
	post, err := s.loadPost(ctx, id, currentUserID)
	if err != nil {
		return nil, err
	}
	if err := s.access.EvaluateRead(ctx, post, currentUserID); err != nil {
		return nil, err
	}
	return post, nil
}

// ListFusionPosts returns posts the requester may read, newest first.
func (s *FusionPostService) ListFusionPosts(ctx context.Context, in ListFusionPostsInput) ([]*models.FusionPost, error) {
	if in.OwnerID != nil {
		return s.postRepo.ListByOwner(ctx, *in.OwnerID, in.Limit, in.Offset, in.CurrentUserID)
	}
	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
}

// Fork creates an independent new post from the source's seed. Read access to
// the source is required; contribution rights are not. The whole operation is
// all-or-nothing: either the new post exists and the source's fork count rose
// by one, or neither happened.
func (s *FusionPostService) Fork(ctx context.Context, in ForkInput) (*models.FusionPost, error) {
	if in.RequesterID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required to fork")
	}
	source, err := s.loadPost(ctx, in.SourcePostID, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := s.access.EvaluateRead(ctx, source, in.RequesterID); err != nil {
		return nil, err
	}

	title := in.TitleOverride
	if title == "" {
		title = source.Title + " (Fork)"
	}
	if err := validation.ValidateTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	span, ctx := observability.NewSpan(ctx, "fusion_post.fork")
	defer span.End()
	span.AddAttributes(
		attribute.Int("source_post_id", int(in.SourcePostID)),
		attribute.Int("requester_id", int(in.RequesterID)),
	)

	sourceID := source.ID
	fork := &models.FusionPost{
		OwnerID:             in.RequesterID,
		Title:               title,
		SeedContent:         source.SeedContent,
		SeedType:            source.SeedType,
		Privacy:             source.Privacy,
		AllowedContributors: source.AllowedContributors,
		AllowedLayerTypes:   source.AllowedLayerTypes,
		ModerationMode:      source.ModerationMode,
		ForkedFromID:        &sourceID,
	}
	if err := s.postRepo.CreateFork(ctx, fork); err != nil {
		span.SetError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fusion post", in.SourcePostID)
		}
		return nil, err
	}

	s.applyEvent(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: sourceID,
		Type:     events.ForkRecorded,
		ActorID:  in.RequesterID,
	})
	return fork, nil
}

// Like adds the user to the post's like-set. Liking twice is a no-op; the
// counter reflects set cardinality either way.
func (s *FusionPostService) Like(ctx context.Context, postID, userID uint) (*models.FusionPost, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required to like")
	}
	post, err := s.loadPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.access.EvaluateRead(ctx, post, userID); err != nil {
		return nil, err
	}

	if _, err := s.engRepo.AddLike(ctx, userID, postID); err != nil {
		return nil, err
	}
	s.applyEvent(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: postID,
		Type:     events.LikeAdded,
		ActorID:  userID,
	})
	return s.loadPost(ctx, postID, userID)
}

// Unlike removes the user from the post's like-set. Unliking a post never
// liked leaves the counter untouched and non-negative.
func (s *FusionPostService) Unlike(ctx context.Context, postID, userID uint) (*models.FusionPost, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.loadPost(ctx, postID, userID); err != nil {
		return nil, err
	}

	if _, err := s.engRepo.RemoveLike(ctx, userID, postID); err != nil {
		return nil, err
	}
	s.applyEvent(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: postID,
		Type:     events.LikeRemoved,
		ActorID:  userID,
	})
	return s.loadPost(ctx, postID, userID)
}

// RecordShare counts one share. Shares only ever go up.
func (s *FusionPostService) RecordShare(ctx context.Context, postID, userID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.loadPost(ctx, postID, userID)
	if err != nil {
		return err
	}
	if err := s.access.EvaluateRead(ctx, post, userID); err != nil {
		return err
	}
	return s.aggregator.Apply(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: postID,
		Type:     events.ShareRecorded,
		ActorID:  userID,
	})
}

// RecordView counts one view. Anonymous views of readable posts count too.
func (s *FusionPostService) RecordView(ctx context.Context, postID, userID uint) error {
	post, err := s.loadPost(ctx, postID, userID)
	if err != nil {
		return err
	}
	if err := s.access.EvaluateRead(ctx, post, userID); err != nil {
		return err
	}
	return s.aggregator.Apply(ctx, events.Event{
		Entity:   events.EntityFusionPost,
		EntityID: postID,
		Type:     events.ViewRecorded,
		ActorID:  userID,
	})
}

// InviteUser adds a user to the post's invite list. Owner only.
func (s *FusionPostService) InviteUser(ctx context.Context, postID, ownerID, inviteeID uint) error {
	post, err := s.loadPost(ctx, postID, ownerID)
	if err != nil {
		return err
	}
	if post.OwnerID != ownerID {
		return models.NewPermissionError("Only the post owner may manage invites")
	}
	if inviteeID == 0 {
		return models.NewValidationError("user_id is required")
	}
	return s.graphRepo.Invite(ctx, postID, inviteeID, ownerID)
}

// RevokeInvite removes a user from the post's invite list. Owner only.
// Already-persisted layers from that user stay; only future submissions are
// affected.
func (s *FusionPostService) RevokeInvite(ctx context.Context, postID, ownerID, inviteeID uint) error {
	post, err := s.loadPost(ctx, postID, ownerID)
	if err != nil {
		return err
	}
	if post.OwnerID != ownerID {
		return models.NewPermissionError("Only the post owner may manage invites")
	}
	return s.graphRepo.RevokeInvite(ctx, postID, inviteeID)
}

// ListInvites returns the post's invite list. Owner only.
func (s *FusionPostService) ListInvites(ctx context.Context, postID, ownerID uint) ([]*models.LayerInvite, error) {
	post, err := s.loadPost(ctx, postID, ownerID)
	if err != nil {
		return nil, err
	}
	if post.OwnerID != ownerID {
		return nil, models.NewPermissionError("Only the post owner may manage invites")
	}
	return s.graphRepo.ListInvites(ctx, postID)
}

func (s *FusionPostService) loadPost(ctx context.Context, id, currentUserID uint) (*models.FusionPost, error) {
	post, err := s.postRepo.GetByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fusion post", id)
		}
		return nil, err
	}
	return post, nil
}

// applyEvent routes an event through the aggregator, tolerating counter
// failures: the membership write already succeeded and the periodic recount
// repairs any drift.
func (s *FusionPostService) applyEvent(ctx context.Context, ev events.Event) {
	if s.aggregator == nil {
		return
	}
	if err := s.aggregator.Apply(ctx, ev); err != nil {
		logEventApplyFailure(ctx, ev, err)
	}
}
