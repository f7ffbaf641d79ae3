package service

import (
	"context"
	"errors"
	"sort"

	"fusionforge/internal/models"
	"fusionforge/internal/observability"
	"fusionforge/internal/repository"
	"fusionforge/internal/validation"

	"gorm.io/gorm"
)

// LayerService is the write path for layers: it validates a submission,
// checks eligibility and moderation, and persists the layer at the next
// position. Every UI surface that appends a layer goes through SubmitLayer;
// there is no second code path with divergent validation.
type LayerService struct {
	postRepo  repository.FusionPostRepository
	layerRepo repository.LayerRepository
	access    *AccessController
	gate      *ModerationGate
}

// SubmitLayerInput carries one layer submission. Media upload happens before
// submission; MediaURL must already be stable.
type SubmitLayerInput struct {
	PostID   uint
	AuthorID uint
	Type     models.LayerType
	Content  string
	MediaURL *string
}

// NewLayerService creates a new layer service
func NewLayerService(
	postRepo repository.FusionPostRepository,
	layerRepo repository.LayerRepository,
	access *AccessController,
	gate *ModerationGate,
) *LayerService {
	return &LayerService{
		postRepo:  postRepo,
		layerRepo: layerRepo,
		access:    access,
		gate:      gate,
	}
}

// SubmitLayer appends a layer to a post. Order assignment is atomic at the
// storage layer; a rejected submission persists nothing.
func (s *LayerService) SubmitLayer(ctx context.Context, in SubmitLayerInput) (*models.Layer, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.AuthorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fusion post", in.PostID)
		}
		return nil, err
	}

	if !post.AllowedLayerTypes.Contains(in.Type) {
		observability.LayerSubmissions.WithLabelValues("validation_error").Inc()
		return nil, models.NewValidationError("This post does not accept layers of type " + string(in.Type))
	}
	if err := validation.ValidateLayerContent(in.Type, in.Content, in.MediaURL); err != nil {
		observability.LayerSubmissions.WithLabelValues("validation_error").Inc()
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.access.EvaluateContribution(ctx, post, in.AuthorID); err != nil {
		observability.LayerSubmissions.WithLabelValues("permission_error").Inc()
		return nil, err
	}

	layer := &models.Layer{
		FusionPostID: post.ID,
		AuthorID:     in.AuthorID,
		Type:         in.Type,
		Content:      in.Content,
	}
	if in.MediaURL != nil {
		layer.MediaURL = *in.MediaURL
	}

	decision := s.gate.Review(ctx, post, layer)
	if decision == DecisionRejected {
		observability.LayerSubmissions.WithLabelValues("rejected").Inc()
		return nil, models.NewModerationRejectedError("This content was rejected by moderation")
	}
	layer.IsApproved = decision == DecisionApproved

	if err := s.layerRepo.CreateWithNextOrder(ctx, layer); err != nil {
		if models.ErrorCode(err) == models.CodeConcurrencyConflict {
			observability.LayerSubmissions.WithLabelValues("conflict").Inc()
		} else {
			observability.LayerSubmissions.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	observability.LayerSubmissions.WithLabelValues(string(decision)).Inc()
	return layer, nil
}

// ListLayers returns the requester's view of a post as one ordered sequence:
// the seed at position zero, then every approved layer, then the requester's
// own pending layers (plus all pending layers when the requester owns the
// post). Re-callable at any time; each call is a fresh snapshot.
func (s *LayerService) ListLayers(ctx context.Context, postID, requesterID uint) ([]*models.Layer, error) {
	post, err := s.postRepo.GetByID(ctx, postID, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fusion post", postID)
		}
		return nil, err
	}
	if err := s.access.EvaluateRead(ctx, post, requesterID); err != nil {
		return nil, err
	}

	layers, err := s.layerRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	visible := make([]*models.Layer, 0, len(layers)+1)
	visible = append(visible, post.SeedLayer())
	for _, layer := range layers {
		if layer.VisibleTo(requesterID, post.OwnerID) {
			visible = append(visible, layer)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].LayerOrder < visible[j].LayerOrder
	})
	return visible, nil
}

// ApproveLayer flips a queued layer to approved. Only the post owner may
// decide; approving an already-approved layer is a no-op. Approval only ever
// moves forward, a layer is never un-approved.
func (s *LayerService) ApproveLayer(ctx context.Context, postID, layerID, requesterID uint) (*models.Layer, error) {
	post, err := s.postRepo.GetByID(ctx, postID, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fusion post", postID)
		}
		return nil, err
	}
	if requesterID != post.OwnerID {
		return nil, models.NewPermissionError("Only the post owner may approve layers")
	}

	layer, err := s.layerRepo.GetByID(ctx, layerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Layer", layerID)
		}
		return nil, err
	}
	if layer.FusionPostID != postID {
		return nil, models.NewNotFoundError("Layer", layerID)
	}

	if _, err := s.layerRepo.Approve(ctx, layerID, postID); err != nil {
		return nil, err
	}
	layer.IsApproved = true
	return layer, nil
}
