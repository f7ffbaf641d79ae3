package repository

import (
	"context"
	"time"

	"fusionforge/internal/cache"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"

	"gorm.io/gorm"
)

// LayerRepository defines the interface for layer data operations
type LayerRepository interface {
	CreateWithNextOrder(ctx context.Context, layer *models.Layer) error
	GetByID(ctx context.Context, id uint) (*models.Layer, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Layer, error)
	Approve(ctx context.Context, layerID, postID uint) (bool, error)
}

// layerRepository implements LayerRepository
type layerRepository struct {
	db *gorm.DB
}

// NewLayerRepository creates a new layer repository
func NewLayerRepository(db *gorm.DB) LayerRepository {
	return &layerRepository{db: db}
}

// CreateWithNextOrder persists layer with the next layer_order for its post.
// The order is assigned by the database in a single statement, so two
// concurrent submissions can never compute the same position in application
// code; the unique (fusion_post_id, layer_order) index catches the residual
// race between the SELECT and the INSERT, and a violation is retried once
// before surfacing as a concurrency conflict.
func (r *layerRepository) CreateWithNextOrder(ctx context.Context, layer *models.Layer) error {
	defer observability.TrackQuery("insert", "layers")()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			observability.OrderConflictRetries.Inc()
		}
		err = r.insertNext(ctx, layer)
		if err == nil {
			cache.InvalidatePost(ctx, layer.FusionPostID)
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
	}
	return models.NewConcurrencyConflictError("could not assign a layer position, please retry")
}

func (r *layerRepository) insertNext(ctx context.Context, layer *models.Layer) error {
	var row struct {
		ID         uint
		LayerOrder int
		CreatedAt  time.Time
	}
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO layers (fusion_post_id, author_id, type, content, media_url, layer_order, is_approved, likes, created_at)
		 SELECT ?, ?, ?, ?, ?, COALESCE(MAX(layer_order), 0) + 1, ?, 0, CURRENT_TIMESTAMP
		 FROM layers WHERE fusion_post_id = ?
		 RETURNING id, layer_order, created_at`,
		layer.FusionPostID, layer.AuthorID, layer.Type, layer.Content, layer.MediaURL,
		layer.IsApproved, layer.FusionPostID,
	).Scan(&row).Error
	if err != nil {
		return err
	}
	layer.ID = row.ID
	layer.LayerOrder = row.LayerOrder
	layer.CreatedAt = row.CreatedAt
	return nil
}

func (r *layerRepository) GetByID(ctx context.Context, id uint) (*models.Layer, error) {
	var layer models.Layer
	err := r.db.WithContext(ctx).
		Preload("Author").
		First(&layer, id).Error
	if err != nil {
		return nil, err
	}
	return &layer, nil
}

// ListByPost returns every layer of a post ordered by position. Visibility
// filtering of pending layers is the service's concern.
func (r *layerRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Layer, error) {
	var layers []*models.Layer
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Preload("Author").
			Where("fusion_post_id = ?", postID).
			Order("layer_order ASC").
			Find(&layers).Error
	})
	if err != nil {
		return nil, err
	}
	return layers, nil
}

// Approve flips a pending layer to approved. It reports whether this call
// performed the transition; an already-approved layer is a no-op.
func (r *layerRepository) Approve(ctx context.Context, layerID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Layer{}).
		Where("id = ? AND fusion_post_id = ? AND is_approved = ?", layerID, postID, false).
		UpdateColumn("is_approved", true)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return res.RowsAffected > 0, nil
}
