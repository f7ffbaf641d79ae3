package server

import (
	"fusionforge/internal/models"
	"fusionforge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateLayer handles POST /api/posts/:id/layers. This is the single write
// path for layers; every surface that appends goes through it.
func (s *Server) CreateLayer(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Type     models.LayerType `json:"type"`
		Content  string           `json:"content"`
		MediaURL *string          `json:"media_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	layer, err := s.layerService.SubmitLayer(ctx, service.SubmitLayerInput{
		PostID:   postID,
		AuthorID: userID,
		Type:     req.Type,
		Content:  req.Content,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(layer)
}

// GetLayers handles GET /api/posts/:id/layers. The response is the
// requester's view: seed first, then approved layers, then the requester's
// own pending layers (all pending for the owner).
func (s *Server) GetLayers(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := s.optionalUserID(c)

	layers, err := s.layerService.ListLayers(ctx, postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(layers)
}

// ApproveLayer handles POST /api/posts/:id/layers/:layerId/approve
func (s *Server) ApproveLayer(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	layerID, err := s.parseID(c, "layerId")
	if err != nil {
		return nil
	}

	layer, err := s.layerService.ApproveLayer(ctx, postID, layerID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(layer)
}
