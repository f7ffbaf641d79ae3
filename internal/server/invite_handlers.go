package server

import (
	"errors"

	"fusionforge/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CreateInvite handles POST /api/posts/:id/invites
func (s *Server) CreateInvite(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	// The invitee must be a known identity; invites to nonexistent users
	// would silently never unlock anything.
	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithAppError(c, models.NewNotFoundError("User", req.UserID))
		}
		return models.RespondWithAppError(c, err)
	}

	if err := s.postService.InviteUser(ctx, postID, userID, req.UserID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

// GetInvites handles GET /api/posts/:id/invites
func (s *Server) GetInvites(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	invites, err := s.postService.ListInvites(ctx, postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(invites)
}

// DeleteInvite handles DELETE /api/posts/:id/invites/:userId. Revoking an
// invite only affects future submissions; layers already persisted stay.
func (s *Server) DeleteInvite(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	inviteeID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.postService.RevokeInvite(ctx, postID, userID, inviteeID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
