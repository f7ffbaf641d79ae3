package server

import (
	"fusionforge/internal/models"
	"fusionforge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateFusionPost handles POST /api/posts
func (s *Server) CreateFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Title               string                   `json:"title"`
		SeedContent         string                   `json:"seed_content"`
		SeedType            models.LayerType         `json:"seed_type"`
		Privacy             models.PostPrivacy       `json:"privacy"`
		AllowedContributors models.ContributorPolicy `json:"allowed_contributors"`
		AllowedLayerTypes   []models.LayerType       `json:"allowed_layer_types"`
		ModerationMode      models.ModerationMode    `json:"moderation_mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreateFusionPost(ctx, service.CreateFusionPostInput{
		OwnerID:             userID,
		Title:               req.Title,
		SeedContent:         req.SeedContent,
		SeedType:            req.SeedType,
		Privacy:             req.Privacy,
		AllowedContributors: req.AllowedContributors,
		AllowedLayerTypes:   req.AllowedLayerTypes,
		ModerationMode:      req.ModerationMode,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetFusionPosts handles GET /api/posts
func (s *Server) GetFusionPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 20)
	userID, _ := s.optionalUserID(c)

	in := service.ListFusionPostsInput{
		Limit:         page.Limit,
		Offset:        page.Offset,
		CurrentUserID: userID,
	}
	if owner := c.QueryInt("owner_id", 0); owner > 0 {
		ownerID := uint(owner)
		in.OwnerID = &ownerID
	}

	posts, err := s.postService.ListFusionPosts(ctx, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(posts)
}

// GetFusionPost handles GET /api/posts/:id
func (s *Server) GetFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := s.optionalUserID(c)

	post, err := s.postService.GetFusionPost(ctx, id, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(post)
}

// ForkFusionPost handles POST /api/posts/:id/fork
func (s *Server) ForkFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title string `json:"title"`
	}
	// Empty body is fine; the fork then takes the derived default title.
	_ = c.BodyParser(&req)

	fork, err := s.postService.Fork(ctx, service.ForkInput{
		SourcePostID:  postID,
		RequesterID:   userID,
		TitleOverride: req.Title,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fork)
}

// LikeFusionPost handles POST /api/posts/:id/like
func (s *Server) LikeFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Like(ctx, postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(post)
}

// UnlikeFusionPost handles DELETE /api/posts/:id/like
func (s *Server) UnlikeFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Unlike(ctx, postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(post)
}

// ShareFusionPost handles POST /api/posts/:id/share
func (s *Server) ShareFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.RecordShare(ctx, postID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ViewFusionPost handles POST /api/posts/:id/view
func (s *Server) ViewFusionPost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := s.optionalUserID(c)

	if err := s.postService.RecordView(ctx, postID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
