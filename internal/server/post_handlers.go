package server

import (
	"tdh/internal/models"
	"tdh/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageSize)

	posts, err := s.posts.ListFeed(c.UserContext(), currentUser(c), page)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"posts":  posts,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// CreatePost handles POST /posts. The body is JSON, or a multipart form with
// an optional "image" file.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content" form:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	image, err := s.formUpload(c, "image")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.posts.CreatePost(c.UserContext(), currentUser(c), service.CreatePostInput{
		Content: req.Content,
		Image:   image,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// ToggleLike handles POST /posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.posts.ToggleLike(c.UserContext(), currentUser(c), postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(res)
}

// DeletePost handles POST /posts/:id/delete
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.posts.DeletePost(c.UserContext(), currentUser(c), postID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Post deleted",
		"id":      postID,
	})
}
