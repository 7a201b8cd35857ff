package server

import (
	"tdh/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateComment creates a comment on a post (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content" form:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.comments.AddComment(c.UserContext(), currentUser(c), postID, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetComments returns a post's comments, oldest first.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.comments.ListComments(c.UserContext(), currentUser(c), postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(comments)
}
