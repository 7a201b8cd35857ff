package server

import (
	"tdh/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Ask handles POST /api/ask. Collaborator failures still produce a 200 with
// the apology answer.
func (s *Server) Ask(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question" form:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	answer, err := s.assistant.Answer(c.UserContext(), currentUser(c), req.Question)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(answer)
}
