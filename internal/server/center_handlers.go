package server

import (
	"tdh/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetCenters handles GET /centers
func (s *Server) GetCenters(c *fiber.Ctx) error {
	centers, err := s.centers.List(c.UserContext(), currentUser(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(centers)
}
