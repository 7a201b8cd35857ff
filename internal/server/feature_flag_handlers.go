package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and their state for the current administrator.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(user.ID),
	})
}
