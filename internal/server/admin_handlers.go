package server

import (
	"log/slog"

	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetDashboard handles GET /admin
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := s.admin.Dashboard(c.UserContext(), currentUser(c), parsePagination(c, service.MaxPageSize))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(dashboard)
}

// ApproveAccount handles POST /admin/accounts/:id/approve
func (s *Server) ApproveAccount(c *fiber.Ctx) error {
	return s.transitionAccount(c, models.StatusApproved)
}

// RejectAccount handles POST /admin/accounts/:id/reject. Rejection removes
// the account and everything it authored.
func (s *Server) RejectAccount(c *fiber.Ctx) error {
	return s.transitionAccount(c, models.StatusRejected)
}

func (s *Server) transitionAccount(c *fiber.Ctx, target models.AccountStatus) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	admin := currentUser(c)
	if err := s.accounts.TransitionStatus(c.UserContext(), admin, accountID, target); err != nil {
		return models.RespondWithAppError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "account status changed",
		slog.Uint64("account_id", uint64(accountID)),
		slog.Uint64("admin_id", uint64(admin.ID)),
		slog.String("status", string(target)))

	return c.JSON(fiber.Map{
		"id":     accountID,
		"status": target,
	})
}

// CreateCenter handles POST /admin/centers
func (s *Server) CreateCenter(c *fiber.Ctx) error {
	var req service.CenterInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	center, err := s.centers.Create(c.UserContext(), currentUser(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(center)
}

// DeleteCenter handles POST /admin/centers/:id/delete
func (s *Server) DeleteCenter(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.centers.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Center deleted",
		"id":      id,
	})
}

// CreateAnnouncement handles POST /admin/announcements
func (s *Server) CreateAnnouncement(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content" form:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.posts.CreateAnnouncement(c.UserContext(), currentUser(c), req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}
