package server

import (
	"log/slog"
	"strings"

	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/service"
	"tdh/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	Email           string `json:"email" form:"email"`
}

// validateRegistration enforces credential policy before the account store is reached.
func validateRegistration(req registerRequest) error {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return models.NewValidationError("Username and password are required")
	}
	if err := validation.ValidateUsername(strings.TrimSpace(req.Username)); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// Register handles POST /register
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := validateRegistration(req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	user, err := s.accounts.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Confirm:  req.ConfirmPassword,
		Email:    req.Email,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "account registered",
		slog.Uint64("account_id", uint64(user.ID)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Account created. An administrator will review it shortly.",
		"user":     user,
		"redirect": "/login",
	})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username and password are required"))
	}

	user, err := s.accounts.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.issueSession(c, user)
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}

	redirect := "/feed"
	if !user.IsAdmin && user.Status == models.StatusPending {
		redirect = "/pending"
	}

	return c.JSON(fiber.Map{
		"token":    token,
		"user":     user,
		"redirect": redirect,
	})
}

// Logout handles POST /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.revokeSession(c)
	return c.JSON(fiber.Map{
		"message":  "Logged out",
		"redirect": "/login",
	})
}
