package server

import (
	"tdh/internal/models"
	"tdh/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	me := currentUser(c)
	user, err := s.accounts.GetProfile(c.UserContext(), me, me.ID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// profileInput reads bio and training_course from JSON or a multipart form.
// Fields left out of the request stay unchanged.
func (s *Server) profileInput(c *fiber.Ctx) (service.UpdateProfileInput, error) {
	var in service.UpdateProfileInput

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return in, models.NewValidationError("Invalid form data")
		}
		if v, ok := form.Value["bio"]; ok && len(v) > 0 {
			in.Bio = optionalField(true, v[0])
		}
		if v, ok := form.Value["training_course"]; ok && len(v) > 0 {
			in.TrainingCourse = optionalField(true, v[0])
		}
		picture, err := s.formUpload(c, "profile_picture")
		if err != nil {
			return in, err
		}
		in.Picture = picture
		return in, nil
	}

	var req struct {
		Bio            *string `json:"bio"`
		TrainingCourse *string `json:"training_course"`
	}
	if err := c.BodyParser(&req); err != nil {
		return in, models.NewValidationError("Invalid request body")
	}
	in.Bio = req.Bio
	in.TrainingCourse = req.TrainingCourse
	return in, nil
}

// UpdateMyProfile handles POST /profile
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	in, err := s.profileInput(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	user, err := s.accounts.UpdateProfile(c.UserContext(), currentUser(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// DeleteMyAccount handles POST /profile/delete. The session is revoked with the account.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	if err := s.accounts.DeleteSelf(c.UserContext(), currentUser(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	s.revokeSession(c)

	return c.JSON(fiber.Map{
		"message":  "Account deleted",
		"redirect": "/register",
	})
}

// GetAccountProfile handles GET /profile/:userId
func (s *Server) GetAccountProfile(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	me := currentUser(c)

	user, err := s.accounts.GetProfile(ctx, me, accountID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	posts, err := s.accounts.ListAccountPosts(ctx, me, accountID, parsePagination(c, service.DefaultPageSize))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"profile": user.Public(),
		"posts":   posts,
	})
}
