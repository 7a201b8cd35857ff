package service

import (
	"context"
	"strings"

	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/repository"
	"tdh/internal/validation"
)

type CenterService struct {
	centerRepo repository.CenterRepository
}

type CenterInput struct {
	Name        string `json:"name" form:"name" validate:"required,max=120"`
	Description string `json:"description" form:"description" validate:"max=1000"`
	Location    string `json:"location" form:"location" validate:"max=255"`
	Hours       string `json:"hours" form:"hours" validate:"max=120"`
	Link        string `json:"link" form:"link" validate:"omitempty,url,max=500"`
}

func NewCenterService(centerRepo repository.CenterRepository) *CenterService {
	return &CenterService{centerRepo: centerRepo}
}

func (s *CenterService) List(ctx context.Context, requester *models.User) ([]models.Center, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return nil, err
	}
	return s.centerRepo.List(ctx)
}

func (s *CenterService) Create(ctx context.Context, requester *models.User, in CenterInput) (*models.Center, error) {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Link = strings.TrimSpace(in.Link)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	center := &models.Center{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Hours:       strings.TrimSpace(in.Hours),
		Link:        in.Link,
	}
	if err := s.centerRepo.Create(ctx, center); err != nil {
		return nil, err
	}
	return center, nil
}

func (s *CenterService) Delete(ctx context.Context, requester *models.User, id uint) error {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return err
	}
	return s.centerRepo.Delete(ctx, id)
}
