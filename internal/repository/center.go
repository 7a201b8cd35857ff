package repository

import (
	"context"

	"tdh/internal/cache"
	"tdh/internal/models"

	"gorm.io/gorm"
)

// CenterRepository stores the training center directory.
type CenterRepository interface {
	List(ctx context.Context) ([]models.Center, error)
	Create(ctx context.Context, center *models.Center) error
	Delete(ctx context.Context, id uint) error
}

type centerRepository struct {
	db *gorm.DB
}

// NewCenterRepository returns a CenterRepository backed by db.
func NewCenterRepository(db *gorm.DB) CenterRepository {
	return &centerRepository{db: db}
}

func (r *centerRepository) List(ctx context.Context) ([]models.Center, error) {
	centers := []models.Center{}
	err := cache.Aside(ctx, cache.CentersKey, &centers, cache.CentersTTL, func() error {
		if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&centers).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return centers, nil
}

func (r *centerRepository) Create(ctx context.Context, center *models.Center) error {
	if err := r.db.WithContext(ctx).Create(center).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCenters(ctx)
	return nil
}

func (r *centerRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Center{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Center")
	}
	cache.InvalidateCenters(ctx)
	return nil
}
