// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"tdh/internal/cache"
	"tdh/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, fields map[string]any) error
	SetStatus(ctx context.Context, id uint, status models.AccountStatus) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	SetPassword(ctx context.Context, id uint, hash string) error
	ListByStatus(ctx context.Context, status models.AccountStatus, limit, offset int) ([]models.User, error)
	DeleteCascade(ctx context.Context, id uint) ([]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername returns nil, nil when no account has the username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return r.conflictFor(ctx, user)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// conflictFor names the column a failed insert collided on. The username is
// checked first since both can collide at once.
func (r *userRepository) conflictFor(ctx context.Context, user *models.User) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&n).Error; err == nil && n > 0 {
		return models.NewConflictError("Username is already taken")
	}
	if user.Email != nil {
		return models.NewConflictError("Email is already registered")
	}
	return models.NewConflictError("Username is already taken")
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

func (r *userRepository) updateColumns(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// UpdateProfile writes only the given columns; callers own the whitelist.
func (r *userRepository) UpdateProfile(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.updateColumns(ctx, id, fields)
}

func (r *userRepository) SetStatus(ctx context.Context, id uint, status models.AccountStatus) error {
	return r.updateColumns(ctx, id, map[string]any{"status": status})
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	fields := map[string]any{"is_admin": admin}
	if admin {
		fields["status"] = models.StatusApproved
	}
	return r.updateColumns(ctx, id, fields)
}

func (r *userRepository) SetPassword(ctx context.Context, id uint, hash string) error {
	return r.updateColumns(ctx, id, map[string]any{"password": hash})
}

func (r *userRepository) ListByStatus(ctx context.Context, status models.AccountStatus, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// DeleteCascade removes the account with its posts, comments and likes in one
// transaction and returns the media references that are no longer used.
// Counters of posts the account had liked are recomputed before commit.
func (r *userRepository) DeleteCascade(ctx context.Context, id uint) ([]string, error) {
	var released []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "profile_picture").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return err
		}

		var ownPostIDs []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", id).Pluck("id", &ownPostIDs).Error; err != nil {
			return err
		}

		var images []string
		if err := tx.Model(&models.Post{}).
			Where("user_id = ? AND image_ref <> ''", id).
			Pluck("image_ref", &images).Error; err != nil {
			return err
		}

		var likedElsewhere []uint
		likedQuery := tx.Model(&models.Like{}).Where("user_id = ?", id)
		if len(ownPostIDs) > 0 {
			likedQuery = likedQuery.Where("post_id NOT IN ?", ownPostIDs)
		}
		if err := likedQuery.Pluck("post_id", &likedElsewhere).Error; err != nil {
			return err
		}

		if len(ownPostIDs) > 0 {
			if err := tx.Where("post_id IN ?", ownPostIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", ownPostIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return err
		}

		if len(likedElsewhere) > 0 {
			if err := recountLikes(tx, likedElsewhere...); err != nil {
				return err
			}
		}

		released = images
		if user.ProfilePicture != "" {
			released = append(released, user.ProfilePicture)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, id)
	return released, nil
}
