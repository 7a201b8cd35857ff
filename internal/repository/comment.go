package repository

import (
	"context"
	"errors"

	"tdh/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	CreateForPost(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// CreateForPost inserts the comment only if its post still exists, then loads the author.
func (r *commentRepository) CreateForPost(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found int64
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Count(&found).Error; err != nil {
			return err
		}
		if found == 0 {
			return models.NewNotFoundError("Post")
		}
		if err := tx.Omit("User").Create(comment).Error; err != nil {
			return err
		}
		return tx.First(&comment.User, comment.UserID).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

// ListByPost returns a post's comments oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}
