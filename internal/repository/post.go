package repository

import (
	"context"
	"errors"

	"tdh/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	ToggleLike(ctx context.Context, userID, postID uint) (models.LikeResult, error)
	DeleteCascade(ctx context.Context, id uint) (string, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("User", "Comments").Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.withDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post")
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// withDetails preloads authors and the comment thread in reading order.
func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.User")
}

// List returns the feed, newest first. The id breaks ties between equal timestamps.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.withDetails(r.db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.withDetails(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// GetLikedPostIDs returns the subset of postIDs liked by userID with a single query.
func (r *postRepository) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if userID == 0 || len(postIDs) == 0 {
		return []uint{}, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

// ToggleLike flips the (user, post) like in one transaction: remove it if present,
// otherwise insert it. The stored counter is then recomputed from the live rows.
func (r *postRepository) ToggleLike(ctx context.Context, userID, postID uint) (models.LikeResult, error) {
	var result models.LikeResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&found).Error; err != nil {
			return err
		}
		if found == 0 {
			return models.NewNotFoundError("Post")
		}

		del := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if del.Error != nil {
			return del.Error
		}

		if del.RowsAffected == 0 {
			like := models.Like{UserID: userID, PostID: postID}
			if err := tx.Omit("User", "Post").
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&like).Error; err != nil {
				return err
			}
			result.Liked = true
		}

		if err := recountLikes(tx, postID); err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Select("likes").Scan(&result.Likes).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return models.LikeResult{}, err
		}
		return models.LikeResult{}, models.NewInternalError(err)
	}
	return result, nil
}

// recountLikes sets posts.likes to the number of like rows for each post.
func recountLikes(tx *gorm.DB, postIDs ...uint) error {
	return tx.Exec(
		"UPDATE posts SET likes = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) WHERE id IN ?",
		postIDs,
	).Error
}

// DeleteCascade removes the post, its comments and its likes in one transaction
// and returns the image reference to release after commit.
func (r *postRepository) DeleteCascade(ctx context.Context, id uint) (string, error) {
	var imageRef string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "image_ref").First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post")
			}
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return err
		}
		imageRef = post.ImageRef
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", models.NewInternalError(err)
	}
	return imageRef, nil
}
