package service

import (
	"context"
	"strings"

	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/notifications"
	"tdh/internal/repository"
	"tdh/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	publisher   notifications.Publisher
}

func NewCommentService(commentRepo repository.CommentRepository, publisher notifications.Publisher) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		publisher:   publisherOrNoop(publisher),
	}
}

// AddComment appends a comment under a post.
func (s *CommentService) AddComment(ctx context.Context, requester *models.User, postID uint, content string) (*models.Comment, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewEmptyContentError("Comment content is empty")
	}
	if err := validation.ValidateLength("content", content, validation.CommentMaxLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  requester.ID,
		Content: content,
	}
	if err := s.commentRepo.CreateForPost(ctx, comment); err != nil {
		return nil, err
	}

	logPublishError(ctx, notifications.EventCommentCreated, s.publisher.Broadcast(ctx, notifications.Event{
		Type: notifications.EventCommentCreated,
		Payload: map[string]any{
			"post_id":    postID,
			"comment_id": comment.ID,
			"username":   comment.User.Username,
		},
	}))
	return comment, nil
}

// ListComments returns the thread under a post, oldest first.
func (s *CommentService) ListComments(ctx context.Context, requester *models.User, postID uint) ([]*models.Comment, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}
