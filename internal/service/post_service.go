package service

import (
	"context"
	"strings"

	"tdh/internal/models"
	"tdh/internal/moderation"
	"tdh/internal/notifications"
	"tdh/internal/observability"
	"tdh/internal/repository"
	"tdh/internal/validation"
)

type PostService struct {
	postRepo  repository.PostRepository
	media     *MediaUploader
	publisher notifications.Publisher
}

type CreatePostInput struct {
	Content string
	Image   *Upload
}

func NewPostService(postRepo repository.PostRepository, uploader *MediaUploader, publisher notifications.Publisher) *PostService {
	return &PostService{
		postRepo:  postRepo,
		media:     uploader,
		publisher: publisherOrNoop(publisher),
	}
}

// CreatePost publishes a member post. A post needs text, an image or both.
func (s *PostService) CreatePost(ctx context.Context, requester *models.User, in CreatePostInput) (*models.Post, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return nil, err
	}
	return s.create(ctx, requester, in, false)
}

// CreateAnnouncement publishes an administrator announcement into the feed.
func (s *PostService) CreateAnnouncement(ctx context.Context, requester *models.User, content string) (*models.Post, error) {
	if err := moderation.RequireAdmin(requester).Err(); err != nil {
		return nil, err
	}
	return s.create(ctx, requester, CreatePostInput{Content: content}, true)
}

func (s *PostService) create(ctx context.Context, requester *models.User, in CreatePostInput, announcement bool) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	hasImage := in.Image != nil && len(in.Image.Content) > 0
	if content == "" && !hasImage {
		return nil, models.NewEmptyContentError("Post content is empty")
	}
	if err := validation.ValidateLength("content", content, validation.PostMaxLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var imageRef string
	if hasImage {
		ref, err := s.media.save(ctx, "posts", in.Image)
		if err != nil {
			return nil, err
		}
		imageRef = ref
	}

	post := &models.Post{
		UserID:         requester.ID,
		Content:        content,
		ImageRef:       imageRef,
		IsAnnouncement: announcement,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		s.media.release(ctx, imageRef)
		return nil, err
	}
	post.User = *requester
	post.Comments = []*models.Comment{}

	logPublishError(ctx, notifications.EventPostCreated, s.publisher.Broadcast(ctx, notifications.Event{
		Type: notifications.EventPostCreated,
		Payload: map[string]any{
			"post_id":  post.ID,
			"user_id":  post.UserID,
			"username": requester.Username,
		},
	}))
	return post, nil
}

// ToggleLike likes the post if the requester has not yet, otherwise removes the like.
func (s *PostService) ToggleLike(ctx context.Context, requester *models.User, postID uint) (models.LikeResult, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return models.LikeResult{}, err
	}
	res, err := s.postRepo.ToggleLike(ctx, requester.ID, postID)
	if err != nil {
		return models.LikeResult{}, err
	}

	state := "unliked"
	if res.Liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()

	logPublishError(ctx, notifications.EventPostLiked, s.publisher.Broadcast(ctx, notifications.Event{
		Type:    notifications.EventPostLiked,
		Payload: map[string]any{"post_id": postID, "likes": res.Likes},
	}))
	return res, nil
}

// DeletePost removes a post with its comments and likes. Only the author or an administrator may do so.
func (s *PostService) DeletePost(ctx context.Context, requester *models.User, postID uint) error {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return err
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != requester.ID && !requester.IsAdmin {
		return models.NewForbiddenError("Only the author or an administrator can delete this post")
	}

	imageRef, err := s.postRepo.DeleteCascade(ctx, postID)
	if err != nil {
		return err
	}
	s.media.release(ctx, imageRef)

	logPublishError(ctx, notifications.EventPostDeleted, s.publisher.Broadcast(ctx, notifications.Event{
		Type:    notifications.EventPostDeleted,
		Payload: map[string]any{"post_id": postID},
	}))
	return nil
}

// ListFeed returns posts newest first with comments and the requester's likes.
func (s *PostService) ListFeed(ctx context.Context, requester *models.User, page Page) ([]*models.Post, error) {
	if err := moderation.Evaluate(requester).Err(); err != nil {
		return nil, err
	}
	page = page.normalize()
	posts, err := s.postRepo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	if err := annotateLiked(ctx, s.postRepo, requester.ID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
