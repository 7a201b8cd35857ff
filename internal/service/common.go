// Package service implements the community's business operations. Every
// operation receives the requesting account explicitly and consults the
// moderation gate before touching storage.
package service

import (
	"context"
	"log/slog"

	"tdh/internal/media"
	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/notifications"
	"tdh/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Upload is a raw file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// MediaUploader normalizes images and writes them to the configured store.
type MediaUploader struct {
	Store    storage.Store
	MaxBytes int64
}

func (m *MediaUploader) save(ctx context.Context, prefix string, up *Upload) (string, error) {
	if m == nil || m.Store == nil {
		return "", models.NewValidationError("Image uploads are disabled")
	}
	img, err := media.Normalize(up.Content, up.ContentType, m.MaxBytes)
	if err != nil {
		return "", err
	}
	ref, err := m.Store.Save(ctx, storage.ObjectName(prefix, media.Extension), img.Data, media.ContentType)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return ref, nil
}

func (m *MediaUploader) release(ctx context.Context, refs ...string) {
	if m == nil {
		return
	}
	storage.Release(ctx, m.Store, refs...)
}

type noopPublisher struct{}

func (noopPublisher) Broadcast(context.Context, notifications.Event) error        { return nil }
func (noopPublisher) NotifyUser(context.Context, uint, notifications.Event) error { return nil }

func publisherOrNoop(p notifications.Publisher) notifications.Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// logPublishError records a failed realtime publish. The mutation already committed.
func logPublishError(ctx context.Context, event string, err error) {
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("event", event), slog.String("error", err.Error()))
	}
}

// annotateLiked sets Post.Liked using one membership query for the whole page.
func annotateLiked(ctx context.Context, likes interface {
	GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
}, viewerID uint, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := likes.GetLikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for _, p := range posts {
		_, p.Liked = set[p.ID]
	}
	return nil
}
