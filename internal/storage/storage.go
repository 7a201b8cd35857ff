// Package storage persists media objects on local disk or in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"tdh/internal/config"
	"tdh/internal/middleware"
	"tdh/internal/observability"

	"github.com/google/uuid"
)

// Store saves and releases media objects. References returned by Save are
// opaque to callers and are passed back unchanged to Delete.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	Backend() string
}

// New builds the store selected by MEDIA_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MediaBackend {
	case "", "local":
		return NewLocalStore(cfg.MediaDir), nil
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
	}
}

// ObjectName returns a fresh collision-free object name under prefix.
func ObjectName(prefix, ext string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}

// Release deletes refs after a transaction committed. Failures are logged
// and counted; the database is already consistent at this point.
func Release(ctx context.Context, store Store, refs ...string) {
	if store == nil {
		return
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := store.Delete(ctx, ref); err != nil {
			middleware.Logger.Warn("failed to release media object",
				slog.String("backend", store.Backend()),
				slog.String("ref", ref),
				slog.String("error", err.Error()))
		}
	}
}

func record(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.MediaOperations.WithLabelValues(backend, op, result).Inc()
}
