// Package bootstrap prepares the runtime dependencies shared by the server
// and operator commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"tdh/internal/cache"
	"tdh/internal/config"
	"tdh/internal/database"
	"tdh/internal/middleware"
	"tdh/internal/repository"
	"tdh/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipAdmin leaves ADMIN_USERNAME untouched, for read-only tooling.
	SkipAdmin bool
}

// InitRuntime connects to the database and Redis, then ensures the configured
// administrator exists. Redis may be nil when it is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if !opts.SkipAdmin {
		if err := EnsureConfiguredAdmin(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap administrator: %w", err)
		}
	}

	return db, rdb, nil
}

// EnsureConfiguredAdmin creates or promotes ADMIN_USERNAME. It is a no-op
// when no administrator is configured.
func EnsureConfiguredAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.AdminUsername == "" {
		return nil
	}

	accounts := service.NewAccountService(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		nil, nil,
	)
	admin, err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}

	middleware.Logger.Info("administrator ensured",
		slog.Uint64("user_id", uint64(admin.ID)),
		slog.String("username", admin.Username))
	return nil
}
