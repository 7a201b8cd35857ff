package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tdh/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Aside reads key into dest, falling back to fetch on a miss and storing the result with ttl.
// Redis failures degrade to calling fetch; fetch errors are returned unchanged.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	b, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, b, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
