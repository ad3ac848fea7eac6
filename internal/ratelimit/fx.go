package ratelimit

import (
	"github.com/lotshot/lotshot/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// NewRedisClient returns nil when no Redis address is configured; the
// run guard then degrades to a pass-through.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

var Module = fx.Module("ratelimit",
	fx.Provide(
		NewRedisClient,
		NewRunGuard,
	),
)
