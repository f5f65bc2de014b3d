package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/config"
)

// Redis holds the client behind the shared role cache. The edge gate reads
// roles from it; resolvers write them after every resolution.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects the role cache store. Redis is optional: an unreachable
// server is logged and the client is returned anyway, so cache reads miss
// and the edge gate falls back to metadata roles until it comes back.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("role cache unavailable, edge gate will use metadata roles",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
	} else {
		logger.Info("role cache connected",
			zap.String("addr", cfg.Addr),
			zap.Int("db", cfg.DB),
			zap.Duration("role_ttl", cfg.RoleTTL()),
		)
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the readiness probe, which reports a failure as degraded.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("role cache not configured")
	}
	return r.Client.Ping(ctx).Err()
}
