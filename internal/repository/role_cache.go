package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artisansflow/portal/internal/domain"
)

const roleKeyPrefix = "af:role:"

// RoleCache stores resolved roles in Redis so request-time gating sees the
// role the last resolution produced.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache builds a cache whose entries expire after ttl.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

func (c *RoleCache) Get(ctx context.Context, userID string) (domain.Role, bool, error) {
	raw, err := c.client.Get(ctx, roleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !domain.Role(raw).IsKnown() {
		return "", false, nil
	}
	return domain.Role(raw), true, nil
}

func (c *RoleCache) Put(ctx context.Context, userID string, role domain.Role) error {
	return c.client.Set(ctx, roleKey(userID), string(role), c.ttl).Err()
}

func (c *RoleCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, roleKey(userID)).Err()
}

func roleKey(userID string) string {
	return roleKeyPrefix + userID
}
