package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/identity"
)

// CachedRoles is the edge-side role source. It prefers the role a resolver
// last published for the user and falls back to the metadata role.
type CachedRoles struct {
	cache  RoleCache
	logger *zap.Logger
}

// NewCachedRoles builds a role source. cache may be nil.
func NewCachedRoles(cache RoleCache, logger *zap.Logger) *CachedRoles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRoles{cache: cache, logger: logger}
}

// RoleFor returns the role to gate session with. It never fails.
func (c *CachedRoles) RoleFor(ctx context.Context, session *identity.Session) domain.Role {
	if session == nil {
		return domain.DefaultRole
	}
	if c.cache != nil {
		role, ok, err := c.cache.Get(ctx, session.User.ID)
		switch {
		case err != nil:
			c.logger.Debug("role cache read failed", zap.String("user_id", session.User.ID), zap.Error(err))
		case ok:
			return domain.NormalizeRole(string(role))
		}
	}
	return domain.NormalizeRole(session.User.RawRole())
}
