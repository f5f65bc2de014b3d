package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/persistence"
	"github.com/artisansflow/portal/internal/shell"
)

const profilesTable = "profiles"

// ChangeSubscriber is the subscription side of a change feed.
type ChangeSubscriber interface {
	Subscribe(table string, filter persistence.Filter, handler persistence.ChangeHandler) (unsubscribe func())
}

// UserContexts looks up the browser contexts signed in as a user.
type UserContexts interface {
	ForUser(userID string) []*shell.Context
}

// RoleEvictor drops cached roles.
type RoleEvictor interface {
	Delete(ctx context.Context, userID string) error
}

// ProfileListener re-resolves every browser context of a user whose profile
// role changed, so a promotion or demotion applies without a new sign-in.
type ProfileListener struct {
	feed     ChangeSubscriber
	contexts UserContexts
	cache    RoleEvictor
	logger   *zap.Logger
	timeout  time.Duration
}

// NewProfileListener wires the listener. cache may be nil.
func NewProfileListener(feed ChangeSubscriber, contexts UserContexts, cache RoleEvictor, logger *zap.Logger) *ProfileListener {
	return &ProfileListener{
		feed:     feed,
		contexts: contexts,
		cache:    cache,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

// Start subscribes to profile changes and returns the function stopping it.
func (l *ProfileListener) Start() (stop func()) {
	return l.feed.Subscribe(profilesTable, roleChanged, l.handle)
}

// roleChanged accepts updates that touch the role and deletions.
func roleChanged(change persistence.Change) bool {
	switch change.Op {
	case "DELETE":
		return true
	case "UPDATE":
		return change.OldRecord == nil || change.Value("role") != oldValue(change, "role")
	}
	return false
}

func oldValue(change persistence.Change, column string) string {
	return persistence.Change{OldRecord: change.OldRecord}.Value(column)
}

func (l *ProfileListener) handle(ctx context.Context, change persistence.Change) {
	userID := change.Value("id")
	if userID == "" {
		return
	}

	if l.cache != nil {
		if err := l.cache.Delete(ctx, userID); err != nil {
			l.logger.Warn("role cache eviction failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	targets := l.contexts.ForUser(userID)
	l.logger.Info("profile role changed",
		zap.String("user_id", userID),
		zap.String("op", change.Op),
		zap.String("role", change.Value("role")),
		zap.Int("contexts", len(targets)),
	)
	for _, bc := range targets {
		go l.refresh(bc)
	}
}

func (l *ProfileListener) refresh(bc *shell.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if _, err := bc.Resolver.Refresh(ctx); err != nil {
		l.logger.Warn("browser context refresh timed out", zap.String("context_id", bc.ID), zap.Error(err))
	}
}
