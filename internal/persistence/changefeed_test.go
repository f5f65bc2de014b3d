package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/persistence"
)

func TestChangeFeedDeliversMatchingChanges(t *testing.T) {
	feed := persistence.NewChangeFeed(nil, "table_changes", zap.NewNop())

	var mine, all []persistence.Change
	unsubscribe := feed.Subscribe("profiles", persistence.ColumnEquals("id", "u1"), func(_ context.Context, c persistence.Change) {
		mine = append(mine, c)
	})
	feed.Subscribe("profiles", nil, func(_ context.Context, c persistence.Change) {
		all = append(all, c)
	})

	ctx := context.Background()
	feed.Deliver(ctx, []byte(`{"table":"profiles","op":"UPDATE","record":{"id":"u1","role":"ADMIN"},"old_record":{"id":"u1","role":"PRO"}}`))
	feed.Deliver(ctx, []byte(`{"table":"profiles","op":"INSERT","record":{"id":"u2","role":"BASIC"}}`))
	feed.Deliver(ctx, []byte(`{"table":"user_activity","op":"INSERT","record":{"user_id":"u1"}}`))
	feed.Deliver(ctx, []byte(`not json`))

	assert.Len(t, mine, 1)
	assert.Equal(t, "ADMIN", mine[0].Value("role"))
	assert.Len(t, all, 2)

	unsubscribe()
	unsubscribe()
	feed.Deliver(ctx, []byte(`{"table":"profiles","op":"DELETE","old_record":{"id":"u1","role":"ADMIN"}}`))
	assert.Len(t, mine, 1)
	assert.Len(t, all, 3)
	assert.Equal(t, "u1", all[2].Value("id"))
}

func TestChangeFeedRunWithoutPoolReturns(t *testing.T) {
	feed := persistence.NewChangeFeed(nil, "table_changes", zap.NewNop())
	feed.Run(context.Background())
}
