package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/persistence"
	"github.com/artisansflow/portal/internal/repository"
)

// These tests run against real services when POSTGRES_TEST_DSN and
// REDIS_TEST_ADDR are set.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	require.NoError(t, persistence.RunMigrations(dsn, "../../migrations", zap.NewNop()))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestProfileRepositoryLifecycle(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewProfileRepository(pool)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	created, err := repo.Ensure(ctx, domain.Profile{ID: id, FullName: "Jane", Role: domain.RolePro})
	require.NoError(t, err)
	assert.Equal(t, domain.RolePro, created.Role)
	assert.Equal(t, "Jane", created.FullName)
	assert.Empty(t, created.Company)

	// a second create keeps the stored role
	again, err := repo.Ensure(ctx, domain.Profile{ID: id, Role: domain.RoleBasic})
	require.NoError(t, err)
	assert.Equal(t, domain.RolePro, again.Role)

	updated, err := repo.UpdateDisplay(ctx, id, domain.ProfileDisplay{FullName: "Jane Doe", Company: "Doe Electric"})
	require.NoError(t, err)
	assert.Equal(t, "Doe Electric", updated.Company)
	assert.Equal(t, domain.RolePro, updated.Role)

	promoted, err := repo.SetRole(ctx, id, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)

	_, err = repo.SetRole(ctx, uuid.NewString(), domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))

	list, err := repo.List(ctx, 500, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestProfileRepositoryNormalisesStoredRole(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewProfileRepository(pool)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO profiles (id, role) VALUES ($1, 'superuser')`, id)
	require.NoError(t, err)

	profile, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBasic, profile.Role)
}

func TestActivityRepository(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewActivityRepository(pool)
	ctx := context.Background()

	before, err := repo.Count(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, uuid.NewString(), time.Now()))

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestRoleCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	cache := repository.NewRoleCache(client, time.Minute)
	ctx := context.Background()
	id := uuid.NewString()

	_, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, id, domain.RoleVIP))
	role, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleVIP, role)

	require.NoError(t, cache.Delete(ctx, id))
	_, ok, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
