package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artisansflow/portal/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://demo.supabase.co", cfg.Identity.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "sb-access-token", cfg.Identity.AccessCookie)
	assert.Equal(t, "af_ctx", cfg.Guard.ContextCookie)
	assert.Equal(t, 1500*time.Millisecond, cfg.Guard.RenderWait())
	assert.Equal(t, 5*time.Minute, cfg.Redis.RoleTTL())
	assert.Equal(t, 30*time.Minute, cfg.Shell.IdleTimeout())
	assert.Equal(t, "table_changes", cfg.Postgres.ChangeChannel)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadFallsBackToPublicVariables(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://public.supabase.co")
	t.Setenv("NEXT_PUBLIC_SUPABASE_ANON_KEY", "public-anon")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://public.supabase.co", cfg.Identity.URL)
	assert.Equal(t, "public-anon", cfg.Identity.AnonKey)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingProvider(t *testing.T) {
	cfg := &config.Config{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := config.Load()
	assert.Error(t, err)
}
