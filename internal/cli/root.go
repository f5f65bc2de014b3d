// Package cli implements afctl, the portal's operator command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/config"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/persistence"
	"github.com/artisansflow/portal/internal/repository"
)

// RoleSetter changes the stored role of a profile.
type RoleSetter interface {
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error)
}

// Options carries the collaborators of the commands. Zero fields fall back
// to the environment configuration and the real stores.
type Options struct {
	Out          io.Writer
	LoadConfig   func() (*config.Config, error)
	OpenProfiles func(ctx context.Context, cfg *config.Config) (RoleSetter, func(), error)
}

// NewRootCommand builds the afctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.OpenProfiles == nil {
		opts.OpenProfiles = openProfiles
	}

	root := &cobra.Command{
		Use:   "afctl",
		Short: "Operate the ArtisansFlow portal",
		Long: `afctl inspects the role model and route table of the portal and
performs operator tasks against its profile store.`,
		SilenceUsage: true,
	}
	root.SetOut(opts.Out)

	root.AddCommand(
		newRolesCommand(),
		newRoutesCommand(),
		newProfileCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// cachedRoleSetter evicts the edge cache entry after a role change.
type cachedRoleSetter struct {
	profiles repository.ProfileRepository
	cache    *repository.RoleCache
}

func (s cachedRoleSetter) SetRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error) {
	profile, err := s.profiles.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, id)
	return profile, nil
}

func openProfiles(ctx context.Context, cfg *config.Config) (RoleSetter, func(), error) {
	logger := zap.NewNop()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, err
	}
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	setter := cachedRoleSetter{
		profiles: repository.NewProfileRepository(pg.Pool),
		cache:    repository.NewRoleCache(redis.Client, cfg.Redis.RoleTTL()),
	}
	return setter, func() {
		redis.Close()
		pg.Close()
	}, nil
}
