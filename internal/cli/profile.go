package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artisansflow/portal/internal/domain"
)

func newProfileCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage tenant profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-role USER_ID ROLE",
		Short: "Change the stored role of a profile",
		Long: `Change the authoritative role of a profile. Signed-in browsers of the
user pick the new role up through the profile change feed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := domain.Role(strings.ToUpper(strings.TrimSpace(args[1])))
			if !role.IsKnown() {
				return fmt.Errorf("unknown role %q", args[1])
			}

			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			profiles, closeFn, err := opts.OpenProfiles(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open profile store: %w", err)
			}
			defer closeFn()

			profile, err := profiles.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", profile.ID, profile.Role)
			return nil
		},
	})
	return cmd
}
