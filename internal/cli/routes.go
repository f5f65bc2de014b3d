package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
)

func newRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the route table",
	}
	cmd.AddCommand(newRoutesExplainCommand())
	return cmd
}

func newRoutesExplainCommand() *cobra.Command {
	var (
		file      string
		role      string
		anonymous bool
	)
	cmd := &cobra.Command{
		Use:   "explain PATH",
		Short: "Explain the gate decision for a path",
		Long: `Explain how the edge gate decides a request for PATH.

Examples:
  # What happens to a signed-out visitor
  afctl routes explain /dashboard/stats --anonymous

  # What a BASIC tenant sees, using a custom table
  afctl routes explain /dashboard/stats --role BASIC --routes configs/routes.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := guard.LoadRouteTable(file)
			if err != nil {
				return err
			}
			normalized := domain.NormalizeRole(role)
			if !anonymous && role != "" && !domain.Role(strings.ToUpper(role)).IsKnown() {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown role %q treated as %s\n", role, normalized)
			}

			decision := guard.Decide(table, args[0], !anonymous, normalized)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}
	cmd.Flags().StringVar(&file, "routes", "", "route table YAML (defaults to the built-in table)")
	cmd.Flags().StringVar(&role, "role", string(domain.DefaultRole), "role of the signed-in visitor")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "decide for a visitor without a session")
	return cmd
}
