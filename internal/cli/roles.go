package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artisansflow/portal/internal/domain"
)

type roleRow struct {
	Role         string   `json:"role"`
	Label        string   `json:"label"`
	FeatureLimit int      `json:"feature_limit"`
	Features     []string `json:"features"`
	Home         string   `json:"home"`
	SignUp       bool     `json:"sign_up"`
}

func newRolesCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List roles with their features and home routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([]roleRow, 0, len(domain.RoleOrder()))
			for _, role := range domain.RoleOrder() {
				features := make([]string, 0)
				for _, f := range domain.FeaturesFor(role) {
					features = append(features, string(f))
				}
				rows = append(rows, roleRow{
					Role:         string(role),
					Label:        role.Label(),
					FeatureLimit: role.FeatureLimit(),
					Features:     features,
					Home:         domain.HomeRouteFor(role),
					SignUp:       domain.IsSignupRole(role),
				})
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tLABEL\tLIMIT\tHOME\tFEATURES")
			for _, r := range rows {
				limit := fmt.Sprint(r.FeatureLimit)
				if r.FeatureLimit == domain.UnlimitedFeatures {
					limit = "unlimited"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Role, r.Label, limit, r.Home, strings.Join(r.Features, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text or json)")
	return cmd
}
