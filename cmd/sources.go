package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newSourcesCmd creates the 'sources' subcommand.
func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured job sources and their platform coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tKIND\tCREDENTIALS\tMONTHLY LIMIT\tPLATFORMS")
			for _, e := range a.Registry().Entries() {
				limit := "-"
				if e.Descriptor.Metered() {
					limit = fmt.Sprintf("%d", e.Descriptor.MonthlyLimit)
				}
				creds := "none"
				if keys := e.Backend.Credentials(); len(keys) > 0 {
					creds = strings.Join(keys, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Descriptor.Name, e.Descriptor.Kind, creds, limit,
					strings.Join(e.Descriptor.Platforms, ","))
			}
			return w.Flush()
		},
	}
}
