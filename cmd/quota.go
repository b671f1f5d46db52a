package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newQuotaCmd creates the 'quota' subcommand.
func newQuotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show monthly quota usage for metered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			backends := a.Ledger().Backends()
			if len(backends) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No metered sources configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tPERIOD\tUSED\tLIMIT\tUTILIZATION\tLEVEL")
			for _, name := range backends {
				st, err := a.Ledger().Status(name)
				if err != nil {
					return fmt.Errorf("quota status for %s: %w", name, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%s\n",
					st.Backend, st.Period, st.Used, st.Limit, st.Percent, st.Level)
			}
			return w.Flush()
		},
	}
}
