package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hireloop/jobradar/internal/jobs"
	"github.com/hireloop/jobradar/internal/orchestrator"
)

type searchFlags struct {
	platforms     []string
	location      string
	maxResults    int
	page          int
	includeOnsite bool
	apisOnly      bool
	scrapersOnly  bool
	asJSON        bool
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Run an aggregated job search",
		Long: `Searches the configured job sources for the given terms. Without
--platform every covering source is queried and the results merged; with a
named platform the chain stops at the first source that yields listings.

Soft conditions (exhausted quota, missing credentials, source failures) fall
through to the next candidate and are reported, never fatal. The command only
fails when no source at all covers a requested platform.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.platforms, "platform", nil,
		"platform to search (repeatable; default: all covering sources)")
	cmd.Flags().StringVar(&flags.location, "location", "", "location filter")
	cmd.Flags().IntVar(&flags.maxResults, "max-results", 0, "cap on results per source (0 = source default)")
	cmd.Flags().IntVar(&flags.page, "page", 1, "result page")
	cmd.Flags().BoolVar(&flags.includeOnsite, "include-onsite", false, "include on-site listings (default: remote only)")
	cmd.Flags().BoolVar(&flags.apisOnly, "apis-only", false, "restrict the chain to API sources")
	cmd.Flags().BoolVar(&flags.scrapersOnly, "scrapers-only", false, "restrict the chain to scraper sources")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "emit records and report as JSON")
	cmd.MarkFlagsMutuallyExclusive("apis-only", "scrapers-only")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string, flags *searchFlags) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	query := jobs.Query{
		Terms:      strings.Join(args, " "),
		Location:   flags.location,
		Platforms:  flags.platforms,
		RemoteOnly: !flags.includeOnsite,
		MaxResults: flags.maxResults,
		Page:       flags.page,
	}
	opts := orchestrator.Options{}
	switch {
	case flags.apisOnly:
		opts.Kinds = []jobs.BackendKind{jobs.KindMeteredAPI, jobs.KindFreeAPI}
	case flags.scrapersOnly:
		opts.Kinds = []jobs.BackendKind{jobs.KindScraper}
	}

	records, report, err := a.Orchestrator().Fetch(cmd.Context(), query, opts)
	if err != nil {
		return err
	}

	if flags.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"records": records, "report": report})
	}

	printRecords(cmd, records)
	printReport(cmd, report)
	return nil
}

func printRecords(cmd *cobra.Command, records []jobs.Record) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No listings found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tCOMPANY\tLOCATION\tSOURCE\tURL")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			clip(r.Title, 40), clip(r.Company, 24), clip(r.Location, 24), r.Source, r.URL)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d listing(s)\n", len(records))
}

func printReport(cmd *cobra.Command, report jobs.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nQuery priority: %s\n", report.Priority)
	for _, att := range report.Attempts {
		line := fmt.Sprintf("  %-12s %-10s %s", att.Backend, att.Platform, att.Outcome)
		if att.Reason != "" {
			line += " (" + att.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintln(out, "WARNING:", warning)
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
