package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/report"
	"github.com/Sriram-PR/site-spider/pkg/storage"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var (
		siteKey string
		limit   int
		format  string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded checks, or show one of them",
		Long: `History reads the run database written by 'check --history'.
Without arguments it lists the most recent runs, newest first.
With a run ID it prints the full record of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			appCfg, _, err := loadAppConfig(cmd, logger)
			if err != nil {
				return err
			}
			store, err := storage.NewBadgerStore(appCfg.StateDir, logger.WithField("component", "history"))
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0], f)
			}
			return listRuns(cmd, store, siteKey, limit, f)
		},
	}
	cmd.Flags().StringVarP(&siteKey, "site", "s", "", "Only list runs of this site key")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	return cmd
}

func listRuns(cmd *cobra.Command, store storage.RunReader, siteKey string, limit int, format report.Format) error {
	runs, err := store.ListRuns(siteKey, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch format {
	case report.FormatJSON:
		return report.WriteJSON(out, runs)
	case report.FormatYAML:
		return report.WriteYAML(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		verdict := "OK"
		if !r.Success {
			verdict = "FAILED"
		}
		fmt.Fprintf(out, "%s  %s  %-6s  %s  %d pages, %d errors\n",
			r.ID, r.FinishedAt.Format(time.RFC3339), verdict, runLabel(r.SiteKey, r.RootURL), r.Pages, len(r.Errors))
	}
	return nil
}

func showRun(cmd *cobra.Command, store storage.RunReader, id string, format report.Format) error {
	r, err := store.GetRun(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch format {
	case report.FormatJSON:
		return report.WriteJSON(out, r)
	case report.FormatYAML:
		return report.WriteYAML(out, r)
	}

	verdict := "OK"
	if !r.Success {
		verdict = "FAILED"
	}
	fmt.Fprintf(out, "Run %s: %s\n", r.ID, verdict)
	fmt.Fprintf(out, "  Site:     %s\n", runLabel(r.SiteKey, r.RootURL))
	fmt.Fprintf(out, "  Finished: %s (%s)\n", r.FinishedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "  Pages:    %d\n", r.Pages)
	fmt.Fprintf(out, "  Links:    %d\n", r.Links)
	for _, msg := range r.Errors {
		fmt.Fprintf(out, "  - %s\n", msg)
	}
	return nil
}

func runLabel(siteKey, rootURL string) string {
	if siteKey == "" {
		return rootURL
	}
	return siteKey + " (" + rootURL + ")"
}
