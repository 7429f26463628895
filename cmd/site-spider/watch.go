package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
	"github.com/Sriram-PR/site-spider/pkg/report"
	"github.com/Sriram-PR/site-spider/pkg/storage"
	"github.com/Sriram-PR/site-spider/pkg/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	opts := &checkOptions{}
	var interval string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check configured sites on a schedule",
		Long: `Watch checks the selected sites, then checks each one again whenever its
interval has elapsed. The time of the last check is kept in the state
directory, so a restarted watcher resumes the schedule.

Examples:
  site-spider watch -c sites.yaml --site docs --interval 1h
  site-spider watch -c sites.yaml --all-sites --interval 1d --history`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := report.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			every, err := watch.ParseInterval(interval)
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
			targets, err := selectTargets(appCfg, opts)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, targets, opts, logger); err != nil {
				return err
			}
			appCfg.Sites = mergeSites(appCfg.Sites, targets)

			entry := logger.WithField("component", "watch")
			var orchOpts []orchestrate.Option
			if opts.history {
				store, err := storage.NewBadgerStore(appCfg.StateDir, entry)
				if err != nil {
					return err
				}
				defer store.Close()
				orchOpts = append(orchOpts, orchestrate.WithRunStore(store))
			}

			out := cmd.OutOrStdout()
			scheduler, err := watch.NewScheduler(
				orchestrate.NewOrchestrator(appCfg, entry, orchOpts...),
				targetKeys(targets),
				every,
				watch.NewStateManager(appCfg.StateDir),
				entry,
				watch.WithResultHandler(func(results []orchestrate.SiteResult) {
					summaries := make([]*report.Summary, 0, len(results))
					for _, r := range results {
						if r.Summary != nil {
							summaries = append(summaries, r.Summary)
						}
					}
					if err := report.Write(out, format, summaries...); err != nil {
						logger.Errorf("Failed to write report: %v", err)
					}
				}),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return scheduler.Run(ctx)
		},
	}
	addSiteFlags(cmd, opts)
	cmd.Flags().StringVarP(&interval, "interval", "i", "24h", "Time between checks of a site (e.g. 30m, 1h, 7d)")
	cmd.MarkFlagsMutuallyExclusive("site", "sites", "all-sites")
	cmd.MarkFlagsOneRequired("site", "sites", "all-sites")
	return cmd
}
