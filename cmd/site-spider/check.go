package main

import (
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
	"github.com/Sriram-PR/site-spider/pkg/report"
	"github.com/Sriram-PR/site-spider/pkg/storage"
)

// checkOptions holds the flags of the check command
type checkOptions struct {
	rootURL    string
	siteKey    string
	sites      string
	allSites   bool
	depth      int
	ignoreFile string
	hosts      []string
	dotDir     string
	format     string
	history    bool
}

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Crawl a site and report broken links and malformed pages",
		Long: `Check crawls every page reachable from the root URL and reports problems:
HTTP errors, unreachable pages, missing or empty reference attributes,
invalid URLs, empty scripts and pages without a title.

The command exits with status 1 when any crawl found a problem that is not
suppressed by an ignore file.

Examples:
  # Check an ad-hoc site
  site-spider check --url https://example.com/

  # Only the root page and its direct references
  site-spider check --url https://example.com/ --depth 1

  # Check configured sites in parallel and keep the results
  site-spider check -c sites.yaml --sites docs,blog --history

  # Export the link graph for graphviz
  site-spider check --url https://example.com/ --dot-dir ./graphs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.rootURL, "url", "u", "", "Root URL to check (ad-hoc site)")
	addSiteFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.dotDir, "dot-dir", "", "Write the link graph of each site as a DOT file into this directory")

	cmd.MarkFlagsMutuallyExclusive("url", "site", "sites", "all-sites")
	cmd.MarkFlagsOneRequired("url", "site", "sites", "all-sites")

	return cmd
}

// addSiteFlags registers the site selection, override and output flags shared by check and watch
func addSiteFlags(cmd *cobra.Command, opts *checkOptions) {
	cmd.Flags().StringVarP(&opts.siteKey, "site", "s", "", "Site key from the config file")
	cmd.Flags().StringVar(&opts.sites, "sites", "", "Comma-separated site keys, checked in parallel")
	cmd.Flags().BoolVar(&opts.allSites, "all-sites", false, "Check every configured site in parallel")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", config.UnlimitedDepth, "Maximum link distance from the root (-1 unlimited, 0 root only)")
	cmd.Flags().StringVar(&opts.ignoreFile, "ignore-file", "", "File of '<kind> <url or path>' rules suppressing known problems")
	cmd.Flags().StringArrayVar(&opts.hosts, "host", nil, "Additional host whose pages are crawled (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Report format (text, json, yaml)")
	cmd.Flags().BoolVar(&opts.history, "history", false, "Record the results in the run history database")
}

func runCheck(cmd *cobra.Command, opts *checkOptions) error {
	format, err := report.ParseFormat(opts.format)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entry := logger.WithField("component", "check")
	var orchOpts []orchestrate.Option
	if opts.history {
		store, err := storage.NewBadgerStore(appCfg.StateDir, entry)
		if err != nil {
			return err
		}
		defer store.Close()
		orchOpts = append(orchOpts, orchestrate.WithRunStore(store))
	}

	var results []orchestrate.SiteResult
	if opts.rootURL != "" {
		o := orchestrate.NewOrchestrator(appCfg, entry, orchOpts...)
		results = []orchestrate.SiteResult{o.CheckSite(ctx, "", targets[""])}
	} else {
		appCfg.Sites = mergeSites(appCfg.Sites, targets)
		o := orchestrate.NewOrchestrator(appCfg, entry, orchOpts...)
		results = o.Run(ctx, targetKeys(targets))
	}

	return finishCheck(cmd, results, format, opts.dotDir, logger)
}

// selectTargets returns the sites named by the flags, keyed by site key
// An ad-hoc --url check is returned under the empty key
func selectTargets(appCfg *config.AppConfig, opts *checkOptions) (map[string]config.SiteConfig, error) {
	if opts.rootURL != "" {
		return map[string]config.SiteConfig{"": {RootURL: opts.rootURL}}, nil
	}
	if len(appCfg.Sites) == 0 {
		return nil, fmt.Errorf("no sites configured; pass --config or use --url")
	}

	var keys []string
	switch {
	case opts.allSites:
		keys = orchestrate.GetAllSiteKeys(appCfg)
	case opts.sites != "":
		for _, s := range strings.Split(opts.sites, ",") {
			if s = strings.TrimSpace(s); s != "" {
				keys = append(keys, s)
			}
		}
	default:
		keys = []string{opts.siteKey}
	}
	if err := orchestrate.ValidateSiteKeys(appCfg, keys); err != nil {
		return nil, err
	}

	targets := make(map[string]config.SiteConfig, len(keys))
	for _, k := range keys {
		targets[k] = appCfg.Sites[k]
	}
	return targets, nil
}

// applyOverrides applies the command line overrides to every target and validates it
func applyOverrides(cmd *cobra.Command, targets map[string]config.SiteConfig, opts *checkOptions, logger *logrus.Logger) error {
	depthSet := cmd.Flags().Changed("depth")
	if depthSet && opts.depth < config.UnlimitedDepth {
		return fmt.Errorf("--depth must be -1 or greater, got %d", opts.depth)
	}
	for key, siteCfg := range targets {
		if depthSet {
			depth := opts.depth
			siteCfg.MaxDepth = &depth
		}
		if opts.ignoreFile != "" {
			siteCfg.IgnoreFile = opts.ignoreFile
		}
		siteCfg.Hosts = append(siteCfg.Hosts, opts.hosts...)
		warnings, err := siteCfg.Validate()
		if err != nil {
			return fmt.Errorf("site '%s': %w", key, err)
		}
		for _, w := range warnings {
			logger.Debugf("[%s] %s", key, w)
		}
		targets[key] = siteCfg
	}
	return nil
}

// targetKeys returns the selected site keys, sorted
func targetKeys(targets map[string]config.SiteConfig) []string {
	return slices.Sorted(maps.Keys(targets))
}

func mergeSites(base, overrides map[string]config.SiteConfig) map[string]config.SiteConfig {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]config.SiteConfig, len(overrides))
	}
	maps.Copy(merged, overrides)
	return merged
}

// finishCheck writes the reports and DOT files and turns failed crawls into the command error
func finishCheck(cmd *cobra.Command, results []orchestrate.SiteResult, format report.Format, dotDir string, logger *logrus.Logger) error {
	summaries := make([]*report.Summary, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
		if r.Summary == nil {
			logger.Errorf("Site %s was not checked: %v", siteLabel(r), r.Error)
			continue
		}
		summaries = append(summaries, r.Summary)

		if dotDir != "" && r.Graph != nil {
			path := report.FilePath(dotDir, siteLabel(r), "dot")
			if err := report.WriteFile(path, func(w io.Writer) error { return report.WriteDOT(w, r.Graph) }); err != nil {
				return err
			}
			logger.Infof("Wrote link graph to %s", path)
		}
	}

	if len(summaries) > 0 {
		if err := report.Write(cmd.OutOrStdout(), format, summaries...); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed: %w", failed, len(results), models.ErrFailedCrawl)
	}
	return nil
}

// siteLabel names a result by site key, or by host for ad-hoc checks
func siteLabel(r orchestrate.SiteResult) string {
	if r.SiteKey != "" {
		return r.SiteKey
	}
	if u, err := url.Parse(r.RootURL); err == nil && u.Host != "" {
		return u.Host
	}
	return r.RootURL
}
