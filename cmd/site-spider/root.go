package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/log"
)

// NewRootCmd creates the root command for site-spider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site-spider",
		Short: "Site integrity crawler",
		Long: `site-spider crawls every page reachable from a root URL and reports
broken links, pages without a title and malformed references.

Sites can be given ad hoc with --url or described in a YAML/TOML config file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("loglevel", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or TOML config file")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewMcpServerCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the logger for a command; logs go to the command's stderr
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level, _ := cmd.Flags().GetString("loglevel")
	return log.NewLogger(level, cmd.ErrOrStderr())
}

// loadAppConfig loads and validates the --config file
// Without a config file the defaults are used, which only works for ad-hoc --url checks
func loadAppConfig(cmd *cobra.Command, logger *logrus.Logger) (*config.AppConfig, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultAppConfig(), "", nil
	}

	logger.Infof("Loading configuration from %s", path)
	appCfg, warnings, err := config.LoadAndValidate(path)
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, path, err
	}
	return appCfg, path, nil
}
