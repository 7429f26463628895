package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/mcp"
	"github.com/Sriram-PR/site-spider/pkg/storage"
)

// NewMcpServerCmd creates the mcp-server command.
func NewMcpServerCmd() *cobra.Command {
	var (
		transport string
		port      int
		history   bool
	)
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start an MCP server exposing site checks as tools",
		Long: `Start an MCP (Model Context Protocol) server for AI tool integration.

Available MCP Tools:
  list_sites        List the configured sites
  check_site        Start a background check of a site or URL
  get_job_status    Status and findings of a check
  cancel_job        Cancel a running check
  list_error_kinds  Problem kinds usable in ignore files
  get_run_history   Recorded checks (with --history)

Examples:
  # stdio transport, for desktop assistants
  site-spider mcp-server -c sites.yaml

  # SSE transport on port 8080
  site-spider mcp-server -c sites.yaml --transport sse --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the MCP protocol for stdio
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())

			appCfg, path, err := loadAppConfig(cmd, logger)
			if err != nil {
				return err
			}

			serverCfg := &mcp.ServerConfig{
				AppConfig:  appCfg,
				ConfigPath: path,
				Transport:  transport,
				Port:       port,
				Logger:     logger,
			}
			if history {
				store, err := storage.NewBadgerStore(appCfg.StateDir, logger.WithField("component", "history"))
				if err != nil {
					return err
				}
				defer store.Close()
				serverCfg.Store = store
			}

			server, err := mcp.NewServer(serverCfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer server.Shutdown(ctx)

			logger.Infof("Starting MCP server (transport: %s)", transport)
			return server.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port (for sse transport)")
	cmd.Flags().BoolVar(&history, "history", false, "Record checks in the run history database and expose get_run_history")
	return cmd
}
