package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
	"github.com/Sriram-PR/site-spider/pkg/storage"
)

const (
	serverName    = "site-spider"
	serverVersion = "1.0.0"

	hostEvictionInterval = 5 * time.Minute
	storeGCInterval      = 10 * time.Minute
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Store      storage.RunStore // optional run history
}

// Server exposes site checks as MCP tools
type Server struct {
	mcpServer    *server.MCPServer
	cfg          *ServerConfig
	log          *logrus.Entry
	jobManager   *JobManager
	orchestrator *orchestrate.Orchestrator
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	log := cfg.Logger.WithField("component", "mcp")
	var orchestratorOpts []orchestrate.Option
	if cfg.Store != nil {
		orchestratorOpts = append(orchestratorOpts, orchestrate.WithRunStore(cfg.Store))
	}

	s := &Server{
		mcpServer:    mcpServer,
		cfg:          cfg,
		log:          log,
		jobManager:   NewJobManager(),
		orchestrator: orchestrate.NewOrchestrator(cfg.AppConfig, log, orchestratorOpts...),
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	listSitesTool := mcp.NewTool("list_sites",
		mcp.WithDescription("List all configured sites available for checking"),
	)
	s.mcpServer.AddTool(listSitesTool, s.handleListSites)

	checkSiteTool := mcp.NewTool("check_site",
		mcp.WithDescription("Start a background integrity check of a site: broken links, missing titles, malformed references. Returns immediately with a job ID."),
		mcp.WithString("site_key",
			mcp.Description("Site key from the config file"),
		),
		mcp.WithString("url",
			mcp.Description("Root URL to check when no site_key is given"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link distance from the root (-1 unlimited, 0 root only)"),
		),
	)
	s.mcpServer.AddTool(checkSiteTool, s.handleCheckSite)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and findings of a check job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by check_site"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running check job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by check_site"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	listErrorKindsTool := mcp.NewTool("list_error_kinds",
		mcp.WithDescription("List the problem kinds a check can report; these are the rule names used in ignore files"),
	)
	s.mcpServer.AddTool(listErrorKindsTool, s.handleListErrorKinds)

	toolCount := 5
	if s.cfg.Store != nil {
		historyTool := mcp.NewTool("get_run_history",
			mcp.WithDescription("List recent recorded checks, newest first"),
			mcp.WithString("site_key",
				mcp.Description("Limit to one site (optional)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of runs to return (default: 10, max: 100)"),
			),
		)
		s.mcpServer.AddTool(historyTool, s.handleGetRunHistory)
		toolCount++
	}

	s.log.Infof("Registered %d MCP tools", toolCount)
}

// Run starts the MCP server with the configured transport
// Background maintenance (idle host eviction, store GC) stops when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	go s.orchestrator.Limiter().Hosts().RunEviction(ctx, hostEvictionInterval)
	if s.cfg.Store != nil {
		go s.cfg.Store.RunGC(ctx, storeGCInterval)
	}

	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
