package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
)

// handleListSites handles the list_sites tool
func (s *Server) handleListSites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := orchestrate.GetAllSiteKeys(s.cfg.AppConfig)
	sites := make([]map[string]interface{}, 0, len(keys))

	for _, key := range keys {
		siteCfg := s.cfg.AppConfig.Sites[key]
		siteInfo := map[string]interface{}{
			"key":       key,
			"root_url":  siteCfg.RootURL,
			"hosts":     siteCfg.Hosts,
			"max_depth": siteCfg.EffectiveMaxDepth(),
		}

		if last := s.lastRun(key); last != nil {
			siteInfo["last_checked"] = last.FinishedAt.Format(time.RFC3339)
			siteInfo["last_success"] = last.Success
		}
		if s.jobManager.IsRunning(key) {
			siteInfo["status"] = "running"
		}

		sites = append(sites, siteInfo)
	}

	result := map[string]interface{}{
		"sites":       sites,
		"config_path": s.cfg.ConfigPath,
		"total_sites": len(sites),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCheckSite handles the check_site tool
func (s *Server) handleCheckSite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	siteKey := request.GetString("site_key", "")
	rootURL := request.GetString("url", "")

	var siteCfg config.SiteConfig
	target := siteKey
	switch {
	case siteKey != "" && rootURL != "":
		return mcp.NewToolResultError("give either site_key or url, not both"), nil
	case siteKey != "":
		cfg, exists := s.cfg.AppConfig.Sites[siteKey]
		if !exists {
			return mcp.NewToolResultError(fmt.Sprintf("site '%s' not found. Available sites: %v",
				siteKey, orchestrate.GetAllSiteKeys(s.cfg.AppConfig))), nil
		}
		siteCfg = cfg
	case rootURL != "":
		siteCfg = config.SiteConfig{RootURL: rootURL}
		target = rootURL
	default:
		return mcp.NewToolResultError("site_key or url parameter is required"), nil
	}

	if _, present := request.GetArguments()["max_depth"]; present {
		depth := request.GetInt("max_depth", config.UnlimitedDepth)
		if depth < config.UnlimitedDepth {
			return mcp.NewToolResultError("max_depth must be -1 or greater"), nil
		}
		siteCfg.MaxDepth = &depth
	}
	if _, err := siteCfg.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid site: %v", err)), nil
	}

	job, created := s.jobManager.CreateJob(target)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A check is already in progress for this site",
			"job_id":  job.ID,
			"target":  target,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runCheckJob(job.ID, target, siteCfg)

	result := map[string]interface{}{
		"status":    "started",
		"message":   "Check started successfully",
		"job_id":    job.ID,
		"target":    target,
		"root_url":  siteCfg.RootURL,
		"max_depth": siteCfg.EffectiveMaxDepth(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"target":     job.Target,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Success != nil {
		result["success"] = *job.Success
		result["pages"] = job.Pages
		result["links"] = job.Links
		result["error_counts"] = job.ErrorCounts
		result["errors"] = job.Errors
	}
	if job.RunID != "" {
		result["run_id"] = job.RunID
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' is not running", jobID)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id": jobID,
		"status": JobStatusCancelled,
	})), nil
}

// handleListErrorKinds handles the list_error_kinds tool
func (s *Server) handleListErrorKinds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kinds := make([]string, 0)
	for _, k := range models.AllErrorKinds() {
		if k == models.FailedCrawl {
			continue
		}
		kinds = append(kinds, k.String())
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"kinds":       kinds,
		"ignore_file": "one '<kind> <url or path>' pair per line, '#' starts a comment",
	})), nil
}

// handleGetRunHistory handles the get_run_history tool
func (s *Server) handleGetRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cfg.Store == nil {
		return mcp.NewToolResultError("run history is not enabled"), nil
	}
	siteKey := request.GetString("site_key", "")
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := s.cfg.Store.ListRuns(siteKey, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	entries := make([]map[string]interface{}, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, map[string]interface{}{
			"id":               r.ID,
			"site_key":         r.SiteKey,
			"root_url":         r.RootURL,
			"finished_at":      r.FinishedAt.Format(time.RFC3339),
			"duration_seconds": r.Duration().Seconds(),
			"success":          r.Success,
			"pages":            r.Pages,
			"links":            r.Links,
			"error_counts":     r.ErrorCounts,
		})
	}
	response := map[string]interface{}{
		"runs":  entries,
		"total": len(entries),
	}
	if siteKey != "" {
		response["site_key"] = siteKey
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// runCheckJob runs a site check in the background
func (s *Server) runCheckJob(jobID, target string, siteCfg config.SiteConfig) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)

	jobLog := s.log.WithField("job_id", jobID)
	jobLog.Infof("Starting check of %s", target)

	result := s.orchestrator.CheckSite(jobCtx, target, siteCfg)
	s.jobManager.Complete(jobID, result)

	jobLog.WithField("success", result.Success).Infof("Check of %s finished", target)
}

// lastRun returns the most recent recorded run for siteKey, if history is enabled
func (s *Server) lastRun(siteKey string) *models.RunRecord {
	if s.cfg.Store == nil {
		return nil
	}
	runs, err := s.cfg.Store.ListRuns(siteKey, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	return &runs[0]
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
