package orchestrate

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/crawler"
	"github.com/Sriram-PR/site-spider/pkg/fetch"
	"github.com/Sriram-PR/site-spider/pkg/graph"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/report"
	"github.com/Sriram-PR/site-spider/pkg/storage"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// SiteResult contains the result of checking a single site
type SiteResult struct {
	SiteKey  string
	RootURL  string
	Success  bool
	Error    error // models.ErrFailedCrawl when problems were found, or the setup error
	Pages    int
	Links    int
	Errors   []models.SpiderError
	Duration time.Duration
	RunID    string // set when the run was saved to history

	Summary *report.Summary // nil when the crawl never started
	Graph   *graph.Graph
}

// Orchestrator manages parallel checking of multiple sites
// Every site gets its own Spider; the HTTP client and admission limiter are shared
type Orchestrator struct {
	appCfg *config.AppConfig
	log    *logrus.Entry

	// Shared resources
	fetcher fetch.HTTPFetcher
	limiter *fetch.Limiter
	store   storage.RunWriter // nil = history disabled
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRunStore saves every finished crawl to store
func WithRunStore(store storage.RunWriter) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithFetcher replaces the fetcher built from the HTTP client settings
func WithFetcher(f fetch.HTTPFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// NewOrchestrator builds the shared client, fetcher and limiter from appCfg
func NewOrchestrator(appCfg *config.AppConfig, log *logrus.Entry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		appCfg:  appCfg,
		log:     log,
		limiter: fetch.NewLimiter(appCfg.MaxRequests, appCfg.MaxRequestsPerHost, log),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		client := fetch.NewClient(appCfg.HTTPClientSettings, log)
		o.fetcher = fetch.NewFetcher(client, appCfg.UserAgent, fetch.RetryPolicy{
			MaxRetries:        appCfg.MaxRetries,
			InitialRetryDelay: appCfg.InitialRetryDelay,
			MaxRetryDelay:     appCfg.MaxRetryDelay,
		}, log)
	}
	return o
}

// Limiter returns the shared admission limiter
func (o *Orchestrator) Limiter() *fetch.Limiter {
	return o.limiter
}

// Run checks the configured sites named by siteKeys in parallel and waits for all of them
// Results are returned in siteKeys order
func (o *Orchestrator) Run(ctx context.Context, siteKeys []string) []SiteResult {
	startTime := time.Now()
	o.log.Infof("Starting parallel check of %d sites: %v", len(siteKeys), siteKeys)

	results := make([]SiteResult, len(siteKeys))
	var wg sync.WaitGroup
	for i, siteKey := range siteKeys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			siteCfg, exists := o.appCfg.Sites[siteKey]
			if !exists {
				results[i] = SiteResult{
					SiteKey: siteKey,
					Error:   fmt.Errorf("%w: site '%s' not found in configuration", utils.ErrConfigValidation, siteKey),
				}
				o.log.Errorf("Site '%s' not found in configuration", siteKey)
				return
			}
			results[i] = o.CheckSite(ctx, siteKey, siteCfg)
		}()
	}
	wg.Wait()

	o.logSummary(results, time.Since(startTime))
	return results
}

// CheckSite crawls one site and records the run when a store is configured
func (o *Orchestrator) CheckSite(ctx context.Context, siteKey string, siteCfg config.SiteConfig) SiteResult {
	startTime := time.Now()
	result := SiteResult{SiteKey: siteKey, RootURL: siteCfg.RootURL}
	siteLog := o.log.WithField("site", siteKey)

	opts, err := config.NewSpiderOptions(siteCfg, o.appCfg)
	if err != nil {
		result.Error = fmt.Errorf("failed to build options for '%s': %w", siteKey, err)
		siteLog.Errorf("Failed to build options: %v", err)
		return result
	}

	spider := crawler.NewSpider(opts, o.fetcher, siteLog, crawler.WithLimiter(o.limiter))
	ok, err := spider.VisitWebsite(ctx, siteCfg.RootURL)
	finishedAt := time.Now()
	result.Duration = finishedAt.Sub(startTime)
	if err != nil {
		result.Error = err
		siteLog.Errorf("Crawl could not start: %v", err)
		return result
	}

	result.Success = ok
	if !ok {
		result.Error = models.ErrFailedCrawl
	}
	result.Summary = report.NewSummary(siteKey, siteCfg.RootURL, ok, spider, startTime, finishedAt)
	result.Pages = result.Summary.Pages
	result.Links = result.Summary.Links
	result.Errors = result.Summary.Errors
	result.Graph = spider.Graph()

	if o.store != nil {
		rec := result.Summary.RunRecord()
		if err := o.store.SaveRun(rec); err != nil {
			siteLog.Warnf("Failed to save run history: %v", err)
		} else {
			result.RunID = rec.ID
		}
	}
	return result
}

// logSummary logs a summary of all check results
func (o *Orchestrator) logSummary(results []SiteResult, totalDuration time.Duration) {
	var totalPages, totalErrors int
	successCount := 0

	for _, r := range results {
		status := "SUCCESS"
		if r.Success {
			successCount++
		} else {
			status = "FAILED"
		}
		totalPages += r.Pages
		totalErrors += len(r.Errors)

		entry := o.log.WithFields(logrus.Fields{
			"site":     r.SiteKey,
			"status":   status,
			"pages":    r.Pages,
			"errors":   len(r.Errors),
			"duration": r.Duration.Round(time.Millisecond),
		})
		if r.Error != nil && r.Summary == nil {
			entry.Warnf("Site not checked: %v", r.Error)
			continue
		}
		entry.Info("Site result")
	}

	o.log.Infof("Checked %d sites in %v (%d success, %d failed), %d pages, %d errors",
		len(results), totalDuration.Round(time.Millisecond), successCount, len(results)-successCount, totalPages, totalErrors)
}

// ValidateSiteKeys checks that all provided site keys exist in the config
func ValidateSiteKeys(appCfg *config.AppConfig, siteKeys []string) error {
	for _, key := range siteKeys {
		if _, exists := appCfg.Sites[key]; !exists {
			return fmt.Errorf("%w: site '%s' not found. Available sites: %v", utils.ErrConfigValidation, key, GetAllSiteKeys(appCfg))
		}
	}
	return nil
}

// GetAllSiteKeys returns all site keys from the config, sorted
func GetAllSiteKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// AllSucceeded reports whether every result is a successful crawl
func AllSucceeded(results []SiteResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
