package crawler

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/fetch"
	"github.com/Sriram-PR/site-spider/pkg/graph"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/parse"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// Spider checks one site: it owns the page graph and the options of a single crawl
type Spider struct {
	opts    *config.SpiderOptions
	fetcher fetch.HTTPFetcher
	limiter *fetch.Limiter // nil = no admission control
	graph   *graph.Graph
	log     *logrus.Entry

	fetched atomic.Int64 // HTTP requests issued
}

// SpiderOption configures optional Spider collaborators
type SpiderOption func(*Spider)

// WithLimiter bounds in-flight requests; the limiter may be shared between spiders
func WithLimiter(l *fetch.Limiter) SpiderOption {
	return func(s *Spider) { s.limiter = l }
}

// NewSpider creates a Spider. opts is copied and never modified during the crawl
func NewSpider(opts *config.SpiderOptions, fetcher fetch.HTTPFetcher, log *logrus.Entry, options ...SpiderOption) *Spider {
	if opts == nil {
		opts = config.DefaultSpiderOptions()
	}
	copied := *opts
	s := &Spider{
		opts:    &copied,
		fetcher: fetcher,
		graph:   graph.New(),
		log:     log,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// VisitWebsite crawls from rawURL and reports whether no unsuppressed problem was found
// The error is non-nil only when rawURL is not an absolute URL. When no hosts are configured
// the root's host becomes the allow-list
func (s *Spider) VisitWebsite(ctx context.Context, rawURL string) (bool, error) {
	root, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("%w: root URL %q: %w", utils.ErrParsing, rawURL, err)
	}
	if !root.IsAbs() || root.Host == "" {
		return false, fmt.Errorf("%w: root URL %q must be absolute", utils.ErrParsing, rawURL)
	}
	root = parse.Canonical(root)

	if len(s.opts.Hosts) == 0 {
		s.opts = s.opts.WithHosts(root.Host)
	}

	crawlLog := s.log.WithFields(logrus.Fields{"root": root.String(), "max_depth": s.opts.MaxDepth})
	crawlLog.Info("Starting crawl")
	start := time.Now()

	ok := s.visitRoot(ctx, root)

	crawlLog.WithFields(logrus.Fields{
		"pages":    s.graph.PageCount(),
		"links":    s.graph.LinkCount(),
		"requests": s.fetched.Load(),
		"success":  ok,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Crawl finished")
	return ok, nil
}

// GetPage returns a snapshot of the page for u
func (s *Spider) GetPage(u *url.URL) (*models.Page, bool) {
	return s.graph.PageByURL(parse.Canonical(u))
}

// ContainsPage reports whether u was discovered
func (s *Spider) ContainsPage(u *url.URL) bool {
	_, ok := s.graph.Lookup(parse.Canonical(u))
	return ok
}

// GetPageByString parses raw and returns the page for it
func (s *Spider) GetPageByString(raw string) (*models.Page, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	return s.GetPage(u)
}

// ContainsPageByString parses raw and reports whether it was discovered
func (s *Spider) ContainsPageByString(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.ContainsPage(u)
}

// IsPageGood returns the page verdict; known is false for undiscovered or unjudged pages
func (s *Spider) IsPageGood(u *url.URL) (good bool, known bool) {
	p, ok := s.GetPage(u)
	if !ok {
		return false, false
	}
	return p.IsGood()
}

// PageCount returns the number of discovered pages
func (s *Spider) PageCount() int { return s.graph.PageCount() }

// LinkCount returns the number of references between pages
func (s *Spider) LinkCount() int { return s.graph.LinkCount() }

// RequestCount returns the number of HTTP requests issued
func (s *Spider) RequestCount() int64 { return s.fetched.Load() }

// Errors yields every recorded anomaly, page by page
// Each call starts a fresh iteration over the current graph
func (s *Spider) Errors() iter.Seq[models.SpiderError] {
	return func(yield func(models.SpiderError) bool) {
		for _, p := range s.graph.Pages() {
			for _, e := range p.Errors {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// ErrorList collects Errors into a slice
func (s *Spider) ErrorList() []models.SpiderError {
	return slices.Collect(s.Errors())
}

// Graph exposes the finished page graph for export
func (s *Spider) Graph() *graph.Graph {
	return s.graph
}

// Options returns the effective options, including the derived host allow-list
func (s *Spider) Options() *config.SpiderOptions {
	return s.opts
}
