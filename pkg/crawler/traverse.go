package crawler

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/site-spider/pkg/fetch"
	"github.com/Sriram-PR/site-spider/pkg/graph"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/parse"
	"github.com/Sriram-PR/site-spider/pkg/process"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// pendingVisit is a newly discovered page this task is responsible for expanding
type pendingVisit struct {
	id  graph.NodeID
	url *url.URL
}

// visitRoot registers the root and visits it at depth 0
func (s *Spider) visitRoot(ctx context.Context, root *url.URL) bool {
	id := s.graph.CreateRoot(root)
	return s.visitPage(ctx, id, root, nil, 0)
}

// visitPage fetches one page, scans it, then visits every child it created and waits for them
// Returns false if this page or anything below it recorded an unsuppressed problem
func (s *Spider) visitPage(ctx context.Context, id graph.NodeID, pageURL, referrer *url.URL, depth int) bool {
	pageLog := s.log.WithFields(logrus.Fields{"url": pageURL.String(), "depth": depth})

	doc, ok := s.fetchPage(ctx, id, pageURL, referrer, pageLog)
	if doc == nil {
		return ok
	}

	s.checkTitle(id, pageURL, doc, pageLog)
	children, scanOK := s.scanElements(id, pageURL, doc, depth, pageLog)
	found := !scanOK
	pageLog.WithField("children", len(children)).Info("Visited page")

	if len(children) == 0 {
		return !found
	}

	results := make([]bool, len(children))
	var g errgroup.Group
	for i, child := range children {
		g.Go(func() error {
			results[i] = s.visitPage(ctx, child.id, child.url, pageURL, depth+1)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if !r {
			return false
		}
	}
	return !found
}

// fetchPage runs the status, content-type and host gates and parses the body
// A nil document means the page is a leaf; ok is its result. Admission permits are
// released on return, before any child is visited
func (s *Spider) fetchPage(ctx context.Context, id graph.NodeID, pageURL, referrer *url.URL, pageLog *logrus.Entry) (doc *goquery.Document, ok bool) {
	release, err := s.limiter.Acquire(ctx, pageURL.Host)
	if err != nil {
		return nil, s.unableToRetrieve(id, pageURL, referrer, err, pageLog)
	}
	defer release()

	s.fetched.Add(1)
	resp, err := s.fetcher.Fetch(ctx, pageURL.String())
	if err != nil {
		return nil, s.unableToRetrieve(id, pageURL, referrer, err, pageLog)
	}
	defer fetch.Drain(resp)

	status := resp.StatusCode
	if status < 200 || status > 299 {
		recorded := s.record(id, pageURL, models.SpiderError{
			Kind:       models.HTTPError,
			SourcePage: urlString(referrer),
			TargetPage: pageURL.String(),
			HTTPStatus: status,
		}, func(p *models.Page) {
			p.StatusCode = status
			p.Visited = true
			p.SetGood(false)
		})
		pageLog.WithField("status_code", status).Warn("HTTP error")
		return nil, !recorded
	}

	contentType := fetch.ContentType(resp)
	if !fetch.IsHTML(contentType) {
		s.graph.Update(id, func(p *models.Page) {
			p.StatusCode = status
			p.ContentType = contentType
			p.Visited = true
			p.SetGood(true)
		})
		pageLog.WithField("content_type", derefOr(contentType, "<none>")).Debug("Not parsing, content type is not HTML")
		return nil, true
	}

	if !parse.HostAllowed(s.opts.Hosts, pageURL) {
		s.graph.Update(id, func(p *models.Page) {
			p.StatusCode = status
			p.ContentType = contentType
			p.Visited = true
		})
		pageLog.Debug("Not parsing, host is outside the allow-list")
		return nil, true
	}

	s.graph.Update(id, func(p *models.Page) {
		p.StatusCode = status
		p.ContentType = contentType
	})

	body, truncated, err := fetch.ReadBody(resp, s.opts.MaxBodyBytes)
	if truncated {
		pageLog.WithField("max_body_bytes", s.opts.MaxBodyBytes).Warn("Body exceeds size cap, parsing the truncated prefix")
	}
	if err == nil {
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			err = errors.Join(utils.ErrParsing, err)
		}
	}
	if err != nil {
		return nil, s.unableToRetrieve(id, pageURL, referrer, err, pageLog)
	}
	return doc, true
}

// unableToRetrieve marks a page that produced no usable response
func (s *Spider) unableToRetrieve(id graph.NodeID, pageURL, referrer *url.URL, err error, pageLog *logrus.Entry) bool {
	recorded := s.record(id, pageURL, models.SpiderError{
		Kind:       models.UnableToRetrieve,
		SourcePage: urlString(referrer),
		TargetPage: pageURL.String(),
	}, func(p *models.Page) {
		p.Visited = true
		p.SetGood(false)
	})
	pageLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Unable to retrieve: %v", err)
	return !recorded
}

// checkTitle stores the title and marks the page good
// A missing title is informational: it is recorded but does not fail the page
func (s *Spider) checkTitle(id graph.NodeID, pageURL *url.URL, doc *goquery.Document, pageLog *logrus.Entry) {
	title, ok := process.ExtractTitle(doc, s.opts.TitleSelector)
	markGood := func(p *models.Page) {
		if ok {
			p.Title = &title
		}
		p.Visited = true
		p.SetGood(true)
	}
	if ok {
		s.graph.Update(id, markGood)
		return
	}

	if s.record(id, pageURL, models.SpiderError{
		Kind:       models.MissingTitle,
		SourcePage: pageURL.String(),
	}, markGood) {
		pageLog.Warn("Page does not have a title")
	}
}

// scanElements walks the configured elements in document order, recording anomalies and
// linking references. Returns the within-depth pages this task created; ok is false if a
// found-problem was recorded
func (s *Spider) scanElements(id graph.NodeID, pageURL *url.URL, doc *goquery.Document, depth int, pageLog *logrus.Entry) (children []pendingVisit, ok bool) {
	ok = true
	expand := s.opts.MaxDepth == -1 || depth < s.opts.MaxDepth

	doc.FindMatcher(s.opts.ElementSelector).Each(func(_ int, el *goquery.Selection) {
		if s.opts.SkipClass != "" && el.HasClass(s.opts.SkipClass) {
			return
		}

		target, err := process.ExtractReference(el, pageURL)
		if err != nil {
			var spiderErr models.SpiderError
			if errors.As(err, &spiderErr) {
				if s.record(id, pageURL, spiderErr, nil) {
					pageLog.WithField("kind", spiderErr.Kind).Warnf("Element problem: %s", process.ElementHTML(el))
					ok = false
				}
				return
			}
			pageLog.Warnf("Skipping element: %v", err)
			return
		}

		if target == nil {
			if process.IsEmptyScript(el) {
				if s.record(id, pageURL, models.SpiderError{
					Kind:       models.EmptyScript,
					SourcePage: pageURL.String(),
					HTML:       process.ElementHTML(el),
				}, nil) {
					pageLog.Warn("Script element has no src and no content")
					ok = false
				}
			}
			return
		}

		childID, created := s.graph.LinkOrCreate(id, target, process.ElementHTML(el))
		if created && expand {
			children = append(children, pendingVisit{id: childID, url: target})
		}
	})
	return children, ok
}

// record appends e to the page if its rule is enabled for ruleURL, applying mutate in the same update
// mutate runs either way. Returns whether the error was recorded
func (s *Spider) record(id graph.NodeID, ruleURL *url.URL, e models.SpiderError, mutate func(*models.Page)) bool {
	enabled := s.opts.IgnoreRules.IsRuleEnabled(e.Kind, ruleURL, s.opts.Hosts)
	s.graph.Update(id, func(p *models.Page) {
		if mutate != nil {
			mutate(p)
		}
		if enabled {
			p.AddError(e)
		}
	})
	if !enabled {
		s.log.WithFields(logrus.Fields{"url": ruleURL.String(), "kind": e.Kind}).Debug("Suppressed by ignore rule")
	}
	return enabled
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
