package models

import (
	"net/url"
	"time"
)

// Page is one discovered URL and the outcome of fetching it
type Page struct {
	URL         *url.URL      // Canonical, fragment-stripped
	Title       *string       // Set once on a successful HTML fetch
	ContentType *string       // Lower-cased, parameter-stripped MIME type
	StatusCode  int           // 0 until a response is received
	Visited     bool          // True once the fetch attempt has completed
	Good        *bool         // nil = unknown
	Errors      []SpiderError // In detection order
}

// NewPage returns an unvisited page for u
func NewPage(u *url.URL) *Page {
	return &Page{URL: u}
}

// SetGood records the page verdict; only the first call has effect
// Returns false if the verdict was already set
func (p *Page) SetGood(good bool) bool {
	if p.Good != nil {
		return false
	}
	p.Good = &good
	return true
}

// IsGood reports the verdict and whether one has been set
func (p *Page) IsGood() (good bool, known bool) {
	if p.Good == nil {
		return false, false
	}
	return *p.Good, true
}

// AddError appends an anomaly to the page
func (p *Page) AddError(e SpiderError) {
	p.Errors = append(p.Errors, e)
}

// Clone returns a copy that shares no mutable state with p
func (p *Page) Clone() *Page {
	c := *p
	if p.URL != nil {
		u := *p.URL
		c.URL = &u
	}
	if p.Title != nil {
		t := *p.Title
		c.Title = &t
	}
	if p.ContentType != nil {
		ct := *p.ContentType
		c.ContentType = &ct
	}
	if p.Good != nil {
		g := *p.Good
		c.Good = &g
	}
	if p.Errors != nil {
		c.Errors = append([]SpiderError(nil), p.Errors...)
	}
	return &c
}

// Link is one reference from a page to another, carrying the referencing element's HTML
type Link struct {
	HTML string
}

// RunRecord stores the outcome of one crawl in the run history
type RunRecord struct {
	ID          string         `json:"id" yaml:"id"`
	SiteKey     string         `json:"site_key,omitempty" yaml:"site_key,omitempty"`
	RootURL     string         `json:"root_url" yaml:"root_url"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time      `json:"finished_at" yaml:"finished_at"`
	Success     bool           `json:"success" yaml:"success"`
	Pages       int            `json:"pages" yaml:"pages"`
	Links       int            `json:"links" yaml:"links"`
	ErrorCounts map[string]int `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
	Errors      []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Duration returns how long the crawl took
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
