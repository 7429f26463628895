package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// Format selects how a crawl summary is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value; empty means text
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: unknown report format %q (want text, json or yaml)", utils.ErrConfigValidation, s)
}

// CrawlResult is what a finished crawl exposes to reporting
type CrawlResult interface {
	PageCount() int
	LinkCount() int
	RequestCount() int64
	ErrorList() []models.SpiderError
}

// Summary is the machine-readable outcome of one crawl
type Summary struct {
	SiteKey     string               `json:"site_key,omitempty" yaml:"site_key,omitempty"`
	RootURL     string               `json:"root_url" yaml:"root_url"`
	Success     bool                 `json:"success" yaml:"success"`
	StartedAt   time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time            `json:"finished_at" yaml:"finished_at"`
	Pages       int                  `json:"pages" yaml:"pages"`
	Links       int                  `json:"links" yaml:"links"`
	Requests    int64                `json:"requests" yaml:"requests"`
	ErrorCounts map[string]int       `json:"error_counts" yaml:"error_counts"`
	Errors      []models.SpiderError `json:"errors" yaml:"errors"`
}

// NewSummary captures the counters and anomalies of a finished crawl
func NewSummary(siteKey, rootURL string, success bool, result CrawlResult, startedAt, finishedAt time.Time) *Summary {
	errs := result.ErrorList()
	if errs == nil {
		errs = []models.SpiderError{}
	}
	return &Summary{
		SiteKey:     siteKey,
		RootURL:     rootURL,
		Success:     success,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Pages:       result.PageCount(),
		Links:       result.LinkCount(),
		Requests:    result.RequestCount(),
		ErrorCounts: models.ErrorCounts(errs),
		Errors:      errs,
	}
}

// RunRecord converts the summary into a run history entry
func (s *Summary) RunRecord() *models.RunRecord {
	return &models.RunRecord{
		SiteKey:     s.SiteKey,
		RootURL:     s.RootURL,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Success:     s.Success,
		Pages:       s.Pages,
		Links:       s.Links,
		ErrorCounts: s.ErrorCounts,
		Errors:      models.Messages(s.Errors),
	}
}

// Write renders summaries in the given format
// Text output lists every error message followed by a one-line verdict per crawl
func Write(w io.Writer, format Format, summaries ...*Summary) error {
	switch format {
	case FormatJSON:
		if len(summaries) == 1 {
			return WriteJSON(w, summaries[0])
		}
		return WriteJSON(w, summaries)
	case FormatYAML:
		if len(summaries) == 1 {
			return WriteYAML(w, summaries[0])
		}
		return WriteYAML(w, summaries)
	}

	for _, s := range summaries {
		if err := WriteText(w, s.Errors); err != nil {
			return err
		}
		verdict := "OK"
		if !s.Success {
			verdict = "FAILED"
		}
		label := s.RootURL
		if s.SiteKey != "" {
			label = s.SiteKey + " (" + s.RootURL + ")"
		}
		if _, err := fmt.Fprintf(w, "%s: %s, %d pages, %d links, %d errors in %s\n",
			verdict, label, s.Pages, s.Links, len(s.Errors), s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// WriteText writes one message per error
func WriteText(w io.Writer, errs []models.SpiderError) error {
	for _, e := range errs {
		if _, err := fmt.Fprintln(w, e.Error()); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML writes v as YAML
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// FilePath returns dir/<name>.<ext> with name made safe for use as a filename
func FilePath(dir, name, ext string) string {
	return filepath.Join(dir, utils.SanitizeFilename(name)+"."+ext)
}

// WriteFile creates path (and its directory) and hands it to render
func WriteFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %w", utils.ErrFilesystem, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", utils.ErrFilesystem, path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
