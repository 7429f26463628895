package watch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

const (
	minTickInterval = time.Second
	maxTickInterval = 10 * time.Minute
)

// Checker runs a round of site checks; *orchestrate.Orchestrator implements it
type Checker interface {
	Run(ctx context.Context, siteKeys []string) []orchestrate.SiteResult
}

// Scheduler re-checks sites whenever their interval has elapsed
// Rounds never overlap: a round that takes longer than the tick delays the next one
type Scheduler struct {
	checker  Checker
	siteKeys []string
	interval time.Duration
	state    *StateManager
	log      *logrus.Entry
	onResult func([]orchestrate.SiteResult)
	now      func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithResultHandler is called with the results of every round
func WithResultHandler(fn func([]orchestrate.SiteResult)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// NewScheduler creates a scheduler checking siteKeys every interval
func NewScheduler(checker Checker, siteKeys []string, interval time.Duration, state *StateManager, log *logrus.Entry, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: watch interval must be positive, got %v", utils.ErrConfigValidation, interval)
	}
	s := &Scheduler{
		checker:  checker,
		siteKeys: siteKeys,
		interval: interval,
		state:    state,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run checks due sites immediately and then on every tick until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Watching %d sites every %s", len(s.siteKeys), FormatInterval(s.interval))
	s.logSchedule()

	s.RunOnce(ctx)

	ticker := time.NewTicker(tickInterval(s.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce checks the sites that are due, records and saves their outcome
// Returns nil when nothing was due
func (s *Scheduler) RunOnce(ctx context.Context) []orchestrate.SiteResult {
	due := s.dueSites()
	if len(due) == 0 {
		s.logNextCheck()
		return nil
	}

	s.log.Infof("Checking %d due sites: %v", len(due), due)
	results := s.checker.Run(ctx, due)
	if ctx.Err() != nil {
		// an interrupted round says nothing about the sites
		return results
	}

	finished := s.now()
	for _, r := range results {
		s.state.Record(r, finished)
	}
	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	if s.onResult != nil {
		s.onResult(results)
	}
	s.logNextCheck()
	return results
}

func (s *Scheduler) dueSites() []string {
	now := s.now()
	var due []string
	for _, key := range s.siteKeys {
		if s.state.Due(key, s.interval, now) {
			due = append(due, key)
		}
	}
	return due
}

// tickInterval checks for due sites ten times per interval, clamped to [1s, 10m]
func tickInterval(interval time.Duration) time.Duration {
	return min(max(interval/10, minTickInterval), maxTickInterval)
}

func (s *Scheduler) logSchedule() {
	now := s.now()
	for _, key := range s.siteKeys {
		state, ok := s.state.SiteState(key)
		if !ok {
			s.log.Infof("  %s: never checked, checking now", key)
			continue
		}
		verdict := "ok"
		if !state.Success {
			verdict = "failed"
		}
		s.log.Infof("  %s: last checked %s (%s, %d pages, %d errors), next %s",
			key, state.LastCheck.Format(time.RFC3339), verdict, state.Pages, state.ErrorCount,
			s.state.NextCheck(key, s.interval, now).Format(time.RFC3339))
	}
}

func (s *Scheduler) logNextCheck() {
	now := s.now()
	var (
		nextKey  string
		nextTime time.Time
	)
	for _, key := range s.siteKeys {
		t := s.state.NextCheck(key, s.interval, now)
		if nextKey == "" || t.Before(nextTime) {
			nextKey, nextTime = key, t
		}
	}
	if nextKey == "" {
		return
	}
	until := max(nextTime.Sub(now), 0)
	s.log.Infof("Next check: %s in %v (at %s)", nextKey, until.Round(time.Second), nextTime.Format("15:04:05"))
}

// FormatInterval formats a duration using days for long intervals
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hours, mins := int(d.Hours()), int(d.Minutes())%60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days, hours := int(d.Hours())/24, int(d.Hours())%24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a Go duration, additionally accepting a leading day count ("7d", "1d12h")
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	invalid := fmt.Errorf("%w: invalid interval %q (examples: 30m, 1h, 24h, 7d)", utils.ErrConfigValidation, s)
	dayPart, rest, found := strings.Cut(s, "d")
	if !found {
		return 0, invalid
	}
	days, err := strconv.Atoi(dayPart)
	if err != nil || days < 0 {
		return 0, invalid
	}
	d := time.Duration(days) * 24 * time.Hour
	if rest != "" {
		extra, err := time.ParseDuration(rest)
		if err != nil {
			return 0, invalid
		}
		d += extra
	}
	return d, nil
}
