package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

const stateFileName = "watch_state.json"

// SiteState is the outcome of the last check of a site
type SiteState struct {
	LastCheck  time.Time `json:"last_check"`
	Success    bool      `json:"success"`
	Pages      int       `json:"pages"`
	ErrorCount int       `json:"error_count"`
	Message    string    `json:"message,omitempty"` // setup error when the crawl never started
}

type stateFile struct {
	Sites     map[string]SiteState `json:"sites"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// StateManager persists when each watched site was last checked
// Only the schedule is kept; every check is a fresh crawl
type StateManager struct {
	stateDir  string
	statePath string

	mu    sync.RWMutex
	sites map[string]SiteState
}

// NewStateManager creates a state manager writing to stateDir
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		sites:     make(map[string]SiteState),
	}
}

// Load reads the state file; a missing file is an empty schedule
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if errors.Is(err, os.ErrNotExist) {
		m.sites = make(map[string]SiteState)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read watch state: %w", utils.ErrFilesystem, err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: parse watch state %s: %w", utils.ErrParsing, m.statePath, err)
	}
	if f.Sites == nil {
		f.Sites = make(map[string]SiteState)
	}
	m.sites = f.Sites
	return nil
}

// Save writes the state file, creating the state directory if needed
func (m *StateManager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(stateFile{Sites: m.sites, UpdatedAt: time.Now()}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal watch state: %w", err)
	}

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: create state directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: write watch state: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// SiteState returns the last recorded check of siteKey
func (m *StateManager) SiteState(siteKey string) (SiteState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sites[siteKey]
	return state, ok
}

// Record stores the outcome of a check finished at
func (m *StateManager) Record(result orchestrate.SiteResult, at time.Time) {
	state := SiteState{
		LastCheck:  at,
		Success:    result.Success,
		Pages:      result.Pages,
		ErrorCount: len(result.Errors),
	}
	if result.Summary == nil && result.Error != nil {
		state.Message = result.Error.Error()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[result.SiteKey] = state
}

// Due reports whether siteKey has never been checked or its interval has elapsed
func (m *StateManager) Due(siteKey string, interval time.Duration, now time.Time) bool {
	return !m.NextCheck(siteKey, interval, now).After(now)
}

// NextCheck returns when siteKey should be checked next; now for sites never checked
func (m *StateManager) NextCheck(siteKey string, interval time.Duration, now time.Time) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sites[siteKey]
	if !ok {
		return now
	}
	return state.LastCheck.Add(interval)
}

// States returns a copy of every recorded site state
func (m *StateManager) States() map[string]SiteState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.sites)
}
