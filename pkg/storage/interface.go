package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Sriram-PR/site-spider/pkg/models"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID
var ErrRunNotFound = errors.New("run not found")

// RunWriter records finished crawls
type RunWriter interface {
	// SaveRun stores rec, assigning a time-ordered ID when rec.ID is empty
	SaveRun(rec *models.RunRecord) error

	// DeleteRun removes a run; deleting an unknown ID is not an error
	DeleteRun(id string) error
}

// RunReader queries recorded crawls
type RunReader interface {
	// GetRun returns the run with the given ID or ErrRunNotFound
	GetRun(id string) (*models.RunRecord, error)

	// ListRuns returns runs newest first, filtered by site key when siteKey is non-empty
	// limit <= 0 returns every match
	ListRuns(siteKey string, limit int) ([]models.RunRecord, error)

	// RunCount returns the number of stored runs
	RunCount() (int, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// RunStore combines all store interfaces for components that need full access
type RunStore interface {
	RunWriter
	RunReader
	StoreAdmin
}
