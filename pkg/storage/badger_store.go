package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/log"
	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

const (
	runKeyPrefix = "run:"    // Prefix for run record keys in DB
	runsDBDir    = "runs_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements the RunStore interface using BadgerDB
// Run IDs are UUIDv7, so key order is chronological
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached run count for O(1) RunCount
}

// NewBadgerStore opens (or creates) the run history database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, runsDBDir)
	logger.Debugf("Opening run history database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing runs: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}
	return store, nil
}

// countKeys performs a one-time key scan at open
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func runKey(id string) []byte {
	return []byte(runKeyPrefix + id)
}

// SaveRun implements the RunStore interface
func (s *BadgerStore) SaveRun(rec *models.RunRecord) error {
	if s.db == nil {
		return fmt.Errorf("%w: run database not initialized", utils.ErrDatabase)
	}
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("%w: generating run ID: %w", utils.ErrDatabase, err)
		}
		rec.ID = id.String()
	}
	key := runKey(rec.ID)

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal run %s: %w", utils.ErrParsing, rec.ID, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		} else if errGet != nil {
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SaveRun: %v", err)
		return fmt.Errorf("%w: saving run '%s': %w", utils.ErrDatabase, rec.ID, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.WithFields(logrus.Fields{"run_id": rec.ID, "success": rec.Success}).Debug("Saved run record")
	return nil
}

// GetRun implements the RunStore interface
func (s *BadgerStore) GetRun(id string) (*models.RunRecord, error) {
	var rec models.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(runKey(id))
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting run '%s': %w", utils.ErrDatabase, id, errGet)
		}
		return item.Value(func(val []byte) error {
			if errJSON := json.Unmarshal(val, &rec); errJSON != nil {
				return fmt.Errorf("%w: decoding run '%s': %w", utils.ErrParsing, id, errJSON)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns implements the RunStore interface
// Undecodable records are logged and skipped
func (s *BadgerStore) ListRuns(siteKey string, limit int) ([]models.RunRecord, error) {
	var runs []models.RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(runKeyPrefix), 0xFF)); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			var rec models.RunRecord
			errValue := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if errValue != nil {
				s.log.Warnf("Skipping unreadable run record '%s': %v", string(item.Key()), errValue)
				continue
			}
			if siteKey != "" && rec.SiteKey != siteKey {
				continue
			}
			runs = append(runs, rec)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %w", utils.ErrDatabase, err)
	}
	return runs, nil
}

// DeleteRun implements the RunStore interface
func (s *BadgerStore) DeleteRun(id string) error {
	key := runKey(id)
	existed := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: deleting run '%s': %w", utils.ErrDatabase, id, err)
	}
	if existed {
		s.keyCount.Add(-1)
	}
	return nil
}

// RunCount implements the RunStore interface
// Returns the cached key count (O(1)) maintained by atomic updates on writes.
func (s *BadgerStore) RunCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute // Default interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements the RunStore interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing run database: %v", err)
			return fmt.Errorf("%w: closing run database: %w", utils.ErrDatabase, err)
		}
		s.log.Debug("Run database closed.")
	}
	return nil
}
