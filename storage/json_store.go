package storage

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"car-scraper/models"
	"car-scraper/utils"
)

// SnapshotStore keeps the latest scored batch as a JSON array on disk.
type SnapshotStore struct {
	path   string
	logger *utils.Logger
	mu     sync.RWMutex
}

// NewSnapshotStore creates a store backed by the file at path. Nothing is
// touched on disk until the first Write.
func NewSnapshotStore(path string, logger *utils.Logger) *SnapshotStore {
	return &SnapshotStore{path: path, logger: logger}
}

// Path returns the backing file.
func (s *SnapshotStore) Path() string { return s.path }

// Write replaces the persisted snapshot. On error the previous snapshot is
// still intact and the error is a *PersistenceError.
func (s *SnapshotStore) Write(snapshot []models.ScoredListing) error {
	if snapshot == nil {
		snapshot = []models.ScoredListing{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := replaceFile(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	})
	if err != nil {
		return err
	}

	s.logger.Info("[store] Wrote %d listings to %s", len(snapshot), s.path)
	return nil
}

// Read returns the persisted snapshot. A missing or unreadable file yields an
// empty snapshot; the problem is logged, never returned.
func (s *SnapshotStore) Read() []models.ScoredListing {
	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("[store] No snapshot at %s yet", s.path)
		} else {
			s.logger.Warn("[store] Cannot read %s: %v", s.path, err)
		}
		return []models.ScoredListing{}
	}

	var snapshot []models.ScoredListing
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("[store] Ignoring corrupt snapshot %s: %v", s.path, err)
		return []models.ScoredListing{}
	}
	if snapshot == nil {
		snapshot = []models.ScoredListing{}
	}
	return snapshot
}
