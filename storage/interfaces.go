package storage

import (
	"context"

	"car-scraper/models"
)

// SnapshotWriter replaces the persisted snapshot as a whole.
type SnapshotWriter interface {
	Write(snapshot []models.ScoredListing) error
}

// SnapshotReader returns the persisted snapshot, never failing.
type SnapshotReader interface {
	Read() []models.ScoredListing
}

// Sink receives a copy of every new snapshot. Sinks are best-effort:
// a failing sink never fails the run that produced the snapshot.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, snapshot []models.ScoredListing) error
	Close() error
}
