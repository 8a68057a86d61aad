package database

import (
	"time"

	"github.com/lysyi3m/intel-comb/app/event"
)

// SourceMetadata is the per-source cursor state: where pagination left
// off, how many events the source has contributed, and when it was last
// touched.
type SourceMetadata struct {
	URL         string
	Kind        event.SourceKind
	LastCursor  string
	TotalEvents int
	LastUpdate  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SyncState is the operator-controlled background sync configuration.
// A single row; the monitored source list itself lives in the sources
// config directory.
type SyncState struct {
	Enabled         bool
	IntervalMinutes int
	LastSyncAt      *time.Time
}
