package database

import "github.com/lysyi3m/intel-comb/app/event"

type SourceRepository interface {
	GetSource(url string) (*SourceMetadata, error)
	GetAllSources() ([]SourceMetadata, error)
	GetSourceCount() (int, error)

	UpsertSource(url string, kind event.SourceKind) error
	// RecordPage advances the cursor and event tally after a
	// successfully ingested page. An empty cursor keeps the previous
	// one so a later "resume" scan can continue older history.
	RecordPage(url string, cursor string, addedEvents int) error
	DeleteSource(url string) error
}

type SyncStateRepository interface {
	GetSyncState() (*SyncState, error)
	UpdateSyncState(enabled bool, intervalMinutes int) error
	TouchLastSync() error
}
