package database

import (
	"database/sql"
	"fmt"
)

var _ SyncStateRepository = (*SyncStateRepositoryImpl)(nil)

// SyncStateRepositoryImpl persists the single-row background sync
// configuration.
type SyncStateRepositoryImpl struct {
	db *DB
}

func NewSyncStateRepository(db *DB) *SyncStateRepositoryImpl {
	return &SyncStateRepositoryImpl{db: db}
}

func (r *SyncStateRepositoryImpl) GetSyncState() (*SyncState, error) {
	var s SyncState
	var enabled int
	var lastSync sql.NullTime

	err := r.db.QueryRow(`
		SELECT enabled, interval_minutes, last_sync_at
		FROM sync_state
		WHERE id = 1
	`).Scan(&enabled, &s.IntervalMinutes, &lastSync)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	s.Enabled = enabled != 0
	if lastSync.Valid {
		s.LastSyncAt = &lastSync.Time
	}
	return &s, nil
}

func (r *SyncStateRepositoryImpl) UpdateSyncState(enabled bool, intervalMinutes int) error {
	flag := 0
	if enabled {
		flag = 1
	}

	_, err := r.db.Exec(`
		UPDATE sync_state
		SET enabled = ?, interval_minutes = ?
		WHERE id = 1
	`, flag, intervalMinutes)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

func (r *SyncStateRepositoryImpl) TouchLastSync() error {
	_, err := r.db.Exec("UPDATE sync_state SET last_sync_at = CURRENT_TIMESTAMP WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to touch last sync: %w", err)
	}
	return nil
}
