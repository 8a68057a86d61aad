package database

import (
	"database/sql"
	"fmt"

	"github.com/lysyi3m/intel-comb/app/event"
)

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

// SourceRepositoryImpl handles database operations for per-source
// cursor metadata.
type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

func (r *SourceRepositoryImpl) GetSource(url string) (*SourceMetadata, error) {
	var m SourceMetadata
	var kind string
	var lastUpdate sql.NullTime

	err := r.db.QueryRow(`
		SELECT url, kind, last_cursor, total_events, last_update, created_at, updated_at
		FROM sources
		WHERE url = ?
	`, url).Scan(&m.URL, &kind, &m.LastCursor, &m.TotalEvents, &lastUpdate, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	m.Kind = event.SourceKind(kind)
	if lastUpdate.Valid {
		m.LastUpdate = &lastUpdate.Time
	}
	return &m, nil
}

func (r *SourceRepositoryImpl) GetAllSources() ([]SourceMetadata, error) {
	rows, err := r.db.Query(`
		SELECT url, kind, last_cursor, total_events, last_update, created_at, updated_at
		FROM sources
		ORDER BY url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceMetadata
	for rows.Next() {
		var m SourceMetadata
		var kind string
		var lastUpdate sql.NullTime

		if err := rows.Scan(&m.URL, &kind, &m.LastCursor, &m.TotalEvents,
			&lastUpdate, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}

		m.Kind = event.SourceKind(kind)
		if lastUpdate.Valid {
			m.LastUpdate = &lastUpdate.Time
		}
		sources = append(sources, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepositoryImpl) GetSourceCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceRepositoryImpl) UpsertSource(url string, kind event.SourceKind) error {
	_, err := r.db.Exec(`
		INSERT INTO sources (url, kind)
		VALUES (?, ?)
		ON CONFLICT (url) DO UPDATE SET
			kind = excluded.kind,
			updated_at = CURRENT_TIMESTAMP
	`, url, string(kind))
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) RecordPage(url string, cursor string, addedEvents int) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_cursor = CASE WHEN ? != '' THEN ? ELSE last_cursor END,
		    total_events = total_events + ?,
		    last_update = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE url = ?
	`, cursor, cursor, addedEvents, url)
	if err != nil {
		return fmt.Errorf("failed to record source page: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) DeleteSource(url string) error {
	_, err := r.db.Exec("DELETE FROM sources WHERE url = ?", url)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}
