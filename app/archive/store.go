package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lysyi3m/intel-comb/app/event"
)

// Result summarizes one batch upsert for operator feedback.
type Result struct {
	Inserted int `json:"inserted"`
	Merged   int `json:"merged"`
}

// Store is the durable, deduplicated archive of geolocated events. It
// keeps the full collection in memory in insertion order, resolves and
// merges candidates sequentially, and rewrites a JSON snapshot file
// after every successful mutation. At the expected scale (thousands of
// events) a linear scan per candidate is acceptable and no spatial
// index is kept.
//
// All mutating operations serialize on one mutex: batch-internal
// deduplication requires that two upserts never interleave.
type Store struct {
	mu       sync.Mutex
	path     string
	resolver *event.Resolver
	events   []event.Event
}

// NewStore loads the archive wholesale from the snapshot at path. A
// missing file yields an empty archive; a corrupt file is an error so
// that a bad deploy cannot silently wipe history.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		resolver: event.NewResolver(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &s.events); err != nil {
		return nil, fmt.Errorf("failed to parse archive snapshot: %w", err)
	}

	slog.Info("Archive loaded", "path", path, "events", len(s.events))
	return s, nil
}

// All returns a read-only snapshot of the archive in insertion order.
func (s *Store) All() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns the number of archived events.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// UpsertMany runs the normalize -> resolve -> merge/insert pipeline
// over a batch of extracted records. originURL attributes the batch to
// a source; it is stamped onto candidates that carry no origin of their
// own and scopes external-source-id matching (empty = source-agnostic).
//
// The batch is applied to a rebuilt working copy and swapped in only
// after the snapshot is persisted, so a failed call leaves the store
// exactly as it was. Candidates are resolved against the working copy,
// which already contains earlier members of the same batch - duplicate
// candidates within one extraction response collapse to one event.
func (s *Store) UpsertMany(records []event.Record, originURL string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make([]event.Event, len(s.events))
	copy(working, s.events)

	var res Result
	for _, record := range records {
		candidate := event.Normalize(record)
		if candidate.OriginURL == "" {
			candidate.OriginURL = originURL
		}

		if idx := s.resolver.Resolve(working, candidate, originURL); idx >= 0 {
			working[idx] = event.Merge(working[idx], candidate)
			res.Merged++
		} else {
			working = append(working, candidate)
			res.Inserted++
		}
	}

	if err := s.persist(working); err != nil {
		return Result{}, err
	}
	s.events = working

	return res, nil
}

// RemoveBySource purges every event attributed to the given origin URL
// and reports how many were removed.
func (s *Store) RemoveBySource(originURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make([]event.Event, 0, len(s.events))
	for _, e := range s.events {
		if e.OriginURL != originURL {
			working = append(working, e)
		}
	}

	removed := len(s.events) - len(working)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persist(working); err != nil {
		return 0, err
	}
	s.events = working

	slog.Info("Source events removed", "source", originURL, "removed", removed)
	return removed, nil
}

// Export serializes the full archive as an indented JSON array, the
// same representation used for the on-disk snapshot.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize archive: %w", err)
	}
	return data, nil
}

// Import merges a previously exported archive through the regular
// upsert pipeline rather than overwriting, so importing an export of
// this archive is idempotent.
func (s *Store) Import(data []byte) (Result, error) {
	var records []event.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return Result{}, fmt.Errorf("failed to parse archive import: %w", err)
	}

	return s.UpsertMany(records, "")
}

// persist writes the snapshot atomically: a temp file in the same
// directory is renamed over the previous snapshot, so readers never see
// a partial write. Callers must hold s.mu.
func (s *Store) persist(events []event.Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".archive-*.json")
	if err != nil {
		return fmt.Errorf("failed to create archive temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write archive snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close archive temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace archive snapshot: %w", err)
	}

	return nil
}
