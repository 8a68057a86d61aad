package database

import (
	"path/filepath"
	"testing"

	"github.com/lysyi3m/intel-comb/app/event"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestSourceRepository_UpsertAndGet(t *testing.T) {
	repo := NewSourceRepository(newTestDB(t))

	if err := repo.UpsertSource("https://t.me/channel", event.SourceKindTelegram); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}

	src, err := repo.GetSource("https://t.me/channel")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src == nil {
		t.Fatal("Expected source to exist")
	}
	if src.Kind != event.SourceKindTelegram {
		t.Errorf("Expected telegram kind, got %q", src.Kind)
	}
	if src.LastCursor != "" || src.TotalEvents != 0 {
		t.Errorf("Expected fresh cursor state, got %+v", src)
	}

	// Upsert is idempotent and does not reset cursor state.
	if err := repo.RecordPage("https://t.me/channel", "channel/100", 3); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	if err := repo.UpsertSource("https://t.me/channel", event.SourceKindTelegram); err != nil {
		t.Fatalf("Second UpsertSource failed: %v", err)
	}

	src, err = repo.GetSource("https://t.me/channel")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.LastCursor != "channel/100" || src.TotalEvents != 3 {
		t.Errorf("Expected cursor state to survive re-registration, got %+v", src)
	}
}

func TestSourceRepository_GetMissingSource(t *testing.T) {
	repo := NewSourceRepository(newTestDB(t))

	src, err := repo.GetSource("https://t.me/unknown")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src != nil {
		t.Errorf("Expected nil for missing source, got %+v", src)
	}
}

func TestSourceRepository_RecordPage(t *testing.T) {
	repo := NewSourceRepository(newTestDB(t))

	if err := repo.UpsertSource("https://t.me/c", event.SourceKindTelegram); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}

	if err := repo.RecordPage("https://t.me/c", "c/200", 5); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	// An empty cursor keeps the previous one for later resumption.
	if err := repo.RecordPage("https://t.me/c", "", 2); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}

	src, err := repo.GetSource("https://t.me/c")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src.LastCursor != "c/200" {
		t.Errorf("Expected cursor c/200 to be kept, got %q", src.LastCursor)
	}
	if src.TotalEvents != 7 {
		t.Errorf("Expected cumulative total 7, got %d", src.TotalEvents)
	}
	if src.LastUpdate == nil {
		t.Error("Expected last update timestamp to be set")
	}
}

func TestSourceRepository_DeleteSource(t *testing.T) {
	repo := NewSourceRepository(newTestDB(t))

	if err := repo.UpsertSource("https://t.me/a", event.SourceKindTelegram); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}
	if err := repo.UpsertSource("https://example.com/feed", event.SourceKindRSS); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}

	if err := repo.DeleteSource("https://t.me/a"); err != nil {
		t.Fatalf("DeleteSource failed: %v", err)
	}

	count, err := repo.GetSourceCount()
	if err != nil {
		t.Fatalf("GetSourceCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 remaining source, got %d", count)
	}
}

func TestSyncStateRepository_Defaults(t *testing.T) {
	repo := NewSyncStateRepository(newTestDB(t))

	state, err := repo.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if !state.Enabled {
		t.Error("Expected sync enabled by default")
	}
	if state.IntervalMinutes != 120 {
		t.Errorf("Expected default interval 120, got %d", state.IntervalMinutes)
	}
	if state.LastSyncAt != nil {
		t.Errorf("Expected no last sync yet, got %v", state.LastSyncAt)
	}
}

func TestSyncStateRepository_UpdateAndTouch(t *testing.T) {
	repo := NewSyncStateRepository(newTestDB(t))

	if err := repo.UpdateSyncState(false, 30); err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}
	if err := repo.TouchLastSync(); err != nil {
		t.Fatalf("TouchLastSync failed: %v", err)
	}

	state, err := repo.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.Enabled {
		t.Error("Expected sync disabled")
	}
	if state.IntervalMinutes != 30 {
		t.Errorf("Expected interval 30, got %d", state.IntervalMinutes)
	}
	if state.LastSyncAt == nil {
		t.Error("Expected last sync timestamp to be set")
	}
}
