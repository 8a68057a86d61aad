package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/intel-comb/app/archive"
	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/event"
	"github.com/lysyi3m/intel-comb/app/extract"
	"github.com/lysyi3m/intel-comb/app/ingest"
	"github.com/lysyi3m/intel-comb/app/sources"
	"github.com/lysyi3m/intel-comb/app/tasks"
)

const testAPIKey = "test-api-key"

type fakeStore struct {
	events    []event.Event
	removed   []string
	imported  []byte
	importRes archive.Result
}

func (f *fakeStore) All() []event.Event { return f.events }
func (f *fakeStore) Count() int         { return len(f.events) }
func (f *fakeStore) Export() ([]byte, error) {
	return json.Marshal(f.events)
}
func (f *fakeStore) Import(data []byte) (archive.Result, error) {
	if !json.Valid(data) {
		return archive.Result{}, fmt.Errorf("invalid JSON")
	}
	f.imported = data
	return f.importRes, nil
}
func (f *fakeStore) RemoveBySource(originURL string) (int, error) {
	f.removed = append(f.removed, originURL)
	kept := f.events[:0]
	removed := 0
	for _, e := range f.events {
		if e.OriginURL == originURL {
			removed++
		} else {
			kept = append(kept, e)
		}
	}
	f.events = kept
	return removed, nil
}

type fakeIngestor struct {
	busy    bool
	texts   []string
	records [][]event.Record
	aborted bool
	scanned []string
	status  ingest.Status
}

func (f *fakeIngestor) Scan(_ context.Context, config sources.Config) (*ingest.Report, error) {
	f.scanned = append(f.scanned, config.URL)
	return &ingest.Report{SourceName: config.Name}, nil
}
func (f *fakeIngestor) Status() ingest.Status { return f.status }
func (f *fakeIngestor) Abort()                { f.aborted = true }
func (f *fakeIngestor) IngestText(_ context.Context, text, _ string) (*ingest.Report, error) {
	if f.busy {
		return nil, fmt.Errorf("a scan is already in progress")
	}
	f.texts = append(f.texts, text)
	return &ingest.Report{SourceName: "manual analysis", Extracted: 2, Inserted: 1, Merged: 1}, nil
}
func (f *fakeIngestor) IngestRecords(records []event.Record, _ string) (*ingest.Report, error) {
	if f.busy {
		return nil, fmt.Errorf("a scan is already in progress")
	}
	f.records = append(f.records, records)
	return &ingest.Report{Extracted: len(records), Inserted: len(records)}, nil
}

type fakeAnalyzer struct {
	estimate *extract.CrowdEstimate
	err      error
}

func (f *fakeAnalyzer) EstimateCrowd(context.Context, string, string, string) (*extract.CrowdEstimate, error) {
	return f.estimate, f.err
}

type fakeSourceRepo struct {
	meta    map[string]*database.SourceMetadata
	deleted []string
}

func (f *fakeSourceRepo) GetSource(url string) (*database.SourceMetadata, error) {
	return f.meta[url], nil
}
func (f *fakeSourceRepo) GetAllSources() ([]database.SourceMetadata, error) { return nil, nil }
func (f *fakeSourceRepo) GetSourceCount() (int, error)                      { return len(f.meta), nil }
func (f *fakeSourceRepo) UpsertSource(url string, kind event.SourceKind) error {
	if f.meta == nil {
		f.meta = map[string]*database.SourceMetadata{}
	}
	if _, ok := f.meta[url]; !ok {
		f.meta[url] = &database.SourceMetadata{URL: url, Kind: kind}
	}
	return nil
}
func (f *fakeSourceRepo) RecordPage(string, string, int) error { return nil }
func (f *fakeSourceRepo) DeleteSource(url string) error {
	f.deleted = append(f.deleted, url)
	delete(f.meta, url)
	return nil
}

type fakeSyncRepo struct {
	state database.SyncState
}

func (f *fakeSyncRepo) GetSyncState() (*database.SyncState, error) { return &f.state, nil }
func (f *fakeSyncRepo) UpdateSyncState(enabled bool, interval int) error {
	f.state.Enabled = enabled
	f.state.IntervalMinutes = interval
	return nil
}
func (f *fakeSyncRepo) TouchLastSync() error { return nil }

type fakeScheduler struct {
	queued []tasks.TaskInterface
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}
func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	f.queued = append(f.queued, task)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	store     *fakeStore
	ingestor  *fakeIngestor
	analyzer  *fakeAnalyzer
	repo      *fakeSourceRepo
	syncRepo  *fakeSyncRepo
	scheduler *fakeScheduler
	cache     *sources.ConfigCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     &fakeStore{},
		ingestor:  &fakeIngestor{},
		analyzer:  &fakeAnalyzer{},
		repo:      &fakeSourceRepo{},
		syncRepo:  &fakeSyncRepo{state: database.SyncState{Enabled: true, IntervalMinutes: 120}},
		scheduler: &fakeScheduler{},
		cache:     sources.NewConfigCache(t.TempDir()),
	}

	handler := NewHandler(env.store, env.cache, env.repo, env.syncRepo,
		env.ingestor, env.analyzer, env.scheduler)
	env.router = NewServer(handler, testAPIKey)
	return env
}

func (env *testEnv) request(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func testEvent(id, title, category, date, origin string) event.Event {
	return event.Event{
		ID: id, Title: title, Category: event.Category(category),
		Date: date, LocationName: "Tehran", Lat: 35.7, Lng: 51.4, OriginURL: origin,
	}
}

func TestGetEventsFilters(t *testing.T) {
	env := newTestEnv(t)
	env.store.events = []event.Event{
		testEvent("1", "Protest downtown", "Civil Unrest", "2026-08-20", ""),
		testEvent("2", "Missile strike", "Military", "2026-08-21", ""),
		testEvent("3", "Grid hack", "Cyber", "2026-08-25", ""),
	}

	tests := []struct {
		path     string
		expected int
	}{
		{"/events", 3},
		{"/events?category=Military", 1},
		{"/events?q=protest", 1},
		{"/events?q=tehran", 3},
		{"/events?start=2026-08-21", 2},
		{"/events?end=2026-08-21", 2},
		{"/events?start=2026-08-21&end=2026-08-21", 1},
		{"/events?category=Cyber&q=grid", 1},
	}
	for _, tt := range tests {
		w := env.request(t, "GET", tt.path, "", false)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tt.path, w.Code)
		}
		var resp struct {
			Total int `json:"total"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Total != tt.expected {
			t.Errorf("%s: expected %d events, got %d", tt.path, tt.expected, resp.Total)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "POST", "/api/ingest/text", `{"text": "x"}`, false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/ingest/text", strings.NewReader(`{"text": "x"}`))
	req.Header.Set("X-API-Key", "wrong-key")
	w2 := httptest.NewRecorder()
	env.router.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", w2.Code)
	}
}

func TestAuthBearerHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/ingest/status", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", w.Code)
	}
}

func TestIngestText(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "POST", "/api/ingest/text", `{"text": "analyst field notes", "region": "Middle East"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(env.ingestor.texts) != 1 || env.ingestor.texts[0] != "analyst field notes" {
		t.Errorf("text not passed through: %v", env.ingestor.texts)
	}

	w = env.request(t, "POST", "/api/ingest/text", `{"text": "  "}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty text, got %d", w.Code)
	}
}

func TestIngestTextBusy(t *testing.T) {
	env := newTestEnv(t)
	env.ingestor.busy = true

	w := env.request(t, "POST", "/api/ingest/text", `{"text": "notes"}`, true)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", w.Code)
	}
}

func TestIngestURLEnqueuesScan(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "POST", "/api/ingest/url", `{"url": "https://t.me/intelwire", "depth": "3m"}`, true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(env.scheduler.queued) != 1 {
		t.Fatalf("expected 1 queued task, got %d", len(env.scheduler.queued))
	}
	task, ok := env.scheduler.queued[0].(*tasks.ScanSourceTask)
	if !ok {
		t.Fatalf("unexpected task type %T", env.scheduler.queued[0])
	}
	if task.SourceConfig.ScanDepth != "3m" {
		t.Errorf("depth not forwarded, got %q", task.SourceConfig.ScanDepth)
	}
	if env.repo.meta["https://t.me/intelwire"] == nil {
		t.Error("source not registered in metadata repository")
	}
}

func TestStopIngest(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "POST", "/api/ingest/stop", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !env.ingestor.aborted {
		t.Error("abort not forwarded to ingestor")
	}
}

func TestIngestCrowd(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.estimate = &extract.CrowdEstimate{
		MinEstimate: 500, MaxEstimate: 1100, Confidence: "high",
		CrowdType: "protest", Location: "Azadi Square", Lat: 35.7, Lng: 51.3,
	}

	w := env.request(t, "POST", "/api/ingest/crowd", `{"mediaBase64": "aW1n", "mimeType": "image/jpeg"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(env.ingestor.records) != 1 || len(env.ingestor.records[0]) != 1 {
		t.Fatalf("expected one crowd record ingested")
	}
	rec := env.ingestor.records[0][0]
	if !rec.IsManualOrigin || !rec.IsCrowdDerived {
		t.Errorf("crowd record must be manual and crowd derived: %+v", rec)
	}
	if rec.Title != "Crowd: Azadi Square (protest)" {
		t.Errorf("unexpected title %q", rec.Title)
	}
}

func TestExportAndImport(t *testing.T) {
	env := newTestEnv(t)
	env.store.events = []event.Event{testEvent("1", "A", "Other", "2026-08-20", "")}
	env.store.importRes = archive.Result{Inserted: 1}

	w := env.request(t, "GET", "/export", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("export status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("unexpected content type %q", ct)
	}

	w = env.request(t, "POST", "/api/import", w.Body.String(), true)
	if w.Code != http.StatusOK {
		t.Fatalf("import status %d: %s", w.Code, w.Body.String())
	}
	if env.store.imported == nil {
		t.Error("payload not handed to the store")
	}

	w = env.request(t, "POST", "/api/import", "not json", true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid payload, got %d", w.Code)
	}
}

func TestAddAndRemoveSource(t *testing.T) {
	env := newTestEnv(t)
	env.store.events = []event.Event{
		testEvent("1", "A", "Other", "2026-08-20", "https://t.me/intelwire"),
		testEvent("2", "B", "Other", "2026-08-20", "https://example.com/feed"),
	}

	w := env.request(t, "POST", "/api/sources", `{"url": "https://t.me/intelwire", "scan_depth": "1m"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status %d: %s", w.Code, w.Body.String())
	}
	if _, err := env.cache.GetConfig("intelwire"); err != nil {
		t.Fatalf("config not cached: %v", err)
	}

	w = env.request(t, "GET", "/api/sources", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	var listResp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &listResp)
	if listResp.Total != 1 {
		t.Errorf("expected 1 source, got %d", listResp.Total)
	}

	w = env.request(t, "DELETE", "/api/sources/intelwire", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", w.Code, w.Body.String())
	}
	var removeResp struct {
		EventsRemoved int `json:"events_removed"`
		Remaining     int `json:"remaining"`
	}
	json.Unmarshal(w.Body.Bytes(), &removeResp)
	if removeResp.EventsRemoved != 1 || removeResp.Remaining != 1 {
		t.Errorf("unexpected removal result: %+v", removeResp)
	}
	if len(env.repo.deleted) != 1 {
		t.Error("source metadata not deleted")
	}
	if _, err := env.cache.GetConfig("intelwire"); err == nil {
		t.Error("config should be gone after removal")
	}
}

func TestRemoveUnknownSource(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "DELETE", "/api/sources/ghost", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSyncState(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, "GET", "/api/sync", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("get sync status %d", w.Code)
	}

	w = env.request(t, "PUT", "/api/sync", `{"enabled": false, "interval_minutes": 30}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("update sync status %d: %s", w.Code, w.Body.String())
	}
	if env.syncRepo.state.Enabled || env.syncRepo.state.IntervalMinutes != 30 {
		t.Errorf("sync state not updated: %+v", env.syncRepo.state)
	}

	w = env.request(t, "PUT", "/api/sync", `{"enabled": true, "interval_minutes": 0}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad interval, got %d", w.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.store.events = []event.Event{
		testEvent("1", "A", "Military", "2026-08-20", ""),
		testEvent("2", "B", "Military", "2026-08-21", ""),
		testEvent("3", "C", "Cyber", "2026-08-22", ""),
	}

	w := env.request(t, "GET", "/health", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}

	w = env.request(t, "GET", "/stats", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status %d", w.Code)
	}
	var stats struct {
		Events     int            `json:"events"`
		ByCategory map[string]int `json:"by_category"`
	}
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Events != 3 || stats.ByCategory["Military"] != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
