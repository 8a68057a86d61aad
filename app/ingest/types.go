package ingest

import (
	"context"

	"github.com/lysyi3m/intel-comb/app/archive"
	"github.com/lysyi3m/intel-comb/app/event"
	"github.com/lysyi3m/intel-comb/app/fetch"
)

// State tracks where a scan currently is. Exposed through the status
// endpoint so operators can watch long scans progress.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateAborted    State = "aborted"
	StateFailed     State = "failed"
)

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	State      State  `json:"state"`
	SourceName string `json:"sourceName,omitempty"`
	Page       int    `json:"page,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Report summarizes a finished scan.
type Report struct {
	SourceName string `json:"sourceName"`
	Pages      int    `json:"pages"`
	Extracted  int    `json:"extracted"`
	Inserted   int    `json:"inserted"`
	Merged     int    `json:"merged"`
	Aborted    bool   `json:"aborted"`
	Message    string `json:"message"`
}

type Extractor interface {
	Extract(ctx context.Context, content, kind, region string) ([]event.Record, error)
}

type Archive interface {
	UpsertMany(records []event.Record, originURL string) (archive.Result, error)
	Count() int
}

// Fetcher is re-exported so orchestrator construction reads naturally.
type Fetcher = fetch.Fetcher
