package fetch

import (
	"context"
	"fmt"

	"github.com/lysyi3m/intel-comb/app/event"
)

// Page is one fetched slice of a source's history, rendered to the
// plain-text form the extraction service consumes.
type Page struct {
	RawContent string
	SourceName string

	// NextCursor continues pagination into older history; empty means
	// the source has no further pages.
	NextCursor string

	// MessageCount is the authoritative end-of-pagination signal: zero
	// means natural end of history, not an error.
	MessageCount int

	Kind event.SourceKind
}

// Fetcher is the page-fetch collaborator contract consumed by the
// ingestion orchestrator.
type Fetcher interface {
	FetchPage(ctx context.Context, url, cursor string) (*Page, error)
}

// Error marks a network-level failure reaching a source. A fetch
// failure aborts the remaining pages of the current scan but never
// touches previously archived data.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
