package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/event"
	"github.com/lysyi3m/intel-comb/app/extract"
	"github.com/lysyi3m/intel-comb/app/metrics"
	"github.com/lysyi3m/intel-comb/app/sources"
)

const (
	pageDelay           = 2 * time.Second
	rateLimitBaseDelay  = 5 * time.Second
	rateLimitMaxDelay   = 60 * time.Second
	rateLimitMaxRetries = 3
)

// pageBudgets bounds how many history pages each scan depth walks.
// Single-page source kinds stop after the first page regardless.
var pageBudgets = map[string]int{
	"latest": 1,
	"1m":     10,
	"3m":     30,
	"6m":     60,
	"12m":    120,
	"all":    300,
	"resume": 1,
}

// Orchestrator drives one source scan at a time: fetch a page, extract
// records from it, reconcile them into the archive, advance the source
// cursor, repeat until the page budget runs out or the operator aborts.
type Orchestrator struct {
	fetcher    Fetcher
	extractor  Extractor
	archive    Archive
	sourceRepo database.SourceRepository

	scanMu sync.Mutex // held for the whole duration of a scan
	abort  atomic.Bool

	pageDelay      time.Duration
	rateLimitDelay time.Duration

	statusMu sync.RWMutex
	status   Status
}

func NewOrchestrator(fetcher Fetcher, extractor Extractor, archive Archive,
	sourceRepo database.SourceRepository) *Orchestrator {
	return &Orchestrator{
		fetcher:        fetcher,
		extractor:      extractor,
		archive:        archive,
		sourceRepo:     sourceRepo,
		pageDelay:      pageDelay,
		rateLimitDelay: rateLimitBaseDelay,
		status:         Status{State: StateIdle},
	}
}

// Status returns the current scan status snapshot.
func (o *Orchestrator) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// Abort requests that the running scan stop after the current page.
func (o *Orchestrator) Abort() {
	o.abort.Store(true)
}

func (o *Orchestrator) setStatus(state State, sourceName string, page int, message string) {
	o.statusMu.Lock()
	o.status = Status{State: state, SourceName: sourceName, Page: page, Message: message}
	o.statusMu.Unlock()
}

// Scan walks a source's history per its configured depth. Only one scan
// runs at a time; a second call while one is active returns an error
// instead of queueing.
func (o *Orchestrator) Scan(ctx context.Context, config sources.Config) (*Report, error) {
	if !o.scanMu.TryLock() {
		return nil, fmt.Errorf("a scan is already in progress")
	}
	defer o.scanMu.Unlock()

	o.abort.Store(false)

	budget, ok := pageBudgets[config.ScanDepth]
	if !ok {
		budget = pageBudgets["latest"]
	}

	cursor := ""
	if config.ScanDepth == "resume" {
		meta, err := o.sourceRepo.GetSource(config.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to load source state: %w", err)
		}
		if meta != nil {
			cursor = meta.LastCursor
		}
	}

	name := config.Name
	report := &Report{SourceName: name}
	o.setStatus(StateConnecting, name, 0, "Connecting to source...")
	slog.Info("Scan started", "source", name, "url", config.URL, "depth", config.ScanDepth, "pages", budget)

	for page := 1; page <= budget; page++ {
		if o.aborted(ctx) {
			return o.finishAborted(report)
		}

		o.setStatus(StateFetching, name, page, fmt.Sprintf("Fetching page %d of %d...", page, budget))
		fetched, err := o.fetcher.FetchPage(ctx, config.URL, cursor)
		if err != nil {
			metrics.FetchFailures.WithLabelValues(string(config.Kind)).Inc()
			return o.finishFailed(report, fmt.Errorf("fetch page %d: %w", page, err))
		}
		metrics.PagesFetched.WithLabelValues(string(fetched.Kind)).Inc()
		if fetched.SourceName != "" {
			name = fetched.SourceName
			report.SourceName = name
		}
		if fetched.MessageCount == 0 {
			// A page with no messages means the history is exhausted.
			slog.Info("Reached end of source history", "source", name, "page", page)
			break
		}
		report.Pages++

		o.setStatus(StateExtracting, name, page, fmt.Sprintf("Analyzing page %d (%d messages)...", page, fetched.MessageCount))
		records, err := o.extractWithBackoff(ctx, fetched.RawContent, string(fetched.Kind), config.Region)
		inserted := 0
		if err != nil {
			// A page the service cannot process is skipped, not fatal.
			metrics.ExtractionFailures.Inc()
			slog.Warn("Extraction failed, skipping page", "source", name, "page", page, "error", err)
		} else if len(records) > 0 {
			metrics.EventsExtracted.Add(float64(len(records)))
			result, err := o.archive.UpsertMany(records, config.URL)
			if err != nil {
				return o.finishFailed(report, fmt.Errorf("archive page %d: %w", page, err))
			}
			inserted = result.Inserted
			report.Extracted += len(records)
			report.Inserted += result.Inserted
			report.Merged += result.Merged
			metrics.EventsInserted.Add(float64(result.Inserted))
			metrics.EventsMerged.Add(float64(result.Merged))
			metrics.ArchiveEvents.Set(float64(o.archive.Count()))
		}

		// Cursor progress is persisted even for empty pages so a later
		// resume scan does not re-fetch them.
		if err := o.sourceRepo.RecordPage(config.URL, fetched.NextCursor, inserted); err != nil {
			slog.Warn("Failed to record source progress", "source", name, "error", err)
		}

		cursor = fetched.NextCursor
		if cursor == "" {
			// Single-page source, or the history ran out.
			break
		}

		if page < budget && !o.sleepBetweenPages(ctx) {
			return o.finishAborted(report)
		}
	}

	report.Message = fmt.Sprintf("Scan Complete: %s", name)
	// Terminal status stays visible until the next scan starts.
	o.setStatus(StateIdle, name, report.Pages, report.Message)
	slog.Info("Scan finished", "source", name, "pages", report.Pages,
		"extracted", report.Extracted, "inserted", report.Inserted, "merged", report.Merged)
	return report, nil
}

// IngestText runs pasted analyst text through extraction and reconciles
// the results. Manual records carry no origin URL and get the manual
// origin mark, which unlocks the analyst validation merge path.
func (o *Orchestrator) IngestText(ctx context.Context, text, region string) (*Report, error) {
	if !o.scanMu.TryLock() {
		return nil, fmt.Errorf("a scan is already in progress")
	}
	defer o.scanMu.Unlock()

	o.setStatus(StateExtracting, "manual", 1, "Analyzing submitted text...")
	defer o.setStatus(StateIdle, "", 0, "")

	records, err := o.extractWithBackoff(ctx, text, string(event.SourceKindManual), region)
	if err != nil {
		metrics.ExtractionFailures.Inc()
		return nil, fmt.Errorf("analyze text: %w", err)
	}
	for i := range records {
		records[i].IsManualOrigin = true
		records[i].OriginURL = ""
	}
	return o.ingestRecords(records, "manual analysis")
}

// IngestRecords reconciles pre-built records, used by the crowd report
// flow where the records come from media analysis rather than text.
func (o *Orchestrator) IngestRecords(records []event.Record, label string) (*Report, error) {
	if !o.scanMu.TryLock() {
		return nil, fmt.Errorf("a scan is already in progress")
	}
	defer o.scanMu.Unlock()
	return o.ingestRecords(records, label)
}

func (o *Orchestrator) ingestRecords(records []event.Record, label string) (*Report, error) {
	result, err := o.archive.UpsertMany(records, "")
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", label, err)
	}
	metrics.EventsExtracted.Add(float64(len(records)))
	metrics.EventsInserted.Add(float64(result.Inserted))
	metrics.EventsMerged.Add(float64(result.Merged))
	metrics.ArchiveEvents.Set(float64(o.archive.Count()))

	slog.Info("Manual ingestion finished", "label", label,
		"records", len(records), "inserted", result.Inserted, "merged", result.Merged)
	return &Report{
		SourceName: label,
		Extracted:  len(records),
		Inserted:   result.Inserted,
		Merged:     result.Merged,
		Message:    fmt.Sprintf("Analysis Complete: %d new, %d merged", result.Inserted, result.Merged),
	}, nil
}

// extractWithBackoff retries rate-limited extraction calls with capped
// exponential delays. Other failures surface immediately.
func (o *Orchestrator) extractWithBackoff(ctx context.Context, content, kind, region string) ([]event.Record, error) {
	delay := o.rateLimitDelay
	for attempt := 0; ; attempt++ {
		records, err := o.extractor.Extract(ctx, content, kind, region)
		if err == nil {
			return records, nil
		}
		if !extract.IsRateLimit(err) || attempt >= rateLimitMaxRetries {
			return nil, err
		}

		slog.Warn("Extraction rate limited, backing off", "attempt", attempt+1, "delay", delay.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > rateLimitMaxDelay {
			delay = rateLimitMaxDelay
		}
	}
}

func (o *Orchestrator) aborted(ctx context.Context) bool {
	return o.abort.Load() || ctx.Err() != nil
}

// sleepBetweenPages waits the inter-page delay, returning false when the
// scan was aborted while waiting.
func (o *Orchestrator) sleepBetweenPages(ctx context.Context) bool {
	if o.aborted(ctx) {
		return false
	}

	timer := time.NewTimer(o.pageDelay)
	defer timer.Stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			if o.abort.Load() {
				return false
			}
		}
	}
}

func (o *Orchestrator) finishAborted(report *Report) (*Report, error) {
	report.Aborted = true
	report.Message = "Scan stopped by user."
	o.setStatus(StateAborted, report.SourceName, report.Pages, report.Message)
	slog.Info("Scan aborted", "source", report.SourceName, "pages", report.Pages)
	return report, nil
}

func (o *Orchestrator) finishFailed(report *Report, err error) (*Report, error) {
	report.Message = fmt.Sprintf("Operation failed: %s", err)
	o.setStatus(StateFailed, report.SourceName, report.Pages, report.Message)
	slog.Error("Scan failed", "source", report.SourceName, "error", err)
	return report, err
}
