package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/intel-comb/app/sources"
)

type ScanSourceTask struct {
	Task
	SourceConfig sources.Config
	scanner      Scanner
}

func NewScanSourceTask(sourceConfig sources.Config, scanner Scanner) *ScanSourceTask {
	return &ScanSourceTask{
		Task:         NewTask(TaskTypeScanSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		scanner:      scanner,
	}
}

func (t *ScanSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	report, err := t.scanner.Scan(ctx, t.SourceConfig)
	if err != nil {
		// "already in progress" comes back here when another scan holds
		// the orchestrator; the scheduler's retry delay spaces us out.
		return fmt.Errorf("failed to scan source: %w", err)
	}

	slog.Info("Task completed",
		"type", "ScanSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"pages", report.Pages,
		"extracted", report.Extracted,
		"new", report.Inserted,
		"merged", report.Merged,
		"aborted", report.Aborted)

	return nil
}
