package tasks

import (
	"context"

	"github.com/lysyi3m/intel-comb/app/ingest"
	"github.com/lysyi3m/intel-comb/app/sources"
)

// TaskSchedulerInterface defines the interface for task scheduling
// operations. Used by the main application and the API layer to manage
// background task processing.
// Example usage:
//
//	scheduler := NewScheduler(configCache, sourceRepo, syncRepo, scanner)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewScanSourceTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Scanner is the slice of the ingest orchestrator the tasks need.
type Scanner interface {
	Scan(ctx context.Context, config sources.Config) (*ingest.Report, error)
}
