package api

import (
	"context"

	"github.com/lysyi3m/intel-comb/app/archive"
	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/event"
	"github.com/lysyi3m/intel-comb/app/extract"
	"github.com/lysyi3m/intel-comb/app/ingest"
	"github.com/lysyi3m/intel-comb/app/sources"
	"github.com/lysyi3m/intel-comb/app/tasks"
)

type ArchiveInterface interface {
	All() []event.Event
	Count() int
	Export() ([]byte, error)
	Import(data []byte) (archive.Result, error)
	RemoveBySource(originURL string) (int, error)
}

var _ ArchiveInterface = (*archive.Store)(nil)

type IngestorInterface interface {
	Scan(ctx context.Context, config sources.Config) (*ingest.Report, error)
	Status() ingest.Status
	Abort()
	IngestText(ctx context.Context, text, region string) (*ingest.Report, error)
	IngestRecords(records []event.Record, label string) (*ingest.Report, error)
}

var _ IngestorInterface = (*ingest.Orchestrator)(nil)

type CrowdAnalyzerInterface interface {
	EstimateCrowd(ctx context.Context, mediaBase64, mimeType, region string) (*extract.CrowdEstimate, error)
}

var _ CrowdAnalyzerInterface = (*extract.Client)(nil)

type Handler struct {
	store       ArchiveInterface
	configCache *sources.ConfigCache
	sourceRepo  database.SourceRepository
	syncRepo    database.SyncStateRepository
	ingestor    IngestorInterface
	analyzer    CrowdAnalyzerInterface
	scheduler   tasks.TaskSchedulerInterface
}
