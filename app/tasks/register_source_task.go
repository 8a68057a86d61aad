package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/sources"
)

type RegisterSourceTask struct {
	Task
	SourceConfig sources.Config
	sourceRepo   database.SourceRepository
}

func NewRegisterSourceTask(sourceConfig sources.Config, sourceRepo database.SourceRepository) *RegisterSourceTask {
	return &RegisterSourceTask{
		Task:         NewTask(TaskTypeRegisterSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *RegisterSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.sourceRepo.UpsertSource(t.SourceConfig.URL, t.SourceConfig.Kind)
	if err != nil {
		slog.Error("Task failed", "type", "RegisterSource", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to register source in database: %w", err)
	}

	slog.Info("Task completed",
		"type", "RegisterSource",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
