package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/intel-comb/app/cfg"
	"github.com/lysyi3m/intel-comb/app/database"
	"github.com/lysyi3m/intel-comb/app/sources"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *sources.ConfigCache
	sourceRepo  database.SourceRepository
	syncRepo    database.SyncStateRepository
	scanner     Scanner
	interval    time.Duration
	workerCount int
	scanOnStart bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *sources.ConfigCache, sourceRepo database.SourceRepository,
	syncRepo database.SyncStateRepository, scanner Scanner) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache: configCache,
		sourceRepo:  sourceRepo,
		syncRepo:    syncRepo,
		scanner:     scanner,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		scanOnStart: cfg.ScanOnStart,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSyncTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Registering source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		registerTask := NewRegisterSourceTask(*sourceConfig, s.sourceRepo)
		if err := s.EnqueueTask(registerTask); err != nil {
			slog.Warn("Failed to enqueue RegisterSourceTask", "source", sourceConfig.Name, "error", err)
			continue
		}

		if !s.scanOnStart || !sourceConfig.Enabled {
			continue
		}

		scanTask := NewScanSourceTask(*sourceConfig, s.scanner)
		if err := s.EnqueueTask(scanTask); err != nil {
			slog.Warn("Failed to enqueue ScanSourceTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

// enqueueSyncTasks runs the background sync check: when sync is enabled
// and the configured interval has elapsed since the last pass, every
// enabled source gets a scan task.
func (s *Scheduler) enqueueSyncTasks() {
	state, err := s.syncRepo.GetSyncState()
	if err != nil {
		slog.Warn("Failed to read sync state, skipping sync pass", "error", err)
		return
	}
	if !state.Enabled {
		slog.Debug("Background sync disabled")
		return
	}

	now := time.Now().UTC()
	if state.LastSyncAt != nil {
		due := state.LastSyncAt.Add(time.Duration(state.IntervalMinutes) * time.Minute)
		if due.After(now) {
			slog.Debug("Background sync not due yet", "due_at", due)
			return
		}
	}

	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Info("Background sync pass starting", "sources", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		scanTask := NewScanSourceTask(*sourceConfig, s.scanner)
		if err := s.EnqueueTask(scanTask); err != nil {
			slog.Warn("Failed to enqueue ScanSourceTask", "source", sourceConfig.Name, "error", err)
		}
	}

	if err := s.syncRepo.TouchLastSync(); err != nil {
		slog.Warn("Failed to record sync pass", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 30*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
