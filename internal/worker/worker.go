package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kiranshivaraju/climaterisk/internal/config"
)

// Worker owns the asynq scheduler that enqueues maintenance tasks and the
// server that processes them.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *slog.Logger
}

// New builds a Worker on the Redis instance at redisURL and registers the
// periodic sync and purge entries.
func New(redisURL string, cfg config.WorkerConfig, runner JobRunner, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url for worker: %w", err)
	}

	al := asynqLogger{logger: logger.With("component", "asynq")}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     2,
		Queues:          map[string]int{QueueMaintenance: 1},
		Logger:          al,
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn("maintenance task failed", "type", task.Type(), "error", err)
		}),
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   al,
	})

	syncTask, err := NewSyncTask(cfg.SyncBatch, cfg.SyncInterval)
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(every(cfg.SyncInterval), syncTask); err != nil {
		return nil, fmt.Errorf("registering %s: %w", TaskTypeJobSync, err)
	}

	purgeTask, err := NewPurgeTask(cfg.Retention)
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(every(cfg.PurgeEvery), purgeTask); err != nil {
		return nil, fmt.Errorf("registering %s: %w", TaskTypeJobPurge, err)
	}

	mux := asynq.NewServeMux()
	NewHandlers(runner, logger).Register(mux)

	return &Worker{server: srv, scheduler: scheduler, mux: mux, logger: logger}, nil
}

// Start launches the server and scheduler in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("starting worker server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("starting worker scheduler: %w", err)
	}
	w.logger.Info("maintenance worker started")
	return nil
}

// Shutdown stops scheduling and waits for in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("maintenance worker stopped")
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
