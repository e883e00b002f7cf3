// Package worker runs the periodic analysis job maintenance tasks on asynq.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeJobSync  = "jobs:sync"
	TaskTypeJobPurge = "jobs:purge"

	// QueueMaintenance carries both task types.
	QueueMaintenance = "maintenance"
)

type syncPayload struct {
	Limit int `json:"limit"`
}

type purgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSyncTask builds a jobs:sync task. Sync is never retried: the next tick
// observes the same jobs again.
func NewSyncTask(limit int, interval time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(syncPayload{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync payload: %w", err)
	}
	return asynq.NewTask(TaskTypeJobSync, payload,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Timeout(interval),
		asynq.Unique(interval),
	), nil
}

// NewPurgeTask builds a jobs:purge task for jobs finished more than
// retention ago.
func NewPurgeTask(retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(purgePayload{Retention: retention})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purge payload: %w", err)
	}
	return asynq.NewTask(TaskTypeJobPurge, payload,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(3),
	), nil
}

// JobRunner is the part of the job registry the tasks drive.
type JobRunner interface {
	SyncActive(ctx context.Context, limit int) (int, error)
	PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error)
}

// Handlers processes maintenance tasks.
type Handlers struct {
	runner JobRunner
	logger *slog.Logger
}

func NewHandlers(runner JobRunner, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{runner: runner, logger: logger}
}

// Register attaches the task handlers to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeJobSync, h.ProcessSync)
	mux.HandleFunc(TaskTypeJobPurge, h.ProcessPurge)
}

func (h *Handlers) ProcessSync(ctx context.Context, t *asynq.Task) error {
	var p syncPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal sync payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("invalid sync limit %d: %w", p.Limit, asynq.SkipRetry)
	}

	start := time.Now()
	n, err := h.runner.SyncActive(ctx, p.Limit)
	if err != nil {
		return fmt.Errorf("job sync: %w", err)
	}
	h.logger.Debug("job sync finished", "synced", n, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (h *Handlers) ProcessPurge(ctx context.Context, t *asynq.Task) error {
	var p purgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal purge payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.Retention <= 0 {
		return fmt.Errorf("invalid retention %s: %w", p.Retention, asynq.SkipRetry)
	}

	n, err := h.runner.PurgeTerminal(ctx, p.Retention)
	if err != nil {
		return fmt.Errorf("job purge: %w", err)
	}
	h.logger.Info("job purge finished", "purged", n, "retention", p.Retention)
	return nil
}
