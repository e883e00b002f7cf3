package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// observation is what an upstream raw status asks the registry to do.
type observation int

const (
	observeNothing observation = iota
	observeRunning
	observeCompleted
	observeFailed
	observeUnknown
)

func classify(raw string) observation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "pending":
		return observeNothing
	case "running", "processing", "in_progress":
		return observeRunning
	case "completed", "done", "finished", "success":
		return observeCompleted
	case "failed", "error", "cancelled":
		return observeFailed
	default:
		return observeUnknown
	}
}

// Coarsen folds an upstream or stored status into the two values exposed to
// pollers. Anything that is not a recognized completion, including failure
// and unrecognized values, reads as in_progress; the detailed state is
// reported next to it.
func Coarsen(raw string) models.CoarseStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "done", "finished", "success":
		return models.CoarseDone
	default:
		return models.CoarseInProgress
	}
}

// StatusView is the poll response for one analysis job.
type StatusView struct {
	JobID                 uuid.UUID           `json:"job_id"`
	SiteID                uuid.UUID           `json:"site_id"`
	Status                models.CoarseStatus `json:"status"`
	State                 models.JobState     `json:"state"`
	Progress              int                 `json:"progress"`
	CurrentNode           *string             `json:"current_node,omitempty"`
	ErrorCode             *string             `json:"error_code,omitempty"`
	ErrorMessage          *string             `json:"error_message,omitempty"`
	StartedAt             *time.Time          `json:"started_at,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	EstimatedCompletionAt *time.Time          `json:"estimated_completion_at,omitempty"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// NewStatusView renders job with the coarse status derived from raw.
func NewStatusView(job *models.AnalysisJob, raw string) *StatusView {
	return &StatusView{
		JobID:                 job.ID,
		SiteID:                job.SiteID,
		Status:                Coarsen(raw),
		State:                 job.Status,
		Progress:              job.Progress,
		CurrentNode:           job.CurrentNode,
		ErrorCode:             job.ErrorCode,
		ErrorMessage:          job.ErrorMessage,
		StartedAt:             job.StartedAt,
		CompletedAt:           job.CompletedAt,
		EstimatedCompletionAt: job.EstimatedCompletionAt,
		UpdatedAt:             job.UpdatedAt,
	}
}

// NormalizePriority lowercases p and maps anything other than low or high to
// normal.
func NormalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "low":
		return "low"
	case "high":
		return "high"
	default:
		return "normal"
	}
}
