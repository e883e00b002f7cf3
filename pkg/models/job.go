package models

import (
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of an AnalysisJob.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Valid reports whether s is one of the four known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateCompleted, JobStateFailed:
		return true
	default:
		return false
	}
}

// Active reports whether a job in this state counts against the
// one-active-job-per-site constraint.
func (s JobState) Active() bool {
	return s == JobStateQueued || s == JobStateRunning
}

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

var jobTransitions = map[JobState][]JobState{
	JobStateQueued:  {JobStateRunning, JobStateFailed},
	JobStateRunning: {JobStateRunning, JobStateCompleted, JobStateFailed},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to JobState) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CoarseStatus is the two-valued status exposed to pollers.
type CoarseStatus string

const (
	CoarseInProgress CoarseStatus = "in_progress"
	CoarseDone       CoarseStatus = "done"
)

// AnalysisJob tracks one upstream analysis run for a single site. The API returns
// the job on POST /api/v1/sites/{siteID}/analysis; clients poll
// GET /api/v1/analysis/jobs/{jobID} until the coarse status is done.
type AnalysisJob struct {
	ID                    uuid.UUID  `db:"id"                      json:"id"`
	TenantID              uuid.UUID  `db:"tenant_id"               json:"tenant_id"`
	SiteID                uuid.UUID  `db:"site_id"                 json:"site_id"`
	JobToken              *string    `db:"job_token"               json:"job_token,omitempty"`
	Status                JobState   `db:"status"                  json:"status"`
	Progress              int        `db:"progress"                json:"progress"`
	CurrentNode           *string    `db:"current_node"            json:"current_node,omitempty"`
	ErrorCode             *string    `db:"error_code"              json:"error_code,omitempty"`
	ErrorMessage          *string    `db:"error_message"           json:"error_message,omitempty"`
	StartedAt             *time.Time `db:"started_at"              json:"started_at,omitempty"`
	CompletedAt           *time.Time `db:"completed_at"            json:"completed_at,omitempty"`
	EstimatedCompletionAt *time.Time `db:"estimated_completion_at" json:"estimated_completion_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at"              json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"              json:"updated_at"`
}
