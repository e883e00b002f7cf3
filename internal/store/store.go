package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Site, error)

	CreateAnalysisJob(ctx context.Context, job *models.AnalysisJob) error
	GetAnalysisJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error)
	GetAnalysisJobByToken(ctx context.Context, token string) (*models.AnalysisJob, error)
	GetLatestAnalysisJobForSite(ctx context.Context, siteID uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error)
	ListActiveAnalysisJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
	UpdateAnalysisJob(ctx context.Context, id uuid.UUID, status models.JobState, opts ...JobUpdateOption) (*models.AnalysisJob, error)
	PurgeTerminalAnalysisJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

// JobUpdate is the resolved set of attribute changes carried by
// JobUpdateOptions.
type JobUpdate struct {
	Progress              *int
	CurrentNode           *string
	ErrorCode             *string
	ErrorMessage          *string
	JobToken              *string
	EstimatedCompletionAt *time.Time
	Now                   *time.Time
}

type JobUpdateOption func(*JobUpdate)

// ResolveJobUpdate applies opts in order and returns the result.
func ResolveJobUpdate(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithProgress records a progress observation. Progress never decreases; a
// lower value than the stored one is ignored. An empty node leaves the stored
// stage unchanged.
func WithProgress(progress int, node string) JobUpdateOption {
	return func(p *JobUpdate) {
		progress = max(0, min(progress, 100))
		p.Progress = &progress
		if node != "" {
			p.CurrentNode = &node
		}
	}
}

func WithFailure(code, message string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorCode = &code
		p.ErrorMessage = &message
	}
}

func WithJobToken(token string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.JobToken = &token
	}
}

func WithEstimatedCompletion(at time.Time) JobUpdateOption {
	return func(p *JobUpdate) {
		p.EstimatedCompletionAt = &at
	}
}

// WithTimestamp overrides the wall clock used for started_at, completed_at
// and updated_at.
func WithTimestamp(now time.Time) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Now = &now
	}
}
