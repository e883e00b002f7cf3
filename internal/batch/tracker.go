// Package batch starts site recommendation batches upstream and reports
// their progress and ranked results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/cache"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// ResultTTL is how long terminal snapshots and completed results are cached.
const ResultTTL = 24 * time.Hour

var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrInvalidRequest = errors.New("invalid batch request")
	ErrSiteNotFound   = errors.New("reference site not found")
)

type Candidate struct {
	Name         string  `json:"name"                    validate:"required,max=200"`
	Latitude     float64 `json:"latitude"                validate:"latitude"`
	Longitude    float64 `json:"longitude"               validate:"longitude"`
	RoadAddress  *string `json:"road_address,omitempty"`
	JibunAddress *string `json:"jibun_address,omitempty"`
}

// Criteria tunes the ranking. Hazard labels may use any name space.
type Criteria struct {
	HazardWeights     map[string]float64 `json:"hazard_weights,omitempty"   validate:"omitempty,dive,gte=0"`
	ExcludedHazards   []string           `json:"excluded_hazards,omitempty"`
	MinRiskScore      *float64           `json:"min_risk_score,omitempty"   validate:"omitempty,gte=0,lte=100"`
	MaxRiskScore      *float64           `json:"max_risk_score,omitempty"   validate:"omitempty,gte=0,lte=100"`
	AdditionalFilters map[string]any     `json:"additional_filters,omitempty"`
}

// Request is a recommendation batch over candidate locations.
type Request struct {
	JobName         string      `json:"job_name"                    validate:"required,max=200"`
	SiteType        string      `json:"site_type"`
	Candidates      []Candidate `json:"candidates"                  validate:"required,min=1,max=100,dive"`
	Criteria        *Criteria   `json:"criteria,omitempty"`
	ReferenceSiteID *uuid.UUID  `json:"reference_site_id,omitempty"`
}

// SiteLookup resolves the optional reference site.
type SiteLookup interface {
	GetSite(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Site, error)
}

// Tracker is a thin view over upstream batches. The upstream service owns the
// batch state; the tracker only translates and caches it.
type Tracker struct {
	sites    SiteLookup
	upstream upstream.Client
	cache    cache.Cache
	validate *validator.Validate
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTracker creates a Tracker. A nil logger selects slog.Default().
func NewTracker(sites SiteLookup, up upstream.Client, ca cache.Cache, v *validator.Validate, m *observability.Metrics, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		sites:    sites,
		upstream: up,
		cache:    ca,
		validate: v,
		metrics:  m,
		logger:   logger,
	}
}

// Start validates req, translates it for upstream and starts the batch.
func (t *Tracker) Start(ctx context.Context, tenantID uuid.UUID, req Request) (*models.BatchJob, error) {
	if err := t.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	criteria, err := translateCriteria(req.Criteria)
	if err != nil {
		return nil, err
	}

	if req.ReferenceSiteID != nil {
		_, err := t.sites.GetSite(ctx, *req.ReferenceSiteID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, *req.ReferenceSiteID)
		}
		if err != nil {
			return nil, fmt.Errorf("getting reference site: %w", err)
		}
	}

	candidates := make([]upstream.Candidate, len(req.Candidates))
	for i, c := range req.Candidates {
		candidates[i] = upstream.Candidate{
			Name:         c.Name,
			Latitude:     c.Latitude,
			Longitude:    c.Longitude,
			RoadAddress:  c.RoadAddress,
			JibunAddress: c.JibunAddress,
		}
	}

	started, err := t.upstream.StartBatch(ctx, upstream.BatchRequest{
		JobName:         req.JobName,
		SiteType:        string(hazard.ClassifySiteType(req.SiteType, t.logger)),
		Candidates:      candidates,
		Criteria:        criteria,
		ReferenceSiteID: req.ReferenceSiteID,
	})
	if err != nil {
		return nil, fmt.Errorf("starting batch: %w", err)
	}
	t.metrics.BatchesStarted.Inc()

	t.logger.Info("recommendation batch started",
		"batch_job_id", started.BatchJobID,
		"candidates", len(candidates),
	)

	jobType := models.BatchJobType(started.JobType)
	if jobType == "" {
		jobType = models.BatchJobSiteRecommendation
	}
	return &models.BatchJob{
		ID:         started.BatchJobID,
		JobType:    jobType,
		JobName:    started.JobName,
		Status:     t.parseStatus(started.BatchJobID, started.Status),
		Progress:   clampPercent(started.ProgressPercentage),
		TotalItems: started.TotalCandidates,
		StartedAt:  started.StartedAt.Ptr(),
	}, nil
}

// Snapshot returns the current progress of a batch. The percentage is the
// upstream figure clamped to 0..100.
func (t *Tracker) Snapshot(ctx context.Context, id uuid.UUID) (*models.BatchProgress, error) {
	var cached models.BatchProgress
	if ok, err := cache.GetJSON(ctx, t.cache, cache.BatchProgressKey(id), &cached); err != nil {
		t.logger.Warn("batch progress cache read failed", "batch_job_id", id, "error", err)
	} else if ok {
		return &cached, nil
	}

	p, err := t.upstream.BatchProgress(ctx, id.String())
	if err != nil {
		return nil, t.upstreamError(id, err)
	}

	snap := &models.BatchProgress{
		BatchJobID: id,
		Status:     t.parseStatus(id, p.Status),
		Processed:  p.ProcessedItems,
		Total:      p.TotalItems,
		Percent:    clampPercent(p.ProgressPercentage),
		Error:      p.ErrorMessage,
		Metadata:   p.Metadata,
	}
	if snap.Status.Terminal() {
		if err := cache.SetJSON(ctx, t.cache, cache.BatchProgressKey(id), snap, ResultTTL); err != nil {
			t.logger.Warn("batch progress cache write failed", "batch_job_id", id, "error", err)
		}
	}
	return snap, nil
}

// Result returns the batch with its recommendations in upstream rank order.
// Recommendations are nil until the batch has completed.
func (t *Tracker) Result(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	var cached models.BatchJob
	if ok, err := cache.GetJSON(ctx, t.cache, cache.BatchResultKey(id), &cached); err != nil {
		t.logger.Warn("batch result cache read failed", "batch_job_id", id, "error", err)
	} else if ok {
		return &cached, nil
	}

	r, err := t.upstream.BatchResult(ctx, id.String())
	if err != nil {
		return nil, t.upstreamError(id, err)
	}

	job := &models.BatchJob{
		ID:           id,
		JobType:      models.BatchJobSiteRecommendation,
		JobName:      r.JobName,
		Status:       t.parseStatus(id, r.Status),
		TotalItems:   r.TotalCandidates,
		StartedAt:    r.StartedAt.Ptr(),
		CompletedAt:  r.CompletedAt.Ptr(),
		ErrorMessage: r.ErrorMessage,
		Metadata:     r.Metadata,
	}
	if job.Metadata == nil {
		job.Metadata = t.cachedMetadata(ctx, id)
	}
	if job.Status != models.BatchStatusCompleted {
		return job, nil
	}

	job.Progress = 100
	job.ProcessedItems = r.TotalCandidates
	job.Recommendations = make([]models.RecommendationItem, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		job.Recommendations[i] = models.RecommendationItem{
			Name:             rec.Name,
			Latitude:         rec.Latitude,
			Longitude:        rec.Longitude,
			RoadAddress:      rec.RoadAddress,
			Rank:             rec.Rank,
			OverallRiskScore: rec.OverallRiskScore,
			HazardScores:     rec.HazardScores,
			Recommendation:   rec.Recommendation,
			AnalysisDetails:  rec.AnalysisDetails,
		}
	}

	if err := cache.SetJSON(ctx, t.cache, cache.BatchResultKey(id), job, ResultTTL); err != nil {
		t.logger.Warn("batch result cache write failed", "batch_job_id", id, "error", err)
	}
	return job, nil
}

// cachedMetadata returns the metadata of a cached progress snapshot. The
// result endpoint does not always repeat it.
func (t *Tracker) cachedMetadata(ctx context.Context, id uuid.UUID) map[string]any {
	var snap models.BatchProgress
	ok, err := cache.GetJSON(ctx, t.cache, cache.BatchProgressKey(id), &snap)
	if err != nil || !ok {
		return nil
	}
	return snap.Metadata
}

func (t *Tracker) upstreamError(id uuid.UUID, err error) error {
	if errors.Is(err, upstream.ErrUpstreamNotFound) {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return fmt.Errorf("fetching batch %s: %w", id, err)
}

// translateCriteria rewrites hazard labels to upstream names.
func translateCriteria(c *Criteria) (*upstream.Criteria, error) {
	if c == nil {
		return nil, nil
	}
	out := &upstream.Criteria{
		MinRiskScore:      c.MinRiskScore,
		MaxRiskScore:      c.MaxRiskScore,
		AdditionalFilters: c.AdditionalFilters,
	}
	if len(c.HazardWeights) > 0 {
		out.HazardWeights = make(map[string]float64, len(c.HazardWeights))
		for label, w := range c.HazardWeights {
			name, err := hazard.Translate(label, hazard.ConventionUpstream)
			if err != nil {
				return nil, err
			}
			out.HazardWeights[name] = w
		}
	}
	if len(c.ExcludedHazards) > 0 {
		names, err := hazard.ToUpstreamNames(c.ExcludedHazards)
		if err != nil {
			return nil, err
		}
		out.ExcludedHazards = names
	}
	return out, nil
}

// parseStatus maps an upstream batch status code, case-insensitively. An
// unrecognized code is reported as running so the batch stays non-terminal
// and is neither cached nor treated as finished.
func (t *Tracker) parseStatus(id uuid.UUID, raw string) models.BatchStatus {
	switch s := models.BatchStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case models.BatchStatusQueued, models.BatchStatusRunning, models.BatchStatusCompleted,
		models.BatchStatusFailed, models.BatchStatusCancelled:
		return s
	default:
		t.metrics.UnknownStatuses.Inc()
		t.logger.Warn("unknown upstream batch status", "batch_job_id", id, "status", raw)
		return models.BatchStatusRunning
	}
}

func clampPercent(p int) int {
	return max(0, min(p, 100))
}
