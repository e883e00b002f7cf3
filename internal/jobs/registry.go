// Package jobs owns the analysis job lifecycle: starting upstream runs,
// applying observed upstream status to the stored state machine, and serving
// the result views that depend on a finished analysis.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/climaterisk/internal/cache"
	"github.com/kiranshivaraju/climaterisk/internal/events"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// StatusTTL is how long the coarse job status stays in the cache.
const StatusTTL = 30 * time.Minute

// Failure codes recorded on failed jobs.
const (
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamFailed      = "UPSTREAM_FAILED"
)

// StartOptions are the caller-supplied parameters of an analysis run.
type StartOptions struct {
	HazardTypes []string
	Priority    string
	Options     *upstream.AnalysisOptions
}

// Registry coordinates the job store, the upstream analysis service and the
// status cache.
type Registry struct {
	store    store.Store
	upstream upstream.Client
	cache    cache.Cache
	events   events.Publisher
	metrics  *observability.Metrics
	clock    clockwork.Clock
	logger   *slog.Logger
}

type Option func(*Registry)

func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithEvents(p events.Publisher) Option {
	return func(r *Registry) { r.events = p }
}

// NewRegistry creates a Registry. Without options it uses the real clock,
// slog.Default() and discards lifecycle events.
func NewRegistry(st store.Store, up upstream.Client, ca cache.Cache, m *observability.Metrics, opts ...Option) *Registry {
	r := &Registry{
		store:    st,
		upstream: up,
		cache:    ca,
		events:   events.NopPublisher{},
		metrics:  m,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartAnalysis records a queued job for the site and asks upstream to run it.
// At most one queued or running job may exist per site; a second start
// returns ErrAnalysisAlreadyRunning without creating a row.
func (r *Registry) StartAnalysis(ctx context.Context, tenantID, siteID uuid.UUID, opts StartOptions) (*models.AnalysisJob, error) {
	site, err := r.getSite(ctx, tenantID, siteID)
	if err != nil {
		return nil, err
	}

	hazards, err := hazard.ToUpstreamNames(opts.HazardTypes)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	job := &models.AnalysisJob{
		ID:        uuid.New(),
		TenantID:  tenantID,
		SiteID:    site.ID,
		Status:    models.JobStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateAnalysisJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			r.metrics.AnalysisStarts.WithLabelValues("already_running").Inc()
			return nil, fmt.Errorf("%w: site %s", ErrAnalysisAlreadyRunning, site.ID)
		}
		return nil, fmt.Errorf("creating analysis job: %w", err)
	}

	resp, err := r.upstream.StartAnalysis(ctx, upstream.StartRequest{
		Site: upstream.SiteInfo{
			ID:        site.ID.String(),
			Name:      site.Name,
			Latitude:  site.Latitude,
			Longitude: site.Longitude,
			Address:   site.Address(),
			Type:      string(site.SiteType),
		},
		HazardTypes: hazards,
		Priority:    NormalizePriority(opts.Priority),
		Options:     opts.Options,
	})
	if err != nil {
		r.metrics.AnalysisStarts.WithLabelValues("upstream_error").Inc()
		// Release the site so a later start is possible, even if ctx is done.
		if _, ferr := r.transition(context.WithoutCancel(ctx), job, models.JobStateFailed, store.WithFailure(CodeUpstreamUnavailable, err.Error())); ferr != nil {
			r.logger.Error("failed to mark job failed after upstream start error",
				"job_id", job.ID,
				"error", ferr,
			)
		}
		return nil, fmt.Errorf("starting upstream analysis: %w", err)
	}

	updates := []store.JobUpdateOption{store.WithJobToken(resp.JobID), store.WithTimestamp(r.clock.Now())}
	if resp.EstimatedCompletionTime != nil {
		updates = append(updates, store.WithEstimatedCompletion(resp.EstimatedCompletionTime.Time))
	}
	job, err = r.store.UpdateAnalysisJob(ctx, job.ID, models.JobStateQueued, updates...)
	if err != nil {
		return nil, fmt.Errorf("attaching job token: %w", err)
	}

	r.metrics.AnalysisStarts.WithLabelValues("accepted").Inc()
	r.cacheStatus(ctx, job)
	r.publish(ctx, events.TypeJobStarted, job)

	r.logger.Info("analysis started",
		"job_id", job.ID,
		"site_id", site.ID,
		"hazards", len(hazards),
	)
	return job, nil
}

// GetJob loads a job without contacting upstream.
func (r *Registry) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := r.store.GetAnalysisJob(ctx, jobID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis job: %w", err)
	}
	return job, nil
}

// PollStatus refreshes an active job from upstream and returns its view. An
// upstream error is returned as is and leaves the job in its last known state.
func (r *Registry) PollStatus(ctx context.Context, tenantID, jobID uuid.UUID) (*StatusView, error) {
	job, err := r.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	raw := string(job.Status)
	if job.Status.Active() && job.JobToken != nil {
		st, err := r.upstream.AnalysisStatus(ctx, job.SiteID.String(), *job.JobToken)
		if err != nil {
			return nil, fmt.Errorf("polling upstream status: %w", err)
		}
		job, err = r.apply(ctx, job, *st)
		if err != nil {
			return nil, err
		}
		raw = st.Status
		if job.Status.Terminal() {
			// The row may have finished concurrently ahead of this observation.
			raw = string(job.Status)
		}
	}

	view := NewStatusView(job, raw)
	if err := r.cache.SetJobStatus(ctx, job.ID, view.Status, StatusTTL); err != nil {
		r.logger.Warn("failed to cache job status", "job_id", job.ID, "error", err)
	}
	return view, nil
}

// ApplyCallback applies a status pushed by upstream for the job holding token.
func (r *Registry) ApplyCallback(ctx context.Context, token string, st upstream.Status) (*models.AnalysisJob, error) {
	job, err := r.store.GetAnalysisJobByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: token %s", ErrJobNotFound, token)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job by token: %w", err)
	}
	return r.apply(ctx, job, st)
}

// SyncActive polls upstream for up to limit active jobs, oldest update first,
// and returns how many observations were applied. Per-job upstream failures
// are logged and skipped; the next run retries them.
func (r *Registry) SyncActive(ctx context.Context, limit int) (int, error) {
	active, err := r.store.ListActiveAnalysisJobs(ctx, limit)
	if err != nil {
		r.metrics.JobSyncRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("listing active jobs: %w", err)
	}
	r.metrics.JobsSynced.Observe(float64(len(active)))

	synced := 0
	for _, job := range active {
		if err := ctx.Err(); err != nil {
			r.metrics.JobSyncRuns.WithLabelValues("error").Inc()
			return synced, err
		}
		if job.JobToken == nil {
			continue
		}
		st, err := r.upstream.AnalysisStatus(ctx, job.SiteID.String(), *job.JobToken)
		if err != nil {
			r.logger.Warn("job sync: upstream status failed",
				"job_id", job.ID,
				"outcome", upstream.Outcome(err),
				"error", err,
			)
			continue
		}
		if _, err := r.apply(ctx, job, *st); err != nil {
			r.logger.Warn("job sync: applying status failed", "job_id", job.ID, "error", err)
			continue
		}
		synced++
	}

	r.metrics.JobSyncRuns.WithLabelValues("success").Inc()
	return synced, nil
}

// PurgeTerminal deletes completed and failed jobs that finished more than
// retention ago.
func (r *Registry) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := r.clock.Now().Add(-retention)
	n, err := r.store.PurgeTerminalAnalysisJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging terminal jobs: %w", err)
	}
	r.metrics.JobsPurged.Add(float64(n))
	if n > 0 {
		r.logger.Info("purged terminal analysis jobs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// applyAttempts bounds re-application after a concurrent move. A job can
// advance at most twice (queued, running, terminal) under a caller.
const applyAttempts = 3

// apply moves job according to one upstream observation. When a concurrent
// poll, callback or sync has already moved the row, the observation is
// re-applied to the reloaded job.
func (r *Registry) apply(ctx context.Context, job *models.AnalysisJob, st upstream.Status) (*models.AnalysisJob, error) {
	for attempt := 1; ; attempt++ {
		updated, err := r.applyOnce(ctx, job, st)
		if !errors.Is(err, store.ErrInvalidTransition) || attempt == applyAttempts {
			return updated, err
		}

		fresh, gerr := r.store.GetAnalysisJob(ctx, job.ID, job.TenantID)
		if gerr != nil {
			return nil, fmt.Errorf("reloading job %s: %w", job.ID, gerr)
		}
		r.logger.Debug("job moved concurrently, reapplying observation",
			"job_id", job.ID,
			"stale_state", job.Status,
			"state", fresh.Status,
			"upstream_status", st.Status,
		)
		job = fresh
	}
}

// applyOnce applies st to job as loaded. Observations for a job that is
// already terminal are ignored.
func (r *Registry) applyOnce(ctx context.Context, job *models.AnalysisJob, st upstream.Status) (*models.AnalysisJob, error) {
	if job.Status.Terminal() {
		r.logger.Debug("ignoring observation for terminal job",
			"job_id", job.ID,
			"state", job.Status,
			"upstream_status", st.Status,
		)
		return job, nil
	}

	switch classify(st.Status) {
	case observeNothing:
		return job, nil

	case observeRunning:
		return r.transition(ctx, job, models.JobStateRunning, store.WithProgress(st.Progress, st.CurrentNode))

	case observeCompleted:
		if job.Status == models.JobStateQueued {
			var err error
			job, err = r.transition(ctx, job, models.JobStateRunning, store.WithProgress(st.Progress, st.CurrentNode))
			if err != nil {
				return nil, err
			}
		}
		return r.transition(ctx, job, models.JobStateCompleted, store.WithProgress(100, st.CurrentNode))

	case observeFailed:
		code, msg := CodeUpstreamFailed, "upstream reported "+st.Status
		if st.Error != nil {
			if st.Error.Code != "" {
				code = st.Error.Code
			}
			if st.Error.Message != "" {
				msg = st.Error.Message
			}
		}
		return r.transition(ctx, job, models.JobStateFailed, store.WithFailure(code, msg))

	default:
		r.metrics.UnknownStatuses.Inc()
		r.logger.Warn("unrecognized upstream job status, leaving job unchanged",
			"job_id", job.ID,
			"upstream_status", st.Status,
		)
		return job, nil
	}
}

// transition persists a state change, then refreshes the cache and publishes
// an event when the state actually moved.
func (r *Registry) transition(ctx context.Context, job *models.AnalysisJob, to models.JobState, opts ...store.JobUpdateOption) (*models.AnalysisJob, error) {
	opts = append(opts, store.WithTimestamp(r.clock.Now()))
	updated, err := r.store.UpdateAnalysisJob(ctx, job.ID, to, opts...)
	if err != nil {
		return nil, fmt.Errorf("updating job %s to %s: %w", job.ID, to, err)
	}

	if updated.Status != job.Status {
		r.metrics.JobTransitions.WithLabelValues(string(updated.Status)).Inc()
		r.cacheStatus(ctx, updated)
		r.publish(ctx, events.TypeJobTransitioned, updated)
		r.logger.Info("analysis job transitioned",
			"job_id", updated.ID,
			"from", job.Status,
			"to", updated.Status,
			"progress", updated.Progress,
		)
	}
	return updated, nil
}

func (r *Registry) cacheStatus(ctx context.Context, job *models.AnalysisJob) {
	if err := r.cache.SetJobStatus(ctx, job.ID, Coarsen(string(job.Status)), StatusTTL); err != nil {
		r.logger.Warn("failed to cache job status", "job_id", job.ID, "error", err)
	}
}

func (r *Registry) publish(ctx context.Context, eventType string, job *models.AnalysisJob) {
	err := r.events.Publish(ctx, events.NewJobEvent(eventType, job, r.clock.Now()))
	if err != nil {
		r.metrics.EventsPublished.WithLabelValues("error").Inc()
		r.logger.Warn("failed to publish job event", "type", eventType, "job_id", job.ID, "error", err)
		return
	}
	r.metrics.EventsPublished.WithLabelValues("success").Inc()
}

func (r *Registry) getSite(ctx context.Context, tenantID, siteID uuid.UUID) (*models.Site, error) {
	site, err := r.store.GetSite(ctx, siteID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}
	return site, nil
}
