package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/events"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// --- store ---

type mockStore struct {
	mu          sync.Mutex
	sites       map[uuid.UUID]*models.Site
	jobs        map[uuid.UUID]*models.AnalysisJob
	order       []uuid.UUID
	updateErr   error
	purgeCutoff time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		sites: make(map[uuid.UUID]*models.Site),
		jobs:  make(map[uuid.UUID]*models.AnalysisJob),
	}
}

func (s *mockStore) Ping(_ context.Context) error                                    { return nil }
func (s *mockStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error)      { return nil, nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (s *mockStore) CreateSite(_ context.Context, site *models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
	return nil
}

func (s *mockStore) GetSite(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok || site.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return site, nil
}

func (s *mockStore) CreateAnalysisJob(_ context.Context, job *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.SiteID == job.SiteID && j.Status.Active() {
			return store.ErrDuplicateKey
		}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.order = append(s.order, job.ID)
	return nil
}

func (s *mockStore) GetAnalysisJob(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *mockStore) GetAnalysisJobByToken(_ context.Context, token string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.JobToken != nil && *j.JobToken == token {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) GetLatestAnalysisJobForSite(_ context.Context, siteID uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if j != nil && j.SiteID == siteID && j.TenantID == tenantID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) ListActiveAnalysisJobs(_ context.Context, limit int) ([]*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AnalysisJob
	for _, id := range s.order {
		j := s.jobs[id]
		if j != nil && j.Status.Active() && j.JobToken != nil && len(out) < limit {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAnalysisJob(_ context.Context, id uuid.UUID, status models.JobState, opts ...store.JobUpdateOption) (*models.AnalysisJob, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sameActive := status == j.Status && j.Status.Active()
	if !sameActive && !models.CanTransition(j.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}

	u := store.ResolveJobUpdate(opts...)
	now := time.Now().UTC()
	if u.Now != nil {
		now = u.Now.UTC()
	}
	if status == models.JobStateRunning && j.Status == models.JobStateQueued && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() {
		j.CompletedAt = &now
	}
	if status == models.JobStateCompleted {
		j.Progress = 100
	} else if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = *u.Progress
	}
	if u.CurrentNode != nil {
		j.CurrentNode = u.CurrentNode
	}
	if status == models.JobStateFailed && u.ErrorCode != nil {
		j.ErrorCode, j.ErrorMessage = u.ErrorCode, u.ErrorMessage
	}
	if u.JobToken != nil {
		j.JobToken = u.JobToken
	}
	if u.EstimatedCompletionAt != nil {
		j.EstimatedCompletionAt = u.EstimatedCompletionAt
	}
	j.Status = status
	j.UpdatedAt = now

	cp := *j
	return &cp, nil
}

func (s *mockStore) PurgeTerminalAnalysisJobs(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeCutoff = olderThan
	var n int64
	for id, j := range s.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(olderThan) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *mockStore) countJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// --- cache ---

type mockCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.CoarseStatus
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[uuid.UUID]models.CoarseStatus)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)           { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                        { return nil }
func (c *mockCache) Ping(_ context.Context) error                                    { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status models.CoarseStatus, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (models.CoarseStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

// --- upstream ---

type mockUpstream struct {
	startFunc  func(ctx context.Context, req upstream.StartRequest) (*upstream.StartResponse, error)
	statusFunc func(ctx context.Context, siteID, jobID string) (*upstream.Status, error)
	scoresFunc func(ctx context.Context, siteID, hazardType, term string) (*upstream.RiskScoresResponse, error)
	totalFunc  func(ctx context.Context, siteID string) (*upstream.Total, error)

	startCalls int
}

func (u *mockUpstream) StartAnalysis(ctx context.Context, req upstream.StartRequest) (*upstream.StartResponse, error) {
	u.startCalls++
	if u.startFunc != nil {
		return u.startFunc(ctx, req)
	}
	return &upstream.StartResponse{JobID: "up-" + req.Site.ID, Status: "queued"}, nil
}

func (u *mockUpstream) AnalysisStatus(ctx context.Context, siteID, jobID string) (*upstream.Status, error) {
	if u.statusFunc != nil {
		return u.statusFunc(ctx, siteID, jobID)
	}
	return &upstream.Status{Status: "queued"}, nil
}

func (u *mockUpstream) PhysicalRiskScores(ctx context.Context, siteID, hazardType, term string) (*upstream.RiskScoresResponse, error) {
	if u.scoresFunc != nil {
		return u.scoresFunc(ctx, siteID, hazardType, term)
	}
	return &upstream.RiskScoresResponse{}, nil
}

func (u *mockUpstream) FinancialImpacts(_ context.Context, _, _, _ string) (*upstream.FinancialImpactResponse, error) {
	return &upstream.FinancialImpactResponse{}, nil
}

func (u *mockUpstream) AnalysisTotal(ctx context.Context, siteID string) (*upstream.Total, error) {
	if u.totalFunc != nil {
		return u.totalFunc(ctx, siteID)
	}
	return &upstream.Total{}, nil
}

func (u *mockUpstream) StartBatch(_ context.Context, _ upstream.BatchRequest) (*upstream.BatchStarted, error) {
	return nil, upstream.ErrUpstreamUnreachable
}

func (u *mockUpstream) BatchProgress(_ context.Context, _ string) (*upstream.BatchProgress, error) {
	return nil, upstream.ErrUpstreamUnreachable
}

func (u *mockUpstream) BatchResult(_ context.Context, _ string) (*upstream.BatchResult, error) {
	return nil, upstream.ErrUpstreamUnreachable
}

func (u *mockUpstream) Ready(_ context.Context) error { return nil }

// --- events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
