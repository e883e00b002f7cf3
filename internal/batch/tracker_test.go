package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type stubSites struct {
	sites map[uuid.UUID]*models.Site
}

func (s *stubSites) GetSite(_ context.Context, id uuid.UUID, _ uuid.UUID) (*models.Site, error) {
	if site, ok := s.sites[id]; ok {
		return site, nil
	}
	return nil, store.ErrNotFound
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }
func (c *memCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ models.CoarseStatus, _ time.Duration) error {
	return nil
}
func (c *memCache) GetJobStatus(_ context.Context, _ uuid.UUID) (models.CoarseStatus, bool, error) {
	return "", false, nil
}
func (c *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

// fakeBatchService simulates a three-candidate batch that advances one
// candidate per progress poll.
type fakeBatchService struct {
	mu        sync.Mutex
	id        uuid.UUID
	processed int
	lastReq   upstream.BatchRequest
	calls     map[string]int
	percent   int
	rawStatus string
}

func newFakeBatchService() *fakeBatchService {
	return &fakeBatchService{id: uuid.New(), calls: make(map[string]int), percent: -1}
}

func (s *fakeBatchService) status() string {
	if s.rawStatus != "" {
		return s.rawStatus
	}
	switch s.processed {
	case 0:
		return "queued"
	case 3:
		return "completed"
	default:
		return "running"
	}
}

func (s *fakeBatchService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recommendation/batch", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&s.lastReq); err != nil {
			t.Errorf("decoding batch request: %v", err)
		}
		writeJSON(w, map[string]any{
			"batchJobId":         s.id,
			"jobType":            "site_recommendation",
			"jobName":            s.lastReq.JobName,
			"status":             "queued",
			"startedAt":          "2025-12-09T10:00:00",
			"totalCandidates":    len(s.lastReq.Candidates),
			"progressPercentage": 0,
		})
	})
	mux.HandleFunc("GET /api/recommendation/batch/{id}/progress", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.PathValue("id") != s.id.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.calls["progress"]++
		percent := s.processed * 100 / 3
		if s.percent >= 0 {
			percent = s.percent
		}
		writeJSON(w, map[string]any{
			"batchJobId":         s.id,
			"status":             s.status(),
			"processedItems":     s.processed,
			"totalItems":         3,
			"progressPercentage": percent,
			"startedAt":          "2025-12-09T10:00:00",
			"metadata":           map[string]any{"region": "seoul"},
		})
		if s.processed < 3 {
			s.processed++
		}
	})
	mux.HandleFunc("GET /api/recommendation/batch/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.PathValue("id") != s.id.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.calls["result"]++
		body := map[string]any{
			"batchJobId":      s.id,
			"jobName":         "seoul-candidates",
			"status":          s.status(),
			"totalCandidates": 3,
			"startedAt":       "2025-12-09T10:00:00",
		}
		if s.status() == "completed" {
			body["completedAt"] = "2025-12-09T10:04:30"
			body["recommendations"] = []map[string]any{
				{"name": "Gangnam", "latitude": 37.5, "longitude": 127.03, "rank": 1, "overallRiskScore": 21.5},
				{"name": "Mapo", "latitude": 37.55, "longitude": 126.9, "rank": 2, "overallRiskScore": 34.0},
				{"name": "Songpa", "latitude": 37.51, "longitude": 127.1, "rank": 3, "overallRiskScore": 48.2},
			}
		}
		writeJSON(w, body)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// --- helpers ---

type testEnv struct {
	tracker *Tracker
	svc     *fakeBatchService
	cache   *memCache
	sites   *stubSites
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc := newFakeBatchService()
	ts := httptest.NewServer(svc.handler(t))
	t.Cleanup(ts.Close)

	env := &testEnv{
		svc:     svc,
		cache:   newMemCache(),
		sites:   &stubSites{sites: make(map[uuid.UUID]*models.Site)},
		metrics: observability.NewMetricsForTesting(),
	}
	env.tracker = NewTracker(env.sites, upstream.NewHTTPClient(ts.URL, "", 5*time.Second, 0),
		env.cache, validator.New(), env.metrics, nil)
	return env
}

func validRequest() Request {
	return Request{
		JobName:  "seoul-candidates",
		SiteType: "물류센터",
		Candidates: []Candidate{
			{Name: "Gangnam", Latitude: 37.5, Longitude: 127.03},
			{Name: "Mapo", Latitude: 37.55, Longitude: 126.9},
			{Name: "Songpa", Latitude: 37.51, Longitude: 127.1},
		},
		Criteria: &Criteria{
			HazardWeights:   map[string]float64{"extreme_heat": 0.6, "River Flood": 0.4},
			ExcludedHazards: []string{"typhoon"},
		},
	}
}

// --- tests ---

func TestStart_TranslatesRequest(t *testing.T) {
	env := newTestEnv(t)
	tenant := uuid.New()

	job, err := env.tracker.Start(context.Background(), tenant, validRequest())
	require.NoError(t, err)

	assert.Equal(t, env.svc.id, job.ID)
	assert.Equal(t, models.BatchJobSiteRecommendation, job.JobType)
	assert.Equal(t, models.BatchStatusQueued, job.Status)
	assert.Equal(t, 3, job.TotalItems)

	req := env.svc.lastReq
	assert.Equal(t, "warehouse", req.SiteType)
	assert.Len(t, req.Candidates, 3)
	require.NotNil(t, req.Criteria)
	assert.Equal(t, map[string]float64{"폭염": 0.6, "내륙침수": 0.4}, req.Criteria.HazardWeights)
	assert.Equal(t, []string{"태풍"}, req.Criteria.ExcludedHazards)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.BatchesStarted))
}

func TestStart_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing job name", func(r *Request) { r.JobName = "" }},
		{"no candidates", func(r *Request) { r.Candidates = nil }},
		{"candidate without name", func(r *Request) { r.Candidates[0].Name = "" }},
		{"latitude out of range", func(r *Request) { r.Candidates[1].Latitude = 123 }},
		{"negative weight", func(r *Request) { r.Criteria.HazardWeights["drought"] = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := env.tracker.Start(context.Background(), uuid.New(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestStart_UnknownHazard(t *testing.T) {
	env := newTestEnv(t)
	req := validRequest()
	req.Criteria.ExcludedHazards = []string{"meteor"}

	_, err := env.tracker.Start(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, hazard.ErrUnknownHazardType)
}

func TestStart_ReferenceSite(t *testing.T) {
	env := newTestEnv(t)
	req := validRequest()
	missing := uuid.New()
	req.ReferenceSiteID = &missing

	_, err := env.tracker.Start(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, ErrSiteNotFound)

	known := uuid.New()
	env.sites.sites[known] = &models.Site{ID: known}
	req.ReferenceSiteID = &known
	_, err = env.tracker.Start(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	require.NotNil(t, env.svc.lastReq.ReferenceSiteID)
	assert.Equal(t, known, *env.svc.lastReq.ReferenceSiteID)
}

func TestSnapshot_ProgressBounded(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tracker.Start(context.Background(), uuid.New(), validRequest())
	require.NoError(t, err)

	var last *models.BatchProgress
	for i := 0; i < 5; i++ {
		snap, err := env.tracker.Snapshot(context.Background(), env.svc.id)
		require.NoError(t, err)
		assert.LessOrEqual(t, snap.Processed, snap.Total)
		assert.LessOrEqual(t, snap.Total, 3)
		assert.GreaterOrEqual(t, snap.Percent, 0)
		assert.LessOrEqual(t, snap.Percent, 100)
		last = snap
	}
	assert.Equal(t, models.BatchStatusCompleted, last.Status)
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, 100, last.Percent)

	// Terminal snapshots are served from the cache.
	assert.Equal(t, 4, env.svc.calls["progress"])
}

func TestSnapshot_PercentTakenVerbatimAndClamped(t *testing.T) {
	env := newTestEnv(t)

	env.svc.percent = 42
	snap, err := env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, 42, snap.Percent, "not recomputed from processed/total")

	env.svc.percent = 180
	snap, err = env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Percent)

	env.svc.percent = -5
	snap, err = env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Percent)
}

func TestResult_RecommendationsOnlyWhenCompleted(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.tracker.Result(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusQueued, job.Status)
	assert.Nil(t, job.Recommendations)

	env.svc.processed = 3
	job, err = env.tracker.Result(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, job.Status)
	require.Len(t, job.Recommendations, 3)
	for i, rec := range job.Recommendations {
		assert.Equal(t, i+1, rec.Rank)
	}
	assert.Equal(t, "Gangnam", job.Recommendations[0].Name)

	// Completed results are immutable and cached.
	again, err := env.tracker.Result(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, job.Recommendations, again.Recommendations)
	assert.Equal(t, 2, env.svc.calls["result"])
}

func TestResultGeoJSON(t *testing.T) {
	env := newTestEnv(t)
	env.svc.processed = 3

	fc, err := env.tracker.ResultGeoJSON(context.Background(), env.svc.id)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, orb.Point{127.03, 37.5}, first.Geometry)
	assert.Equal(t, 1, first.Properties["rank"])
	assert.Equal(t, "Gangnam", first.Properties["name"])
	assert.Equal(t, 21.5, first.Properties["overall_risk_score"])
	assert.Equal(t, "completed", fc.ExtraMembers["status"])

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	unknown := uuid.New()

	_, err := env.tracker.Snapshot(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = env.tracker.Result(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	_, err = env.tracker.ResultGeoJSON(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestZonelessUpstreamTimestamps(t *testing.T) {
	env := newTestEnv(t)
	startedAt := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)

	job, err := env.tracker.Start(context.Background(), uuid.New(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, startedAt, *job.StartedAt)

	env.svc.processed = 3
	job, err = env.tracker.Result(context.Background(), env.svc.id)
	require.NoError(t, err)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, startedAt, *job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, time.Date(2025, 12, 9, 10, 4, 30, 0, time.UTC), *job.CompletedAt)
}

func TestSnapshot_UnknownStatusStaysRunning(t *testing.T) {
	env := newTestEnv(t)
	env.svc.rawStatus = "PROCESSING"

	snap, err := env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusRunning, snap.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.UnknownStatuses))

	// Non-terminal, so the next snapshot goes upstream again.
	_, err = env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, 2, env.svc.calls["progress"])
}

func TestSnapshot_StatusIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.svc.rawStatus = "CANCELLED"

	snap, err := env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCancelled, snap.Status)
	assert.Zero(t, testutil.ToFloat64(env.metrics.UnknownStatuses))
}

func TestMetadataCarriedToSnapshotAndResult(t *testing.T) {
	env := newTestEnv(t)
	env.svc.processed = 3

	snap, err := env.tracker.Snapshot(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"region": "seoul"}, snap.Metadata)

	job, err := env.tracker.Result(context.Background(), env.svc.id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"region": "seoul"}, job.Metadata)
}
