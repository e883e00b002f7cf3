package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalysisService is an in-memory upstream whose job status is set by the
// test.
type fakeAnalysisService struct {
	mu     sync.Mutex
	status string
	token  string
}

func (s *fakeAnalysisService) setStatus(st string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *fakeAnalysisService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analysis/start", func(w http.ResponseWriter, r *http.Request) {
		var req upstream.StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding start request: %v", err)
		}
		s.mu.Lock()
		s.status = "queued"
		s.token = "job-" + req.Site.ID
		token := s.token
		s.mu.Unlock()
		writeTestJSON(w, map[string]any{"job_id": token, "status": "queued"})
	})
	mux.HandleFunc("GET /api/analysis/status", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Query().Get("jobId") != s.token {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		progress := 50
		if s.status == "completed" {
			progress = 100
		}
		writeTestJSON(w, map[string]any{"status": s.status, "progress": progress, "current_node": "hazard"})
	})
	mux.HandleFunc("GET /api/analysis/physical-risk-scores", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") != "mid" {
			t.Errorf("expected term=mid, got %q", r.URL.Query().Get("term"))
		}
		var scenarios []map[string]any
		for _, sc := range []string{"SSP1-2.6", "SSP2-4.5", "SSP3-7.0", "SSP5-8.5"} {
			scenarios = append(scenarios, map[string]any{
				"scenario": sc,
				"riskType": "태풍",
				"midTerm":  map[string]float64{"point1": 1, "point2": 2, "point3": 3, "point4": 4, "point5": 5},
			})
		}
		writeTestJSON(w, map[string]any{"scenarios": scenarios, "strategy": "retrofit"})
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestEndToEnd_StartPollAndReadScores(t *testing.T) {
	svc := &fakeAnalysisService{}
	ts := httptest.NewServer(svc.handler(t))
	defer ts.Close()

	st := newMockStore()
	client := upstream.WithMetrics(upstream.NewHTTPClient(ts.URL, "test-key", 5*time.Second, 0), observability.NewMetricsForTesting())
	reg := NewRegistry(st, client, newMockCache(), observability.NewMetricsForTesting(),
		WithClock(clockwork.NewFakeClock()))
	ctx := context.Background()

	site, err := reg.CreateSite(ctx, testTenant, SiteInput{Name: "Incheon plant", Latitude: 37.45, Longitude: 126.7, SiteType: "공장"})
	require.NoError(t, err)
	assert.Equal(t, models.SiteTypeFactory, site.SiteType)

	job, err := reg.StartAnalysis(ctx, testTenant, site.ID, StartOptions{HazardTypes: []string{"typhoon"}})
	require.NoError(t, err)

	view, err := reg.PollStatus(ctx, testTenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CoarseInProgress, view.Status)

	_, err = reg.RiskScores(ctx, testTenant, site.ID, "typhoon", models.TermMid)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	svc.setStatus("running")
	view, err = reg.PollStatus(ctx, testTenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CoarseInProgress, view.Status)
	assert.Equal(t, models.JobStateRunning, view.State)
	assert.Equal(t, 50, view.Progress)

	svc.setStatus("completed")
	view, err = reg.PollStatus(ctx, testTenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CoarseDone, view.Status)
	assert.Equal(t, models.JobStateCompleted, view.State)

	report, err := reg.RiskScores(ctx, testTenant, site.ID, "typhoon", models.TermMid)
	require.NoError(t, err)
	assert.Equal(t, "태풍", report.HazardType)
	assert.Equal(t, "retrofit", report.Strategy)
	for _, s := range models.Scenarios {
		assert.Len(t, report.Slot(s), 5, "slot %s", s)
	}

	// A fresh start is accepted once the previous job is terminal.
	_, err = reg.StartAnalysis(ctx, testTenant, site.ID, StartOptions{})
	require.NoError(t, err)
}
