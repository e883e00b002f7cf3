package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/climaterisk/internal/observability"
)

// InstrumentedClient records call counts and latency for every upstream call.
type InstrumentedClient struct {
	next    Client
	metrics *observability.Metrics
}

// WithMetrics wraps c so that every call is recorded in m.
func WithMetrics(c Client, m *observability.Metrics) *InstrumentedClient {
	return &InstrumentedClient{next: c, metrics: m}
}

func (c *InstrumentedClient) observe(op string, start time.Time, err error) {
	c.metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamRequests.WithLabelValues(op, Outcome(err)).Inc()
}

// Outcome names the metric outcome label for an upstream call result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamInvalidResponse):
		return "invalid"
	default:
		return "unreachable"
	}
}

func (c *InstrumentedClient) StartAnalysis(ctx context.Context, req StartRequest) (resp *StartResponse, err error) {
	defer func(start time.Time) { c.observe("start_analysis", start, err) }(time.Now())
	return c.next.StartAnalysis(ctx, req)
}

func (c *InstrumentedClient) AnalysisStatus(ctx context.Context, siteID, jobID string) (st *Status, err error) {
	defer func(start time.Time) { c.observe("analysis_status", start, err) }(time.Now())
	return c.next.AnalysisStatus(ctx, siteID, jobID)
}

func (c *InstrumentedClient) PhysicalRiskScores(ctx context.Context, siteID, hazardType, term string) (resp *RiskScoresResponse, err error) {
	defer func(start time.Time) { c.observe("physical_risk_scores", start, err) }(time.Now())
	return c.next.PhysicalRiskScores(ctx, siteID, hazardType, term)
}

func (c *InstrumentedClient) FinancialImpacts(ctx context.Context, siteID, hazardType, term string) (resp *FinancialImpactResponse, err error) {
	defer func(start time.Time) { c.observe("financial_impacts", start, err) }(time.Now())
	return c.next.FinancialImpacts(ctx, siteID, hazardType, term)
}

func (c *InstrumentedClient) AnalysisTotal(ctx context.Context, siteID string) (total *Total, err error) {
	defer func(start time.Time) { c.observe("analysis_total", start, err) }(time.Now())
	return c.next.AnalysisTotal(ctx, siteID)
}

func (c *InstrumentedClient) StartBatch(ctx context.Context, req BatchRequest) (resp *BatchStarted, err error) {
	defer func(start time.Time) { c.observe("start_batch", start, err) }(time.Now())
	return c.next.StartBatch(ctx, req)
}

func (c *InstrumentedClient) BatchProgress(ctx context.Context, batchID string) (resp *BatchProgress, err error) {
	defer func(start time.Time) { c.observe("batch_progress", start, err) }(time.Now())
	return c.next.BatchProgress(ctx, batchID)
}

func (c *InstrumentedClient) BatchResult(ctx context.Context, batchID string) (resp *BatchResult, err error) {
	defer func(start time.Time) { c.observe("batch_result", start, err) }(time.Now())
	return c.next.BatchResult(ctx, batchID)
}

func (c *InstrumentedClient) Ready(ctx context.Context) (err error) {
	defer func(start time.Time) { c.observe("ready", start, err) }(time.Now())
	return c.next.Ready(ctx)
}

var _ Client = (*InstrumentedClient)(nil)
