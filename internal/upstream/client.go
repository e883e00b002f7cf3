// Package upstream is the HTTP client for the climate analysis service that
// runs risk computations and site recommendation batches.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxResponseBytes caps how much of a response body is read.
const DefaultMaxResponseBytes int64 = 16 << 20

// Sentinel errors for upstream failures.
var (
	ErrUpstreamUnreachable     = errors.New("upstream unreachable")
	ErrUpstreamTimeout         = errors.New("upstream timeout")
	ErrUpstreamInvalidResponse = errors.New("upstream invalid response")
	ErrUpstreamNotFound        = errors.New("upstream resource not found")
)

// Client is the interface for the upstream analysis service.
type Client interface {
	StartAnalysis(ctx context.Context, req StartRequest) (*StartResponse, error)
	AnalysisStatus(ctx context.Context, siteID, jobID string) (*Status, error)
	PhysicalRiskScores(ctx context.Context, siteID, hazardType, term string) (*RiskScoresResponse, error)
	FinancialImpacts(ctx context.Context, siteID, hazardType, term string) (*FinancialImpactResponse, error)
	AnalysisTotal(ctx context.Context, siteID string) (*Total, error)
	StartBatch(ctx context.Context, req BatchRequest) (*BatchStarted, error)
	BatchProgress(ctx context.Context, batchID string) (*BatchProgress, error)
	BatchResult(ctx context.Context, batchID string) (*BatchResult, error)
	Ready(ctx context.Context) error
}

// HTTPClient implements Client over the upstream JSON API.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	maxBytes int64
	client   *http.Client
}

// NewHTTPClient creates a new upstream client. maxBytes <= 0 selects
// DefaultMaxResponseBytes.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, maxBytes int64) *HTTPClient {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) StartAnalysis(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/analysis/start", nil, req, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("%w: start response has no job_id", ErrUpstreamInvalidResponse)
	}
	return &out, nil
}

func (c *HTTPClient) AnalysisStatus(ctx context.Context, siteID, jobID string) (*Status, error) {
	params := url.Values{"siteId": {siteID}, "jobId": {jobID}}
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/analysis/status", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PhysicalRiskScores(ctx context.Context, siteID, hazardType, term string) (*RiskScoresResponse, error) {
	var out RiskScoresResponse
	if err := c.do(ctx, http.MethodGet, "/api/analysis/physical-risk-scores", scoreParams(siteID, hazardType, term), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FinancialImpacts(ctx context.Context, siteID, hazardType, term string) (*FinancialImpactResponse, error) {
	var out FinancialImpactResponse
	if err := c.do(ctx, http.MethodGet, "/api/analysis/financial-impacts", scoreParams(siteID, hazardType, term), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) AnalysisTotal(ctx context.Context, siteID string) (*Total, error) {
	var out Total
	if err := c.do(ctx, http.MethodGet, "/api/analysis/total", url.Values{"siteId": {siteID}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) StartBatch(ctx context.Context, req BatchRequest) (*BatchStarted, error) {
	var out BatchStarted
	if err := c.do(ctx, http.MethodPost, "/api/recommendation/batch", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) BatchProgress(ctx context.Context, batchID string) (*BatchProgress, error) {
	var out BatchProgress
	path := fmt.Sprintf("/api/recommendation/batch/%s/progress", url.PathEscape(batchID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) BatchResult(ctx context.Context, batchID string) (*BatchResult, error) {
	var out BatchResult
	path := fmt.Sprintf("/api/recommendation/batch/%s/result", url.PathEscape(batchID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream not ready (status %d)", ErrUpstreamUnreachable, resp.StatusCode)
	}
	return nil
}

// do sends one JSON request and decodes the response into out. The body is
// read through a limit one byte past maxBytes so an oversized payload is
// detected rather than silently truncated.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return classifyError(err)
	}
	if int64(len(data)) > c.maxBytes {
		return fmt.Errorf("%w: %s %s response exceeds %d bytes", ErrUpstreamInvalidResponse, method, path, c.maxBytes)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrUpstreamNotFound, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s status %d", ErrUpstreamUnreachable, method, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s status %d", ErrUpstreamInvalidResponse, method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstreamInvalidResponse, path, err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func scoreParams(siteID, hazardType, term string) url.Values {
	params := url.Values{"siteId": {siteID}}
	if hazardType != "" {
		params.Set("hazardType", hazardType)
	}
	if term != "" {
		params.Set("term", term)
	}
	return params
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
