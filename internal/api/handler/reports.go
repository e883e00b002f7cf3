package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/jobs"
	"github.com/kiranshivaraju/climaterisk/internal/scenario"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// ReportService reads analysis results for a site.
type ReportService interface {
	RiskScores(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string, term models.Term) (*jobs.ScoreReport, error)
	FinancialImpact(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string, term models.Term) (*jobs.ScoreReport, error)
	HazardSummary(ctx context.Context, tenantID, siteID uuid.UUID) (*jobs.HazardSummary, error)
}

type scoreReader func(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string, term models.Term) (*jobs.ScoreReport, error)

// NewRiskScoresHandler serves GET /api/v1/sites/{siteID}/risk-scores.
func NewRiskScoresHandler(svc ReportService) http.HandlerFunc {
	return scoreHandler(svc.RiskScores)
}

// NewAALHandler serves GET /api/v1/sites/{siteID}/aal.
func NewAALHandler(svc ReportService) http.HandlerFunc {
	return scoreHandler(svc.FinancialImpact)
}

// scoreHandler parses hazardType and term, rejecting an unknown term before
// any upstream call.
func scoreHandler(read scoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}
		siteID, ok := pathUUID(w, r, "siteID")
		if !ok {
			return
		}

		q := r.URL.Query()
		term, err := scenario.ParseTerm(q.Get("term"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		report, err := read(r.Context(), tenantID, siteID, q.Get("hazardType"), term)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

// NewHazardSummaryHandler serves GET /api/v1/sites/{siteID}/hazard-summary.
func NewHazardSummaryHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}
		siteID, ok := pathUUID(w, r, "siteID")
		if !ok {
			return
		}

		summary, err := svc.HazardSummary(r.Context(), tenantID, siteID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, summary)
	}
}
