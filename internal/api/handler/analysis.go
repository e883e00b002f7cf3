package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/jobs"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// AnalysisService starts analysis runs and reports on them.
type AnalysisService interface {
	StartAnalysis(ctx context.Context, tenantID, siteID uuid.UUID, opts jobs.StartOptions) (*models.AnalysisJob, error)
	PollStatus(ctx context.Context, tenantID, jobID uuid.UUID) (*jobs.StatusView, error)
	ApplyCallback(ctx context.Context, token string, st upstream.Status) (*models.AnalysisJob, error)
}

type startAnalysisRequest struct {
	HazardTypes []string                  `json:"hazard_types" validate:"omitempty,max=20,dive,required"`
	Priority    string                    `json:"priority"     validate:"omitempty,oneof=low normal high LOW NORMAL HIGH"`
	Options     *upstream.AnalysisOptions `json:"options"`
}

// NewStartAnalysisHandler serves POST /api/v1/sites/{siteID}/analysis. The
// body is optional; without one the hazard filter is empty and priority is
// normal.
func NewStartAnalysisHandler(svc AnalysisService, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}
		siteID, ok := pathUUID(w, r, "siteID")
		if !ok {
			return
		}

		var req startAnalysisRequest
		if err := decodeBody(r, &req, true); err != nil {
			badRequest(w, "Invalid JSON body", nil)
			return
		}
		if err := v.Struct(&req); err != nil {
			badRequest(w, "Validation failed", validationDetails(err))
			return
		}

		job, err := svc.StartAnalysis(r.Context(), tenantID, siteID, jobs.StartOptions{
			HazardTypes: req.HazardTypes,
			Priority:    req.Priority,
			Options:     req.Options,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, jobs.NewStatusView(job, string(job.Status)))
	}
}

// NewJobStatusHandler serves GET /api/v1/analysis/jobs/{jobID}.
func NewJobStatusHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}
		jobID, ok := pathUUID(w, r, "jobID")
		if !ok {
			return
		}

		view, err := svc.PollStatus(r.Context(), tenantID, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, view)
	}
}

// callbackRequest is a status pushed by the analysis service. JobID is the
// upstream job token, not our job ID.
type callbackRequest struct {
	JobID       string                `json:"job_id"       validate:"required"`
	Status      string                `json:"status"       validate:"required"`
	Progress    int                   `json:"progress"     validate:"gte=0,lte=100"`
	CurrentNode string                `json:"current_node"`
	Error       *upstream.StatusError `json:"error"`
}

// NewCallbackHandler serves POST /api/v1/analysis/callbacks.
func NewCallbackHandler(svc AnalysisService, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callbackRequest
		if err := decodeBody(r, &req, false); err != nil {
			badRequest(w, "Invalid JSON body", nil)
			return
		}
		if err := v.Struct(&req); err != nil {
			badRequest(w, "Validation failed", validationDetails(err))
			return
		}

		job, err := svc.ApplyCallback(r.Context(), req.JobID, upstream.Status{
			Status:      req.Status,
			Progress:    req.Progress,
			CurrentNode: req.CurrentNode,
			Error:       req.Error,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, jobs.NewStatusView(job, req.Status))
	}
}
