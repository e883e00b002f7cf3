package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/batch"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	"github.com/paulmach/orb/geojson"
)

// BatchService runs recommendation batches upstream.
type BatchService interface {
	Start(ctx context.Context, tenantID uuid.UUID, req batch.Request) (*models.BatchJob, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*models.BatchProgress, error)
	Result(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
	ResultGeoJSON(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error)
}

// NewStartBatchHandler serves POST /api/v1/recommendations/batches.
// The tracker validates the request.
func NewStartBatchHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}

		var req batch.Request
		if err := decodeBody(r, &req, false); err != nil {
			badRequest(w, "Invalid JSON body", nil)
			return
		}

		job, err := svc.Start(r.Context(), tenantID, req)
		if err != nil {
			if details := validationDetails(err); details != nil {
				badRequest(w, "Validation failed", details)
				return
			}
			writeError(w, r, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewBatchProgressHandler serves GET .../batches/{batchID}/progress.
func NewBatchProgressHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "batchID")
		if !ok {
			return
		}
		progress, err := svc.Snapshot(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, progress)
	}
}

// NewBatchResultHandler serves GET .../batches/{batchID}/result.
func NewBatchResultHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "batchID")
		if !ok {
			return
		}
		result, err := svc.Result(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, result)
	}
}

// NewBatchGeoJSONHandler serves GET .../batches/{batchID}/result.geojson as a
// bare FeatureCollection.
func NewBatchGeoJSONHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "batchID")
		if !ok {
			return
		}
		fc, err := svc.ResultGeoJSON(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.GeoJSON(w, fc)
	}
}
