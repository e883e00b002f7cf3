// Package handler holds the HTTP handlers of the caller API. Each handler
// depends on a narrow service interface and writes the response envelope.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/climaterisk/internal/api/middleware"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/batch"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/internal/jobs"
	"github.com/kiranshivaraju/climaterisk/internal/scenario"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	status int
	code   string
}

// errorTable maps domain sentinels to their HTTP form. Order matters only
// where one error wraps another.
var errorTable = []struct {
	target error
	apiError
}{
	{hazard.ErrUnknownHazardType, apiError{http.StatusBadRequest, "UNKNOWN_HAZARD_TYPE"}},
	{scenario.ErrUnknownTerm, apiError{http.StatusBadRequest, "UNKNOWN_TERM"}},
	{batch.ErrInvalidRequest, apiError{http.StatusBadRequest, "INVALID_REQUEST"}},
	{jobs.ErrAnalysisAlreadyRunning, apiError{http.StatusConflict, "ANALYSIS_ALREADY_RUNNING"}},
	{jobs.ErrAnalysisInProgress, apiError{http.StatusConflict, "ANALYSIS_IN_PROGRESS"}},
	{jobs.ErrJobNotFound, apiError{http.StatusNotFound, "JOB_NOT_FOUND"}},
	{jobs.ErrSiteNotFound, apiError{http.StatusNotFound, "SITE_NOT_FOUND"}},
	{batch.ErrSiteNotFound, apiError{http.StatusNotFound, "SITE_NOT_FOUND"}},
	{batch.ErrBatchNotFound, apiError{http.StatusNotFound, "BATCH_NOT_FOUND"}},
	{upstream.ErrUpstreamTimeout, apiError{http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"}},
	{upstream.ErrUpstreamInvalidResponse, apiError{http.StatusServiceUnavailable, "UPSTREAM_INVALID_RESPONSE"}},
	{upstream.ErrUpstreamUnreachable, apiError{http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"}},
	// Upstream no longer knows a job or resource it handed out.
	{upstream.ErrUpstreamNotFound, apiError{http.StatusServiceUnavailable, "UPSTREAM_INVALID_RESPONSE"}},
}

// writeError renders err. Unmapped errors are logged and become a 500 with a
// generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			response.Error(w, e.status, e.code, err.Error(), nil)
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}

func badRequest(w http.ResponseWriter, message string, details any) {
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", message, details)
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// validationDetails flattens validator errors into field -> rule.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fieldPath(fe.Namespace())] = rule
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tenantOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
	}
	return id, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, param+" must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
