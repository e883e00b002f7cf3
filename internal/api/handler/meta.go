package handler

import (
	"net/http"

	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// NewHazardTypesHandler serves GET /api/v1/meta/hazard-types.
func NewHazardTypesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, hazard.Catalog())
	}
}

type siteTypeResult struct {
	Query    string          `json:"query"`
	SiteType models.SiteType `json:"site_type"`
}

// NewSiteTypeHandler serves GET /api/v1/meta/site-types?q=. Unrecognized
// text classifies to the default bucket rather than failing.
func NewSiteTypeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		response.JSON(w, siteTypeResult{
			Query:    q,
			SiteType: hazard.ClassifySiteType(q, nil),
		})
	}
}
