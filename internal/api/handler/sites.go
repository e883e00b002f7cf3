package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/jobs"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// SiteService registers and reads sites.
type SiteService interface {
	CreateSite(ctx context.Context, tenantID uuid.UUID, in jobs.SiteInput) (*models.Site, error)
	GetSite(ctx context.Context, tenantID, siteID uuid.UUID) (*models.Site, error)
}

type createSiteRequest struct {
	Name         string   `json:"name"          validate:"required,max=200"`
	Latitude     *float64 `json:"latitude"      validate:"required,latitude"`
	Longitude    *float64 `json:"longitude"     validate:"required,longitude"`
	RoadAddress  *string  `json:"road_address"  validate:"omitempty,max=500"`
	JibunAddress *string  `json:"jibun_address" validate:"omitempty,max=500"`
	SiteType     string   `json:"site_type"     validate:"max=200"`
}

// NewCreateSiteHandler serves POST /api/v1/sites.
func NewCreateSiteHandler(svc SiteService, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}

		var req createSiteRequest
		if err := decodeBody(r, &req, false); err != nil {
			badRequest(w, "Invalid JSON body", nil)
			return
		}
		if err := v.Struct(&req); err != nil {
			badRequest(w, "Validation failed", validationDetails(err))
			return
		}

		site, err := svc.CreateSite(r.Context(), tenantID, jobs.SiteInput{
			Name:         req.Name,
			Latitude:     *req.Latitude,
			Longitude:    *req.Longitude,
			RoadAddress:  req.RoadAddress,
			JibunAddress: req.JibunAddress,
			SiteType:     req.SiteType,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, site)
	}
}

// NewGetSiteHandler serves GET /api/v1/sites/{siteID}.
func NewGetSiteHandler(svc SiteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantOf(w, r)
		if !ok {
			return
		}
		siteID, ok := pathUUID(w, r, "siteID")
		if !ok {
			return
		}

		site, err := svc.GetSite(r.Context(), tenantID, siteID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, site)
	}
}
