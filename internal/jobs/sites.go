package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// SiteInput is a site registration. SiteType is free text and is classified
// into a canonical bucket.
type SiteInput struct {
	Name         string
	Latitude     float64
	Longitude    float64
	RoadAddress  *string
	JibunAddress *string
	SiteType     string
}

// CreateSite registers a site for the tenant.
func (r *Registry) CreateSite(ctx context.Context, tenantID uuid.UUID, in SiteInput) (*models.Site, error) {
	now := r.clock.Now().UTC()
	site := &models.Site{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         in.Name,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		RoadAddress:  in.RoadAddress,
		JibunAddress: in.JibunAddress,
		SiteType:     hazard.ClassifySiteType(in.SiteType, r.logger),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.CreateSite(ctx, site); err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}
	return site, nil
}

// GetSite loads a site, returning ErrSiteNotFound when it does not exist for
// the tenant.
func (r *Registry) GetSite(ctx context.Context, tenantID, siteID uuid.UUID) (*models.Site, error) {
	return r.getSite(ctx, tenantID, siteID)
}
