package models

import (
	"time"

	"github.com/google/uuid"
)

// SiteType is the canonical bucket a free-text industry string is classified into.
type SiteType string

const (
	SiteTypeDataCenter SiteType = "data_center"
	SiteTypeFactory    SiteType = "factory"
	SiteTypeOffice     SiteType = "office"
	SiteTypeWarehouse  SiteType = "warehouse"
	SiteTypeRetail     SiteType = "retail"
)

// Site is a physical location registered by a tenant for risk analysis.
type Site struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	TenantID     uuid.UUID `db:"tenant_id"     json:"tenant_id"`
	Name         string    `db:"name"          json:"name"`
	Latitude     float64   `db:"latitude"      json:"latitude"`
	Longitude    float64   `db:"longitude"     json:"longitude"`
	RoadAddress  *string   `db:"road_address"  json:"road_address,omitempty"`
	JibunAddress *string   `db:"jibun_address" json:"jibun_address,omitempty"`
	SiteType     SiteType  `db:"site_type"     json:"site_type"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// Address returns the road address when present, falling back to the jibun address.
func (s *Site) Address() string {
	if s.RoadAddress != nil && *s.RoadAddress != "" {
		return *s.RoadAddress
	}
	if s.JibunAddress != nil {
		return *s.JibunAddress
	}
	return ""
}
