package models

// HazardCategory groups hazards for display.
type HazardCategory string

const (
	HazardCategoryTemperature HazardCategory = "temperature"
	HazardCategoryWater       HazardCategory = "water"
	HazardCategoryWind        HazardCategory = "wind"
	HazardCategoryOther       HazardCategory = "other"
)

// HazardCatalogEntry is one row of the fixed hazard reference table.
type HazardCatalogEntry struct {
	Code        string         `json:"code"`
	KoreanName  string         `json:"korean_name"`
	EnglishName string         `json:"english_name"`
	Category    HazardCategory `json:"category"`
}

// HazardRisk is the per-hazard summary for a site: the 0-100 physical risk
// score next to its AAL figure.
type HazardRisk struct {
	HazardCode string    `json:"hazard_code"`
	HazardName string    `json:"hazard_name"`
	RiskScore  int       `json:"physical_risk_score_100"`
	Aal        AalFigure `json:"aal"`
	AalRate    float64   `json:"aal_rate"`
}
