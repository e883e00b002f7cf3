package models

// AalFigure is an average-annual-loss block for one hazard. FinalPercentage is
// the source of truth; the 0-1 rate is derived from it on every read.
type AalFigure struct {
	BaseAal            *float64 `json:"base_aal,omitempty"`
	VulnerabilityScale *float64 `json:"vulnerability_scale,omitempty"`
	FinalPercentage    *float64 `json:"final_aal_percentage,omitempty"`
	InsuranceRate      *float64 `json:"insurance_rate,omitempty"`
	RiskLevel          *string  `json:"risk_level,omitempty"`
}

// Rate returns FinalPercentage / 100, or 0 when the percentage is absent.
func (f AalFigure) Rate() float64 {
	if f.FinalPercentage == nil {
		return 0.0
	}
	return *f.FinalPercentage / 100.0
}

// Percentage returns FinalPercentage, or 0 when absent.
func (f AalFigure) Percentage() float64 {
	if f.FinalPercentage == nil {
		return 0.0
	}
	return *f.FinalPercentage
}
