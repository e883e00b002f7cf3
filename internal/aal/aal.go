// Package aal normalizes average-annual-loss blocks from upstream analysis
// totals. The percentage is kept as received; the 0-1 rate is always derived.
package aal

import (
	"log/slog"

	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// Block is the per-hazard AAL entry in an upstream analysis total.
type Block struct {
	BaseAal            *float64 `json:"base_aal"`
	VulnerabilityScale *float64 `json:"vulnerability_scale"`
	FinalPercentage    *float64 `json:"final_aal_percentage"`
	InsuranceRate      *float64 `json:"insurance_rate"`
	RiskLevel          *string  `json:"risk_level"`
}

// ScoreBlock is the per-hazard physical risk entry in an upstream analysis total.
type ScoreBlock struct {
	Score *int `json:"physical_risk_score_100"`
}

// Normalize copies a block into the domain figure.
func Normalize(b Block) models.AalFigure {
	return models.AalFigure{
		BaseAal:            b.BaseAal,
		VulnerabilityScale: b.VulnerabilityScale,
		FinalPercentage:    b.FinalPercentage,
		InsuranceRate:      b.InsuranceRate,
		RiskLevel:          b.RiskLevel,
	}
}

// Rate converts a percentage to a 0-1 rate. A nil percentage is 0.
func Rate(pct *float64) float64 {
	return models.AalFigure{FinalPercentage: pct}.Rate()
}

// Extract finds the block for h. Keys in blocks may use any hazard naming
// convention; unknown keys never match a catalog hazard.
func Extract(blocks map[string]Block, h string) (models.AalFigure, bool) {
	if b, ok := blocks[h]; ok {
		return Normalize(b), true
	}
	for key, b := range blocks {
		if hazard.Matches(key, h) {
			return Normalize(b), true
		}
	}
	return models.AalFigure{}, false
}

// Summarize joins risk scores and AAL blocks into one entry per catalog hazard
// present in either map, in catalog order. Keys that name no catalog hazard
// are logged and skipped.
func Summarize(scores map[string]ScoreBlock, blocks map[string]Block, logger *slog.Logger) []models.HazardRisk {
	if logger == nil {
		logger = slog.Default()
	}

	byCode := make(map[string]*models.HazardRisk)
	entry := func(key string) *models.HazardRisk {
		e, err := hazard.Lookup(key)
		if err != nil {
			logger.Warn("skipping unknown hazard in analysis total", "hazard", key)
			return nil
		}
		hr, ok := byCode[e.Code]
		if !ok {
			hr = &models.HazardRisk{HazardCode: e.Code, HazardName: e.KoreanName}
			byCode[e.Code] = hr
		}
		return hr
	}

	for key, s := range scores {
		if hr := entry(key); hr != nil && s.Score != nil {
			hr.RiskScore = *s.Score
		}
	}
	for key, b := range blocks {
		if hr := entry(key); hr != nil {
			hr.Aal = Normalize(b)
			hr.AalRate = Rate(b.FinalPercentage)
		}
	}

	out := make([]models.HazardRisk, 0, len(byCode))
	for _, code := range hazard.Codes() {
		if hr, ok := byCode[code]; ok {
			out = append(out, *hr)
		}
	}
	return out
}
