package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/aal"
	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/internal/scenario"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// ScoreReport is a scenario matrix for one site, hazard and term. Strategy is
// set on risk score reports and Reason on financial impact reports.
type ScoreReport struct {
	SiteID     uuid.UUID   `json:"site_id"`
	Term       models.Term `json:"term"`
	HazardType string      `json:"hazard_type,omitempty"`
	models.ScenarioScoreMatrix
	Strategy string `json:"strategy,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// HazardSummary is the per-hazard risk score and AAL list for a site.
type HazardSummary struct {
	SiteID  uuid.UUID           `json:"site_id"`
	Hazards []models.HazardRisk `json:"hazards"`
}

// RiskScores returns the physical risk score matrix for a site. hazardType
// may be empty to keep every record, or a label in any name space.
func (r *Registry) RiskScores(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string, term models.Term) (*ScoreReport, error) {
	upstreamHazard, err := r.prepareRead(ctx, tenantID, siteID, hazardType)
	if err != nil {
		return nil, err
	}

	resp, err := r.upstream.PhysicalRiskScores(ctx, siteID.String(), upstreamHazard, string(term))
	if errors.Is(err, upstream.ErrUpstreamNotFound) {
		return r.scoreReport(siteID, hazardType, term, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching risk scores: %w", err)
	}

	report := r.scoreReport(siteID, hazardType, term, resp.Scenarios)
	report.Strategy = resp.Strategy
	return report, nil
}

// FinancialImpact returns the AAL matrix for a site, shaped like RiskScores.
func (r *Registry) FinancialImpact(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string, term models.Term) (*ScoreReport, error) {
	upstreamHazard, err := r.prepareRead(ctx, tenantID, siteID, hazardType)
	if err != nil {
		return nil, err
	}

	resp, err := r.upstream.FinancialImpacts(ctx, siteID.String(), upstreamHazard, string(term))
	if errors.Is(err, upstream.ErrUpstreamNotFound) {
		return r.scoreReport(siteID, hazardType, term, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching financial impacts: %w", err)
	}

	report := r.scoreReport(siteID, hazardType, term, resp.Scenarios)
	report.Reason = resp.Reason
	return report, nil
}

// HazardSummary returns the per-hazard risk score and AAL of a site in catalog
// order. A site without results yields an empty list.
func (r *Registry) HazardSummary(ctx context.Context, tenantID, siteID uuid.UUID) (*HazardSummary, error) {
	if _, err := r.prepareRead(ctx, tenantID, siteID, ""); err != nil {
		return nil, err
	}

	total, err := r.upstream.AnalysisTotal(ctx, siteID.String())
	if errors.Is(err, upstream.ErrUpstreamNotFound) {
		return &HazardSummary{SiteID: siteID, Hazards: []models.HazardRisk{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching analysis total: %w", err)
	}

	return &HazardSummary{
		SiteID:  siteID,
		Hazards: aal.Summarize(total.PhysicalRiskScores, total.AalAnalysis, r.logger),
	}, nil
}

// prepareRead checks the site exists and has no active analysis, and
// translates the hazard filter to its upstream name.
func (r *Registry) prepareRead(ctx context.Context, tenantID, siteID uuid.UUID, hazardType string) (string, error) {
	if _, err := r.getSite(ctx, tenantID, siteID); err != nil {
		return "", err
	}

	var upstreamHazard string
	if hazardType != "" {
		name, err := hazard.Translate(hazardType, hazard.ConventionUpstream)
		if err != nil {
			return "", err
		}
		upstreamHazard = name
	}

	latest, err := r.store.GetLatestAnalysisJobForSite(ctx, siteID, tenantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("getting latest job: %w", err)
	case latest.Status.Active():
		return "", fmt.Errorf("%w: job %s is %s", ErrAnalysisInProgress, latest.ID, latest.Status)
	}
	return upstreamHazard, nil
}

func (r *Registry) scoreReport(siteID uuid.UUID, hazardType string, term models.Term, items []upstream.ScenarioItem) *ScoreReport {
	bundles := make([]scenario.ScoreBundle, 0, len(items))
	for _, it := range items {
		bundles = append(bundles, scenario.ScoreBundle{
			Scenario: it.Scenario,
			Hazard:   it.RiskType,
			Short:    it.ShortTerm,
			Mid:      it.MidTerm,
			Long:     it.LongTerm,
		})
	}

	report := &ScoreReport{
		SiteID:              siteID,
		Term:                term,
		ScenarioScoreMatrix: scenario.Reshape(bundles, hazardType, term, r.logger),
	}
	if hazardType != "" {
		report.HazardType = hazard.Standardize(hazardType)
	}
	return report
}
