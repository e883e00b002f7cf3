package upstream

import (
	"github.com/google/uuid"
	"github.com/kiranshivaraju/climaterisk/internal/aal"
)

// --- analysis ---

// SiteInfo describes the site being analysed.
type SiteInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Type      string  `json:"type"`
}

// AnalysisOptions toggles optional parts of an analysis run.
type AnalysisOptions struct {
	IncludeFinancialImpact *bool    `json:"includeFinancialImpact,omitempty"`
	IncludeVulnerability   *bool    `json:"includeVulnerability,omitempty"`
	IncludePastEvents      *bool    `json:"includePastEvents,omitempty"`
	SSPScenarios           []string `json:"sspScenarios,omitempty"`
}

// StartRequest is the body of POST /api/analysis/start. HazardTypes carries
// upstream hazard names.
type StartRequest struct {
	Site        SiteInfo         `json:"site"`
	HazardTypes []string         `json:"hazardTypes"`
	Priority    string           `json:"priority"`
	Options     *AnalysisOptions `json:"options,omitempty"`
}

type StartResponse struct {
	JobID                   string     `json:"job_id"`
	Status                  string     `json:"status"`
	EstimatedCompletionTime *Timestamp `json:"estimated_completion_time,omitempty"`
}

// StatusError is the failure detail attached to a failed upstream job.
type StatusError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status is an upstream job observation in the upstream's raw vocabulary.
// It arrives either from a status poll or a pushed callback.
type Status struct {
	Status      string       `json:"status"`
	Progress    int          `json:"progress"`
	CurrentNode string       `json:"current_node,omitempty"`
	Error       *StatusError `json:"error,omitempty"`
}

// ScenarioItem is one scenario/hazard record with a score bucket per term.
type ScenarioItem struct {
	Scenario  string             `json:"scenario"`
	RiskType  string             `json:"riskType"`
	ShortTerm map[string]float64 `json:"shortTerm"`
	MidTerm   map[string]float64 `json:"midTerm"`
	LongTerm  map[string]float64 `json:"longTerm"`
}

type RiskScoresResponse struct {
	Scenarios []ScenarioItem `json:"scenarios"`
	Strategy  string         `json:"strategy,omitempty"`
}

type FinancialImpactResponse struct {
	Scenarios []ScenarioItem `json:"scenarios"`
	Reason    string         `json:"reason,omitempty"`
}

// Total is the aggregated analysis result for a site, keyed by upstream
// hazard name.
type Total struct {
	PhysicalRiskScores map[string]aal.ScoreBlock `json:"physical_risk_scores"`
	AalAnalysis        map[string]aal.Block      `json:"aal_analysis"`
}

// --- recommendation batches ---

type Candidate struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RoadAddress  *string `json:"roadAddress,omitempty"`
	JibunAddress *string `json:"jibunAddress,omitempty"`
}

type Criteria struct {
	HazardWeights     map[string]float64 `json:"hazardWeights,omitempty"`
	ExcludedHazards   []string           `json:"excludedHazards,omitempty"`
	MinRiskScore      *float64           `json:"minRiskScore,omitempty"`
	MaxRiskScore      *float64           `json:"maxRiskScore,omitempty"`
	AdditionalFilters map[string]any     `json:"additionalFilters,omitempty"`
}

type BatchRequest struct {
	JobName         string      `json:"jobName"`
	SiteType        string      `json:"siteType"`
	Candidates      []Candidate `json:"candidates"`
	Criteria        *Criteria   `json:"criteria,omitempty"`
	ReferenceSiteID *uuid.UUID  `json:"referenceSiteId,omitempty"`
}

type BatchStarted struct {
	BatchJobID         uuid.UUID  `json:"batchJobId"`
	JobType            string     `json:"jobType"`
	JobName            string     `json:"jobName"`
	Status             string     `json:"status"`
	StartedAt          *Timestamp `json:"startedAt,omitempty"`
	TotalCandidates    int        `json:"totalCandidates"`
	ProgressPercentage int        `json:"progressPercentage"`
}

type BatchProgress struct {
	BatchJobID         uuid.UUID      `json:"batchJobId"`
	JobName            string         `json:"jobName"`
	Status             string         `json:"status"`
	ProgressPercentage int            `json:"progressPercentage"`
	ProcessedItems     int            `json:"processedItems"`
	TotalItems         int            `json:"totalItems"`
	StartedAt          *Timestamp     `json:"startedAt,omitempty"`
	CompletedAt        *Timestamp     `json:"completedAt,omitempty"`
	ErrorMessage       *string        `json:"errorMessage,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type Recommendation struct {
	Name             string             `json:"name"`
	Latitude         *float64           `json:"latitude,omitempty"`
	Longitude        *float64           `json:"longitude,omitempty"`
	RoadAddress      *string            `json:"roadAddress,omitempty"`
	Rank             int                `json:"rank"`
	OverallRiskScore *float64           `json:"overallRiskScore,omitempty"`
	HazardScores     map[string]float64 `json:"hazardScores,omitempty"`
	Recommendation   string             `json:"recommendation,omitempty"`
	AnalysisDetails  map[string]any     `json:"analysisDetails,omitempty"`
}

type BatchResult struct {
	BatchJobID      uuid.UUID        `json:"batchJobId"`
	JobName         string           `json:"jobName"`
	Status          string           `json:"status"`
	StartedAt       *Timestamp       `json:"startedAt,omitempty"`
	CompletedAt     *Timestamp       `json:"completedAt,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalCandidates int              `json:"totalCandidates"`
	ErrorMessage    *string          `json:"errorMessage,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}
