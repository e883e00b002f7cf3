package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchJobType is the kind of multi-candidate computation run upstream.
type BatchJobType string

const (
	BatchJobSiteRecommendation BatchJobType = "site_recommendation"
	BatchJobBulkAnalysis       BatchJobType = "bulk_analysis"
	BatchJobDataExport         BatchJobType = "data_export"
)

// BatchStatus is the lifecycle state of a batch job.
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "queued"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// Terminal reports whether the batch can no longer change.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// BatchJob is a recommendation run over several candidate locations.
// Recommendations are populated only once the batch has completed.
type BatchJob struct {
	ID              uuid.UUID            `json:"batch_job_id"`
	JobType         BatchJobType         `json:"job_type"`
	JobName         string               `json:"job_name"`
	Status          BatchStatus          `json:"status"`
	Progress        int                  `json:"progress_percentage"`
	ProcessedItems  int                  `json:"processed_items"`
	TotalItems      int                  `json:"total_items"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	ErrorMessage    *string              `json:"error_message,omitempty"`
	Metadata        map[string]any       `json:"metadata,omitempty"`
	Recommendations []RecommendationItem `json:"recommendations,omitempty"`
}

// BatchProgress is a point-in-time view of a running batch.
type BatchProgress struct {
	BatchJobID uuid.UUID      `json:"batch_job_id"`
	Status     BatchStatus    `json:"status"`
	Processed  int            `json:"processed"`
	Total      int            `json:"total"`
	Percent    int            `json:"percent"`
	Error      *string        `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RecommendationItem is one ranked candidate. Rank 1 is the most desirable.
type RecommendationItem struct {
	Name             string             `json:"name"`
	Latitude         *float64           `json:"latitude,omitempty"`
	Longitude        *float64           `json:"longitude,omitempty"`
	RoadAddress      *string            `json:"road_address,omitempty"`
	Rank             int                `json:"rank"`
	OverallRiskScore *float64           `json:"overall_risk_score,omitempty"`
	HazardScores     map[string]float64 `json:"hazard_scores,omitempty"`
	Recommendation   string             `json:"recommendation,omitempty"`
	AnalysisDetails  map[string]any     `json:"analysis_details,omitempty"`
}
