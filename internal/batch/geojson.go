package batch

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ResultGeoJSON renders the ranked recommendations of a batch as Point
// features in rank order. Recommendations without coordinates are left out.
// An unfinished batch yields an empty collection.
func (t *Tracker) ResultGeoJSON(ctx context.Context, id uuid.UUID) (*geojson.FeatureCollection, error) {
	job, err := t.Result(ctx, id)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"batch_job_id": job.ID.String(),
		"status":       string(job.Status),
	}

	for _, rec := range job.Recommendations {
		if rec.Latitude == nil || rec.Longitude == nil {
			t.logger.Debug("recommendation without coordinates", "batch_job_id", id, "rank", rec.Rank)
			continue
		}
		f := geojson.NewFeature(orb.Point{*rec.Longitude, *rec.Latitude})
		f.Properties = geojson.Properties{
			"rank": rec.Rank,
			"name": rec.Name,
		}
		if rec.OverallRiskScore != nil {
			f.Properties["overall_risk_score"] = *rec.OverallRiskScore
		}
		if rec.Recommendation != "" {
			f.Properties["recommendation"] = rec.Recommendation
		}
		fc.Append(f)
	}
	return fc, nil
}
