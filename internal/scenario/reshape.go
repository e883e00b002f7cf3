// Package scenario reshapes upstream score bundles into a matrix indexed by
// the four canonical SSP scenarios.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnknownTerm     = errors.New("unknown term")
)

// ScoreBundle is one upstream record: a scenario and hazard pair with a score
// bucket per term. Any bucket may be nil when upstream data is partial.
type ScoreBundle struct {
	Scenario string
	Hazard   string
	Short    map[string]float64
	Mid      map[string]float64
	Long     map[string]float64
}

func (b ScoreBundle) bucket(term models.Term) map[string]float64 {
	switch term {
	case models.TermShort:
		return b.Short
	case models.TermMid:
		return b.Mid
	case models.TermLong:
		return b.Long
	default:
		return nil
	}
}

// ParseTerm accepts short, mid or long in any case.
func ParseTerm(s string) (models.Term, error) {
	t := models.Term(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (valid: short, mid, long)", ErrUnknownTerm, s)
	}
	return t, nil
}

// ParseScenario accepts the canonical SSP labels. Case and the separators
// between the pathway and the forcing level are ignored, so "ssp245" and
// "SSP2-4.5" both resolve.
func ParseScenario(s string) (models.Scenario, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '.':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))

	switch key {
	case "SSP126":
		return models.ScenarioSSP126, nil
	case "SSP245":
		return models.ScenarioSSP245, nil
	case "SSP370":
		return models.ScenarioSSP370, nil
	case "SSP585":
		return models.ScenarioSSP585, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
	}
}

// Reshape places the term bucket of every bundle matching hazardFilter into the
// slot of its scenario. An empty filter keeps every record. Records with
// missing buckets or unrecognized scenarios are dropped; the result may be
// empty but Reshape never fails.
func Reshape(bundles []ScoreBundle, hazardFilter string, term models.Term, logger *slog.Logger) models.ScenarioScoreMatrix {
	if logger == nil {
		logger = slog.Default()
	}

	var m models.ScenarioScoreMatrix
	if !term.Valid() {
		logger.Warn("invalid term, returning empty matrix", "term", term, "records", len(bundles))
		return m
	}

	for _, b := range bundles {
		if hazardFilter != "" && !hazard.Matches(b.Hazard, hazardFilter) {
			continue
		}

		values := b.bucket(term)
		if values == nil {
			logger.Debug("score bundle has no bucket for term",
				"scenario", b.Scenario,
				"hazard", b.Hazard,
				"term", term,
			)
			continue
		}

		s, err := ParseScenario(b.Scenario)
		if err != nil {
			logger.Warn("dropping score bundle", "hazard", b.Hazard, "error", err)
			continue
		}

		if m.Slot(s) != nil {
			logger.Warn("duplicate scenario in score bundles, keeping the later one",
				"scenario", s,
				"hazard", b.Hazard,
			)
		}
		m.SetSlot(s, maps.Clone(values))
	}
	return m
}
