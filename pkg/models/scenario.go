package models

// Scenario is one of the four canonical SSP climate pathways.
type Scenario string

const (
	ScenarioSSP126 Scenario = "SSP1-2.6"
	ScenarioSSP245 Scenario = "SSP2-4.5"
	ScenarioSSP370 Scenario = "SSP3-7.0"
	ScenarioSSP585 Scenario = "SSP5-8.5"
)

// Scenarios lists the canonical scenarios in output-slot order.
var Scenarios = []Scenario{ScenarioSSP126, ScenarioSSP245, ScenarioSSP370, ScenarioSSP585}

// Term is the projection horizon of a score bucket.
type Term string

const (
	TermShort Term = "short"
	TermMid   Term = "mid"
	TermLong  Term = "long"
)

// Valid reports whether t is short, mid or long.
func (t Term) Valid() bool {
	switch t {
	case TermShort, TermMid, TermLong:
		return true
	default:
		return false
	}
}

// SubPeriods returns the number of points a bucket of this term carries:
// quarterly for short, yearly for mid, decadal for long.
func (t Term) SubPeriods() int {
	switch t {
	case TermShort:
		return 4
	case TermMid:
		return 5
	case TermLong:
		return 4
	default:
		return 0
	}
}

// ScenarioScoreMatrix is the scenario-indexed view of one hazard and one term.
// Each slot maps a sub-period key (point1..pointN) to a value.
type ScenarioScoreMatrix struct {
	SSP126 map[string]float64 `json:"scenarios1"`
	SSP245 map[string]float64 `json:"scenarios2"`
	SSP370 map[string]float64 `json:"scenarios3"`
	SSP585 map[string]float64 `json:"scenarios4"`
}

// Slot returns the slot for s, or nil for an unknown scenario.
func (m *ScenarioScoreMatrix) Slot(s Scenario) map[string]float64 {
	switch s {
	case ScenarioSSP126:
		return m.SSP126
	case ScenarioSSP245:
		return m.SSP245
	case ScenarioSSP370:
		return m.SSP370
	case ScenarioSSP585:
		return m.SSP585
	default:
		return nil
	}
}

// SetSlot stores values in the slot for s. Unknown scenarios are ignored.
func (m *ScenarioScoreMatrix) SetSlot(s Scenario, values map[string]float64) {
	switch s {
	case ScenarioSSP126:
		m.SSP126 = values
	case ScenarioSSP245:
		m.SSP245 = values
	case ScenarioSSP370:
		m.SSP370 = values
	case ScenarioSSP585:
		m.SSP585 = values
	}
}

// IsEmpty reports whether no slot was populated.
func (m *ScenarioScoreMatrix) IsEmpty() bool {
	return m.SSP126 == nil && m.SSP245 == nil && m.SSP370 == nil && m.SSP585 == nil
}
