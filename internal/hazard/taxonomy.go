// Package hazard translates hazard labels between the catalog code, the Korean
// and English display names, and the names the upstream analysis service uses.
package hazard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

// ErrUnknownHazardType is returned when a label matches no catalog entry.
var ErrUnknownHazardType = errors.New("unknown hazard type")

// Convention selects the name space Translate produces.
type Convention string

const (
	ConventionCode     Convention = "code"
	ConventionKorean   Convention = "korean"
	ConventionEnglish  Convention = "english"
	ConventionUpstream Convention = "upstream"
)

type entry struct {
	models.HazardCatalogEntry
	upstream string
	aliases  []string
}

var catalog = []entry{
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "extreme_heat", KoreanName: "극심한 고온", EnglishName: "Extreme Heat", Category: models.HazardCategoryTemperature},
		upstream:           "폭염",
		aliases:            []string{"HIGH_TEMPERATURE"},
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "extreme_cold", KoreanName: "극심한 한파", EnglishName: "Extreme Cold", Category: models.HazardCategoryTemperature},
		upstream:           "한파",
		aliases:            []string{"극심한 저온", "COLD_WAVE"},
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "wildfire", KoreanName: "산불", EnglishName: "Wildfire", Category: models.HazardCategoryOther},
		upstream:           "산불",
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "drought", KoreanName: "가뭄", EnglishName: "Drought", Category: models.HazardCategoryWater},
		upstream:           "가뭄",
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "water_stress", KoreanName: "물부족", EnglishName: "Water Stress", Category: models.HazardCategoryWater},
		upstream:           "물부족",
		aliases:            []string{"WATER_SCARCITY"},
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "sea_level_rise", KoreanName: "해수면 상승", EnglishName: "Sea Level Rise", Category: models.HazardCategoryWater},
		upstream:           "해안침수",
		aliases:            []string{"COASTAL_FLOOD"},
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "river_flood", KoreanName: "하천 홍수", EnglishName: "River Flood", Category: models.HazardCategoryWater},
		upstream:           "내륙침수",
		aliases:            []string{"INLAND_FLOOD"},
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "urban_flood", KoreanName: "도시 홍수", EnglishName: "Urban Flood", Category: models.HazardCategoryWater},
		upstream:           "도시침수",
	},
	{
		HazardCatalogEntry: models.HazardCatalogEntry{Code: "typhoon", KoreanName: "태풍", EnglishName: "Typhoon", Category: models.HazardCategoryWind},
		upstream:           "태풍",
	},
}

// index maps every normalized label (code, names, upstream name, aliases) to its entry.
var index = buildIndex()

func buildIndex() map[string]*entry {
	idx := make(map[string]*entry)
	for i := range catalog {
		e := &catalog[i]
		labels := append([]string{e.Code, e.KoreanName, e.EnglishName, e.upstream}, e.aliases...)
		for _, l := range labels {
			key := normalize(l)
			if prev, ok := idx[key]; ok && prev != e {
				panic(fmt.Sprintf("hazard label %q maps to both %s and %s", l, prev.Code, e.Code))
			}
			idx[key] = e
		}
	}
	return idx
}

// normalize lower-cases and trims s and drops whitespace, '_' and '-' so that
// "Extreme Heat", "extreme_heat" and "EXTREME-HEAT" compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-':
			return -1
		}
		return r
	}, s)
}

func find(label string) (*entry, error) {
	if e, ok := index[normalize(label)]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownHazardType, label, strings.Join(Codes(), ", "))
}

// Catalog returns the hazard reference table in catalog order.
func Catalog() []models.HazardCatalogEntry {
	out := make([]models.HazardCatalogEntry, len(catalog))
	for i, e := range catalog {
		out[i] = e.HazardCatalogEntry
	}
	return out
}

// Codes returns every catalog code in catalog order.
func Codes() []string {
	out := make([]string, len(catalog))
	for i, e := range catalog {
		out[i] = e.Code
	}
	return out
}

// Lookup resolves a label from any supported name space to its catalog entry.
func Lookup(label string) (models.HazardCatalogEntry, error) {
	e, err := find(label)
	if err != nil {
		return models.HazardCatalogEntry{}, err
	}
	return e.HazardCatalogEntry, nil
}

// Translate resolves label and renders it in the target convention.
func Translate(label string, target Convention) (string, error) {
	e, err := find(label)
	if err != nil {
		return "", err
	}
	switch target {
	case ConventionCode:
		return e.Code, nil
	case ConventionKorean:
		return e.KoreanName, nil
	case ConventionEnglish:
		return e.EnglishName, nil
	case ConventionUpstream:
		return e.upstream, nil
	default:
		return "", fmt.Errorf("unknown hazard naming convention %q", target)
	}
}

// Standardize returns the Korean display name for a known label and the
// trimmed input otherwise.
func Standardize(label string) string {
	if e, ok := index[normalize(label)]; ok {
		return e.KoreanName
	}
	return strings.TrimSpace(label)
}

// Matches reports whether two labels name the same hazard. Unknown labels
// match only if they are equal after normalization.
func Matches(a, b string) bool {
	ea, okA := index[normalize(a)]
	eb, okB := index[normalize(b)]
	if okA && okB {
		return ea == eb
	}
	return normalize(a) == normalize(b)
}

// ToUpstreamNames translates a hazard filter for the upstream service.
// A nil or empty filter yields an empty, non-nil slice.
func ToUpstreamNames(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		name, err := Translate(l, ConventionUpstream)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}
