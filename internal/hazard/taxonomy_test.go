package hazard_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/kiranshivaraju/climaterisk/internal/hazard"
	"github.com/kiranshivaraju/climaterisk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_NineEntriesInOrder(t *testing.T) {
	entries := hazard.Catalog()
	require.Len(t, entries, 9)
	assert.Equal(t, "extreme_heat", entries[0].Code)
	assert.Equal(t, "typhoon", entries[8].Code)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
		assert.NotEmpty(t, e.KoreanName)
		assert.NotEmpty(t, e.EnglishName)
	}
}

func TestTranslate_RoundTripsEveryCode(t *testing.T) {
	for _, code := range hazard.Codes() {
		english, err := hazard.Translate(code, hazard.ConventionEnglish)
		require.NoError(t, err)

		korean, err := hazard.Translate(english, hazard.ConventionKorean)
		require.NoError(t, err)

		back, err := hazard.Translate(korean, hazard.ConventionCode)
		require.NoError(t, err)
		assert.Equal(t, code, back)
	}
}

func TestTranslate_Conventions(t *testing.T) {
	tests := []struct {
		input  string
		target hazard.Convention
		want   string
	}{
		{"extreme_heat", hazard.ConventionKorean, "극심한 고온"},
		{"극심한 고온", hazard.ConventionEnglish, "Extreme Heat"},
		{"Extreme Heat", hazard.ConventionCode, "extreme_heat"},
		{"river_flood", hazard.ConventionUpstream, "내륙침수"},
		{"sea_level_rise", hazard.ConventionUpstream, "해안침수"},
		{"urban_flood", hazard.ConventionUpstream, "도시침수"},
		{"extreme_cold", hazard.ConventionUpstream, "한파"},
	}
	for _, tt := range tests {
		t.Run(tt.input+"->"+string(tt.target), func(t *testing.T) {
			got, err := hazard.Translate(tt.input, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate_UpstreamAliases(t *testing.T) {
	tests := map[string]string{
		"폭염":               "extreme_heat",
		"한파":               "extreme_cold",
		"극심한 저온":           "extreme_cold",
		"내륙침수":             "river_flood",
		"해안침수":             "sea_level_rise",
		"도시침수":             "urban_flood",
		"도시 침수":            "urban_flood",
		"물 부족":             "water_stress",
		"HIGH_TEMPERATURE": "extreme_heat",
		"COLD_WAVE":        "extreme_cold",
		"INLAND_FLOOD":     "river_flood",
		"COASTAL_FLOOD":    "sea_level_rise",
		"WATER_SCARCITY":   "water_stress",
	}
	for input, want := range tests {
		got, err := hazard.Translate(input, hazard.ConventionCode)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestTranslate_CaseInsensitiveAndTrimmed(t *testing.T) {
	for _, input := range []string{"  TYPHOON ", "typhoon", "Typhoon", "\t태풍 "} {
		got, err := hazard.Translate(input, hazard.ConventionCode)
		require.NoError(t, err, input)
		assert.Equal(t, "typhoon", got)
	}
}

func TestTranslate_Unknown(t *testing.T) {
	_, err := hazard.Translate("earthquake", hazard.ConventionKorean)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hazard.ErrUnknownHazardType))
	assert.Contains(t, err.Error(), "earthquake")
	assert.Contains(t, err.Error(), "extreme_heat")

	_, err = hazard.Translate("", hazard.ConventionCode)
	assert.True(t, errors.Is(err, hazard.ErrUnknownHazardType))
}

func TestTranslate_UnknownConvention(t *testing.T) {
	_, err := hazard.Translate("drought", hazard.Convention("klingon"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, hazard.ErrUnknownHazardType))
}

func TestLookup(t *testing.T) {
	e, err := hazard.Lookup("태풍")
	require.NoError(t, err)
	assert.Equal(t, models.HazardCategoryWind, e.Category)

	e, err = hazard.Lookup("wildfire")
	require.NoError(t, err)
	assert.Equal(t, models.HazardCategoryOther, e.Category)
}

func TestStandardize(t *testing.T) {
	assert.Equal(t, "하천 홍수", hazard.Standardize("내륙침수"))
	assert.Equal(t, "극심한 고온", hazard.Standardize("extreme_heat"))
	assert.Equal(t, "mystery", hazard.Standardize("  mystery "))
}

func TestMatches(t *testing.T) {
	assert.True(t, hazard.Matches("폭염", "extreme_heat"))
	assert.True(t, hazard.Matches("Extreme Heat", "극심한 고온"))
	assert.False(t, hazard.Matches("폭염", "한파"))
	assert.True(t, hazard.Matches("Mystery", "mystery"))
	assert.False(t, hazard.Matches("mystery", "typhoon"))
}

func TestToUpstreamNames(t *testing.T) {
	names, err := hazard.ToUpstreamNames([]string{"extreme_heat", "River Flood"})
	require.NoError(t, err)
	assert.Equal(t, []string{"폭염", "내륙침수"}, names)

	names, err = hazard.ToUpstreamNames(nil)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	_, err = hazard.ToUpstreamNames([]string{"typhoon", "meteor"})
	assert.True(t, errors.Is(err, hazard.ErrUnknownHazardType))
}

// --- ClassifySiteType ---

func TestClassifySiteType_Buckets(t *testing.T) {
	tests := map[string]models.SiteType{
		"data_center":   models.SiteTypeDataCenter,
		"데이터 센터":        models.SiteTypeDataCenter,
		"공장":            models.SiteTypeFactory,
		"manufacturing": models.SiteTypeFactory,
		"Chemical":      models.SiteTypeFactory,
		"물류 창고":         models.SiteTypeWarehouse,
		"logistics":     models.SiteTypeWarehouse,
		"retail":        models.SiteTypeRetail,
		"백화점":           models.SiteTypeRetail,
		"office":        models.SiteTypeOffice,
		"본사 사무실":        models.SiteTypeOffice,
	}
	for input, want := range tests {
		assert.Equal(t, want, hazard.ClassifySiteType(input, nil), input)
	}
}

func TestClassifySiteType_DefaultsToOfficeWithWarning(t *testing.T) {
	for _, input := range []string{"", "   ", "spaceport", "???"} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		got := hazard.ClassifySiteType(input, logger)
		assert.Equal(t, models.SiteTypeOffice, got, "input %q", input)
		assert.Contains(t, buf.String(), "level=WARN", "input %q", input)
	}
}

func TestClassifySiteType_KnownBucketDoesNotWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	assert.Equal(t, models.SiteTypeOffice, hazard.ClassifySiteType("office", logger))
	assert.Empty(t, buf.String())
}
