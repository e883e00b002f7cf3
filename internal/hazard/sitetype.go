package hazard

import (
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/climaterisk/pkg/models"
)

type siteBucket struct {
	siteType models.SiteType
	keywords []string
}

// Buckets are checked in order; the first keyword hit wins. Keywords are
// stored in normalized form.
var siteBuckets = []siteBucket{
	{models.SiteTypeDataCenter, []string{"datacenter", "데이터센터", "전산센터", "idc", "server", "서버"}},
	{models.SiteTypeFactory, []string{
		"factory", "manufactur", "plant", "공장", "제조", "생산",
		"chemical", "화학", "pharmaceutical", "제약", "food", "식품", "energy", "발전소",
	}},
	{models.SiteTypeWarehouse, []string{"warehouse", "logistics", "distribution", "storage", "창고", "물류", "보관", "transportation", "운송"}},
	{models.SiteTypeRetail, []string{"retail", "store", "shop", "mall", "market", "매장", "상점", "소매", "마트", "백화점", "hospitality", "숙박"}},
	{models.SiteTypeOffice, []string{"office", "사무", "오피스", "본사", "headquarter", "finance", "금융", "education", "교육", "healthcare", "의료"}},
}

// ClassifySiteType maps a free-text industry or site-type description to a
// canonical SiteType. Empty or unrecognized input yields SiteTypeOffice and a
// warning; it never fails.
func ClassifySiteType(text string, logger *slog.Logger) models.SiteType {
	if logger == nil {
		logger = slog.Default()
	}

	key := normalize(text)
	if key == "" {
		logger.Warn("empty site type, defaulting", "default", models.SiteTypeOffice)
		return models.SiteTypeOffice
	}

	for _, b := range siteBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(key, kw) {
				return b.siteType
			}
		}
	}

	logger.Warn("unrecognized site type, defaulting",
		"input", text,
		"default", models.SiteTypeOffice,
	)
	return models.SiteTypeOffice
}
