package fees

import (
	"strings"

	"hedgedash/internal/types"
)

// FilterFamilies keeps rows whose contract code starts with one of the given
// product prefixes. Matching ignores case.
func FilterFamilies(rows []types.FeeRow, families []string) []types.FeeRow {
	out := make([]types.FeeRow, 0, len(rows))
	for _, r := range rows {
		code := strings.ToUpper(r.Code)
		for _, f := range families {
			if f != "" && strings.HasPrefix(code, strings.ToUpper(f)) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// EffectivePrice is the last price, or the prior close when the last price is
// at or below floor (the feed reports 0 or stale placeholders before the open).
func EffectivePrice(r types.FeeRow, floor float64) float64 {
	if r.LastPrice <= floor {
		return r.PrevClose
	}
	return r.LastPrice
}

// LatestUpdate returns the greatest UpdatedAt among rows. The feed uses a
// sortable "2006-01-02 15:04:05" layout so string comparison is enough.
func LatestUpdate(rows []types.FeeRow) string {
	var latest string
	for _, r := range rows {
		if r.UpdatedAt > latest {
			latest = r.UpdatedAt
		}
	}
	return latest
}
