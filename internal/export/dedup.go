package export

import (
	"strings"

	"github.com/sells-group/zipleads/internal/model"
)

// Dedup drops rows whose dedup key was already seen; the first row per key
// wins. The key combines the normalized property address with the digits of
// the mobile number.
func Dedup(rows []model.HomeownerRow) []model.HomeownerRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := dedupKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func dedupKey(row model.HomeownerRow) string {
	return strings.ToLower(strings.TrimSpace(row.PropertyAddress)) + digitsOnly(row.Mobile)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
