// survey/normalize.go
package survey

import (
	"fmt"
	"strings"
)

// SnakeCase inserts an underscore before every uppercase ASCII letter that is
// not the first character, then lowercases the result.
// "SurveyYear" becomes "survey_year" and "ID" becomes "i_d".
func SnakeCase(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 4)
	for i, r := range value {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// NormalizeHeaders converts a header row to canonical column names.
// Columns the source left unlabeled become col_<n>_unnamed.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for n, h := range headers {
		if strings.Contains(h, "Unnamed") || strings.TrimSpace(h) == "" {
			out[n] = fmt.Sprintf("col_%d_unnamed", n)
			continue
		}
		out[n] = SnakeCase(h)
	}
	return out
}
