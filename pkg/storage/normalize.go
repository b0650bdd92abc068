package storage

import "strings"

// NormalizeLabel canonicalises a B1/B2/B3 classification label.
func NormalizeLabel(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeDetail canonicalises free-text detail for grouping and override
// keys. Only surrounding whitespace is removed; case and inner spacing are
// significant.
func NormalizeDetail(s string) string {
	return strings.TrimSpace(s)
}
