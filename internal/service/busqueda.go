package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// plegar case-folds s and strips diacritics so "Dañado" matches "danado".
// Transformers are stateful, so a new chain is built per call.
func plegar(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}

// coincide reports whether q is a substring of any field after folding.
// An empty query matches everything.
func coincide(q string, campos ...string) bool {
	q = plegar(q)
	if q == "" {
		return true
	}
	for _, c := range campos {
		if strings.Contains(plegar(c), q) {
			return true
		}
	}
	return false
}
