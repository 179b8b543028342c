package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks so "Priorité" and "Priorite" compare equal.
// A transformer chain carries state, so one is built per call.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// foldTerm lower-cases, strips accents and collapses inner whitespace.
func foldTerm(s string) string {
	s = stripAccents(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// foldKey reduces a field name to lower-case alphanumerics separated by single
// underscores: "Date de détection de l'anomalie" -> "date_de_detection_de_l_anomalie".
func foldKey(s string) string {
	s = stripAccents(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
