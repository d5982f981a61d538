package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics strips combining marks ("Sréng" -> "Sreng").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName folds an employee display name for lookups: no diacritics,
// lower case, dashes and repeated whitespace collapsed to single spaces.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// FindByName returns the records whose normalized display name contains query.
func FindByName(snapshot Snapshot, query string) []Record {
	q := NormalizeName(query)
	var out []Record
	for _, rec := range snapshot {
		if strings.Contains(NormalizeName(rec.DisplayName), q) {
			out = append(out, rec)
		}
	}
	return out
}
