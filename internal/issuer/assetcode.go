package issuer

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Ledger asset codes are limited to 12 alphanumeric characters. The prefix
// carries the human-legible subject name and the suffix a time component,
// so certificates for the same subject issued at different times get
// distinct codes while still being scoped to their single-use issuer.
const (
	maxAssetCodeLen = 12
	maxPrefixLen    = 7
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// AssetCode derives a ledger asset code from a subject name and a timestamp.
// The name is folded to uppercase ASCII alphanumerics, diacritics stripped,
// truncated to a short prefix, then a base-36 time suffix is appended.
func AssetCode(subjectName string, at time.Time) string {
	prefix := normalizeSubject(subjectName)
	if prefix == "" {
		prefix = "CERT"
	}
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}

	suffix := strings.ToUpper(strconv.FormatInt(at.UTC().Unix(), 36))
	if room := maxAssetCodeLen - len(prefix); len(suffix) > room {
		suffix = suffix[len(suffix)-room:]
	}
	return prefix + suffix
}

func normalizeSubject(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
