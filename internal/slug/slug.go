// Package slug turns free-form titles into platform-valid kernel slugs and
// back into display titles.
package slug

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug the platform accepts.
const MaxLength = 50

// Normalize converts title to a slug: accents are folded to their base
// letters, the result is lowercased, whitespace and underscores become
// hyphens, anything outside [a-z0-9-] is dropped, hyphen runs collapse and
// the slug is trimmed and truncated to MaxLength. Normalize is idempotent.
func Normalize(title string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
	), title)
	if err != nil {
		folded = title
	}

	var sb strings.Builder
	lastHyphen := true // suppresses leading hyphens
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	s := strings.TrimRight(sb.String(), "-")
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// IsValid reports whether s is already a normalized, non-empty slug.
func IsValid(s string) bool {
	return s != "" && Normalize(s) == s
}

// TitleFromSlug renders a slug as a title: hyphens become spaces and each
// word is title-cased. Normalize(TitleFromSlug(s)) == s for any valid s.
func TitleFromSlug(s string) string {
	return titleCase(strings.ReplaceAll(s, "-", " "))
}

// Reconcile checks that title normalizes to slug. When it does not, the
// title derived from slug is returned with changed set.
func Reconcile(s, title string) (string, bool) {
	if Normalize(title) == s {
		return title, false
	}
	return TitleFromSlug(s), true
}

// TitleFromFilename derives a title from a notebook path: the base name
// without extension, with underscores and hyphens read as spaces.
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return titleCase(base)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
