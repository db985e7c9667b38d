package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlugLength bounds slugs used in object names.
const DefaultSlugLength = 30

// Slug converts value to a lowercase filesystem-safe token of at most maxLen
// runes. Accents are folded to their base letters, spaces become underscores,
// and any other unsafe character is dropped. Returns "video" for empty input.
func Slug(value string, maxLen int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		folded = value
	}
	folded = cases.Lower(language.Und).String(strings.TrimSpace(folded))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_-")
	if maxLen > 0 {
		if rs := []rune(out); len(rs) > maxLen {
			out = strings.TrimRight(string(rs[:maxLen]), "_-")
		}
	}
	if out == "" {
		return "video"
	}
	return out
}

// Title renders value in English title case with collapsed whitespace.
func Title(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(fields, " "))
}
