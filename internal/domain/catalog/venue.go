package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownVenue is the key produced for blank venue names.
const UnknownVenue = "unknown"

var venueAbbreviations = map[string]string{
	"theatre":    "theater",
	"university": "u",
	"college":    "c",
	"state":      "st",
	"memorial":   "mem",
	"auditorium": "aud",
	"stadium":    "stad",
}

var venueFillers = map[string]bool{
	"the": true,
	"of":  true,
	"at":  true,
}

// NormalizeVenue maps spelling variants of a venue name to one key, so
// "Barton Hall, Cornell University" and "Barton Hall (Cornell Univ.)"
// style inputs collapse together. The result is lower case words joined by
// underscores, and NormalizeVenue(NormalizeVenue(x)) == NormalizeVenue(x).
func NormalizeVenue(raw string) string {
	s := strings.ToLower(foldDiacritics(strings.TrimSpace(raw)))

	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '‘', '’', '"', '“', '”', '.', '`':
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		// parens, commas, ampersands, slashes and whitespace all separate
		return ' '
	}, s)

	words := strings.Fields(s)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if abbr, ok := venueAbbreviations[w]; ok {
			w = abbr
		}
		if venueFillers[w] {
			continue
		}
		tokens = append(tokens, w)
	}

	if len(tokens) == 0 {
		return UnknownVenue
	}
	return strings.Join(tokens, "_")
}

// GenerateShowID returns the show identity {date}_{normalized venue}.
// Dates that cannot be normalized are used trimmed as given.
func GenerateShowID(date, venue string) string {
	d, err := NormalizeDate(date)
	if err != nil {
		d = strings.TrimSpace(date)
	}
	return d + "_" + NormalizeVenue(venue)
}

// ParseShowID splits a show identity into its date and venue key.
func ParseShowID(id string) (date, venueKey string, ok bool) {
	date, venueKey, ok = strings.Cut(id, "_")
	if !ok || venueKey == "" {
		return "", "", false
	}
	if _, err := NormalizeDate(date); err != nil {
		return "", "", false
	}
	return date, venueKey, true
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
