package catalog

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical show date format.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"01/02/2006",
	"1/2/2006",
}

// NormalizeDate converts the date formats seen in catalog payloads
// ("1977-05-08T00:00:00Z", "1977-5-8", "05/08/1977") to YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}

	return "", fmt.Errorf("unrecognized date format %q", raw)
}

// YearOf returns the year of a normalized or raw date, or 0.
func YearOf(date string) int {
	d, err := NormalizeDate(date)
	if err != nil {
		return 0
	}
	t, _ := time.Parse(DateLayout, d)
	return t.Year()
}
