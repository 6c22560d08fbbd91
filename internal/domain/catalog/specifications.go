package catalog

import (
	"strings"

	"github.com/narwhalmedia/deadarchive/internal/domain/specification"
)

// likeEscaper escapes LIKE wildcards; every pattern declares ESCAPE '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
}

// DatePrefixSpecification matches shows whose date starts with a prefix.
// Stored dates that carry a time component still match an exact date.
type DatePrefixSpecification struct {
	Prefix string
}

// DatePrefix creates a date prefix specification
func DatePrefix(prefix string) specification.Specification[*Show] {
	return &DatePrefixSpecification{Prefix: prefix}
}

func (s *DatePrefixSpecification) IsSatisfiedBy(show *Show) bool {
	return strings.HasPrefix(show.Date, s.Prefix)
}

func (s *DatePrefixSpecification) ToSQL() (string, []interface{}) {
	return "show_date LIKE ? ESCAPE '!'", []interface{}{likeEscaper.Replace(s.Prefix) + "%"}
}

// DateContainsSpecification matches a fragment anywhere in the date
type DateContainsSpecification struct {
	Text string
}

// DateContains creates a date substring specification
func DateContains(text string) specification.Specification[*Show] {
	return &DateContainsSpecification{Text: text}
}

func (s *DateContainsSpecification) IsSatisfiedBy(show *Show) bool {
	return strings.Contains(strings.ToLower(show.Date), strings.ToLower(s.Text))
}

func (s *DateContainsSpecification) ToSQL() (string, []interface{}) {
	return "LOWER(show_date) LIKE ? ESCAPE '!'", []interface{}{containsPattern(s.Text)}
}

// YearBetweenSpecification matches shows in an inclusive year range
type YearBetweenSpecification struct {
	From int
	To   int
}

// YearBetween creates a year range specification
func YearBetween(from, to int) specification.Specification[*Show] {
	return &YearBetweenSpecification{From: from, To: to}
}

func (s *YearBetweenSpecification) IsSatisfiedBy(show *Show) bool {
	year := show.Year
	if year == 0 {
		year = YearOf(show.Date)
	}
	return year >= s.From && year <= s.To
}

func (s *YearBetweenSpecification) ToSQL() (string, []interface{}) {
	return "show_year BETWEEN ? AND ?", []interface{}{s.From, s.To}
}

// VenueContainsSpecification matches a case-insensitive venue substring
type VenueContainsSpecification struct {
	Text string
}

// VenueContains creates a venue substring specification
func VenueContains(text string) specification.Specification[*Show] {
	return &VenueContainsSpecification{Text: text}
}

func (s *VenueContainsSpecification) IsSatisfiedBy(show *Show) bool {
	return strings.Contains(strings.ToLower(show.Venue.Name), strings.ToLower(s.Text))
}

func (s *VenueContainsSpecification) ToSQL() (string, []interface{}) {
	return "LOWER(venue_name) LIKE ? ESCAPE '!'", []interface{}{containsPattern(s.Text)}
}

// LocationContainsSpecification matches a case-insensitive location substring
type LocationContainsSpecification struct {
	Text string
}

// LocationContains creates a location substring specification
func LocationContains(text string) specification.Specification[*Show] {
	return &LocationContainsSpecification{Text: text}
}

func (s *LocationContainsSpecification) IsSatisfiedBy(show *Show) bool {
	return strings.Contains(strings.ToLower(show.Location), strings.ToLower(s.Text))
}

func (s *LocationContainsSpecification) ToSQL() (string, []interface{}) {
	return "LOWER(location) LIKE ? ESCAPE '!'", []interface{}{containsPattern(s.Text)}
}

// SetlistContainsSpecification matches a song name fragment
type SetlistContainsSpecification struct {
	Text string
}

// SetlistContains creates a setlist substring specification
func SetlistContains(text string) specification.Specification[*Show] {
	return &SetlistContainsSpecification{Text: text}
}

func (s *SetlistContainsSpecification) IsSatisfiedBy(show *Show) bool {
	return strings.Contains(strings.ToLower(show.SetlistRaw), strings.ToLower(s.Text))
}

func (s *SetlistContainsSpecification) ToSQL() (string, []interface{}) {
	return "LOWER(setlist_raw) LIKE ? ESCAPE '!'", []interface{}{containsPattern(s.Text)}
}
