package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/narwhalmedia/deadarchive/internal/domain/specification"
)

// RecentLimit bounds the result of an empty query.
const RecentLimit = 100

// QueryKind is the interpretation chosen for a search string
type QueryKind string

const (
	QueryRecent    QueryKind = "recent"
	QueryDate      QueryKind = "date"
	QueryMonth     QueryKind = "month"
	QueryYear      QueryKind = "year"
	QueryYearRange QueryKind = "year_range"
	QueryVenue     QueryKind = "venue"
	QueryLocation  QueryKind = "location"
	QueryText      QueryKind = "text"
)

var (
	exactDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern       = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearPattern        = regexp.MustCompile(`^\d{4}$`)
	decadePattern      = regexp.MustCompile(`^(\d{3})0'?s$`)
	shortDecadePattern = regexp.MustCompile(`^'?(\d)0'?s$`)
	yearRangePattern   = regexp.MustCompile(`^(\d{4})\s*(?:-|to)\s*(\d{4})$`)
)

// Query is a classified search request. Classification depends only on
// the query string.
type Query struct {
	Raw      string
	Kind     QueryKind
	Prefix   string
	YearFrom int
	YearTo   int
	Text     string
}

// ParseQuery classifies a raw search string.
func ParseQuery(raw string) Query {
	s := strings.TrimSpace(raw)
	q := Query{Raw: raw}

	lower := strings.ToLower(s)
	for prefix, kind := range map[string]QueryKind{
		"venue:":    QueryVenue,
		"location:": QueryLocation,
		"city:":     QueryLocation,
	} {
		if strings.HasPrefix(lower, prefix) {
			if text := strings.TrimSpace(lower[len(prefix):]); text != "" {
				q.Kind, q.Text = kind, text
				return q
			}
			s, lower = "", ""
		}
	}

	switch {
	case s == "":
		q.Kind = QueryRecent
	case exactDatePattern.MatchString(s):
		q.Kind, q.Prefix = QueryDate, s
	case monthPattern.MatchString(s):
		q.Kind, q.Prefix = QueryMonth, s
	case yearPattern.MatchString(s):
		q.Kind, q.Prefix = QueryYear, s
		q.YearFrom, _ = strconv.Atoi(s)
		q.YearTo = q.YearFrom
	case decadePattern.MatchString(lower):
		m := decadePattern.FindStringSubmatch(lower)
		base, _ := strconv.Atoi(m[1])
		q.Kind, q.YearFrom, q.YearTo = QueryYearRange, base*10, base*10+9
	case shortDecadePattern.MatchString(lower):
		m := shortDecadePattern.FindStringSubmatch(lower)
		digit, _ := strconv.Atoi(m[1])
		q.Kind, q.YearFrom, q.YearTo = QueryYearRange, 1900+digit*10, 1900+digit*10+9
	case yearRangePattern.MatchString(lower):
		m := yearRangePattern.FindStringSubmatch(lower)
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if from > to {
			from, to = to, from
		}
		q.Kind, q.YearFrom, q.YearTo = QueryYearRange, from, to
	default:
		q.Kind, q.Text = QueryText, lower
	}

	return q
}

// Key identifies equivalent queries for request coalescing
func (q Query) Key() string {
	switch q.Kind {
	case QueryRecent:
		return string(q.Kind)
	case QueryDate, QueryMonth, QueryYear:
		return string(q.Kind) + ":" + q.Prefix
	case QueryYearRange:
		return fmt.Sprintf("%s:%d-%d", q.Kind, q.YearFrom, q.YearTo)
	default:
		return string(q.Kind) + ":" + q.Text
	}
}

// Limit returns the maximum result size, 0 meaning unbounded
func (q Query) Limit() int {
	if q.Kind == QueryRecent {
		return RecentLimit
	}
	return 0
}

// NewestFirst reports whether results are ordered by descending date
func (q Query) NewestFirst() bool {
	return q.Kind == QueryRecent
}

// Specification returns the predicate selecting matching shows
func (q Query) Specification() specification.Specification[*Show] {
	switch q.Kind {
	case QueryDate, QueryMonth, QueryYear:
		return DatePrefix(q.Prefix)
	case QueryYearRange:
		return YearBetween(q.YearFrom, q.YearTo)
	case QueryVenue:
		return VenueContains(q.Text)
	case QueryLocation:
		return LocationContains(q.Text)
	case QueryText:
		return specification.Or[*Show](
			VenueContains(q.Text),
			LocationContains(q.Text),
			SetlistContains(q.Text),
			DateContains(q.Text),
		)
	default:
		return specification.All[*Show]()
	}
}
