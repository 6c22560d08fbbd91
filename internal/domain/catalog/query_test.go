package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in       string
		kind     QueryKind
		prefix   string
		from, to int
		text     string
	}{
		{"", QueryRecent, "", 0, 0, ""},
		{"   ", QueryRecent, "", 0, 0, ""},
		{"1977-05-08", QueryDate, "1977-05-08", 0, 0, ""},
		{"1977-05", QueryMonth, "1977-05", 0, 0, ""},
		{"1977", QueryYear, "1977", 1977, 1977, ""},
		{"1970s", QueryYearRange, "", 1970, 1979, ""},
		{"70s", QueryYearRange, "", 1970, 1979, ""},
		{"1972-1974", QueryYearRange, "", 1972, 1974, ""},
		{"1974 to 1972", QueryYearRange, "", 1972, 1974, ""},
		{"venue: Winterland", QueryVenue, "", 0, 0, "winterland"},
		{"city:Ithaca", QueryLocation, "", 0, 0, "ithaca"},
		{"Dark Star", QueryText, "", 0, 0, "dark star"},
		{"venue:", QueryRecent, "", 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q := ParseQuery(tt.in)
			assert.Equal(t, tt.kind, q.Kind)
			assert.Equal(t, tt.prefix, q.Prefix)
			assert.Equal(t, tt.from, q.YearFrom)
			assert.Equal(t, tt.to, q.YearTo)
			assert.Equal(t, tt.text, q.Text)
		})
	}
}

func TestParseQuery_Deterministic(t *testing.T) {
	for _, in := range []string{"1977", "Cornell", "1970s", ""} {
		assert.Equal(t, ParseQuery(in), ParseQuery(in))
		assert.Equal(t, ParseQuery(in).Key(), ParseQuery(in).Key())
	}
	assert.Equal(t, RecentLimit, ParseQuery("").Limit())
	assert.True(t, ParseQuery("").NewestFirst())
	assert.Equal(t, 0, ParseQuery("1977").Limit())
}

func TestQuerySpecification_InMemory(t *testing.T) {
	cornell := &Show{
		Date:       "1977-05-08",
		Year:       1977,
		Venue:      Venue{Name: "Barton Hall, Cornell University"},
		Location:   "Ithaca, NY",
		SetlistRaw: "Set 2: Scarlet Begonias, Fire on the Mountain",
	}
	stamped := &Show{Date: "1977-05-08T00:00:00Z", Venue: Venue{Name: "Barton Hall"}}
	winterland := &Show{Date: "1974-10-20", Year: 1974, Venue: Venue{Name: "Winterland Arena"}, Location: "San Francisco, CA"}

	assert.True(t, ParseQuery("1977-05-08").Specification().IsSatisfiedBy(cornell))
	assert.True(t, ParseQuery("1977-05-08").Specification().IsSatisfiedBy(stamped))
	assert.False(t, ParseQuery("1977-05-08").Specification().IsSatisfiedBy(winterland))

	assert.True(t, ParseQuery("1977-05").Specification().IsSatisfiedBy(cornell))
	assert.True(t, ParseQuery("1977").Specification().IsSatisfiedBy(stamped))
	assert.True(t, ParseQuery("1970s").Specification().IsSatisfiedBy(winterland))
	assert.True(t, ParseQuery("1970s").Specification().IsSatisfiedBy(stamped))

	assert.True(t, ParseQuery("cornell").Specification().IsSatisfiedBy(cornell))
	assert.True(t, ParseQuery("scarlet").Specification().IsSatisfiedBy(cornell))
	assert.True(t, ParseQuery("san francisco").Specification().IsSatisfiedBy(winterland))
	assert.False(t, ParseQuery("venue:ithaca").Specification().IsSatisfiedBy(cornell))
	assert.True(t, ParseQuery("location:ithaca").Specification().IsSatisfiedBy(cornell))

	assert.True(t, ParseQuery("").Specification().IsSatisfiedBy(winterland))
}

func TestQuerySpecification_SQL(t *testing.T) {
	sql, params := ParseQuery("1977-05-08").Specification().ToSQL()
	assert.Equal(t, "show_date LIKE ? ESCAPE '!'", sql)
	assert.Equal(t, []interface{}{"1977-05-08%"}, params)

	sql, params = ParseQuery("1970s").Specification().ToSQL()
	assert.Equal(t, "show_year BETWEEN ? AND ?", sql)
	assert.Equal(t, []interface{}{1970, 1979}, params)

	_, params = ParseQuery("100%_pure").Specification().ToSQL()
	assert.Len(t, params, 4)
	assert.Equal(t, "%100!%!_pure%", params[0])
}
