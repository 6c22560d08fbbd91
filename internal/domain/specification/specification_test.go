package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type minYear int

func (s minYear) IsSatisfiedBy(year int) bool { return year >= int(s) }

func (s minYear) ToSQL() (string, []interface{}) { return "year >= ?", []interface{}{int(s)} }

type maxYear int

func (s maxYear) IsSatisfiedBy(year int) bool { return year <= int(s) }

func (s maxYear) ToSQL() (string, []interface{}) { return "year <= ?", []interface{}{int(s)} }

func TestComposition(t *testing.T) {
	seventies := And[int](minYear(1970), maxYear(1979))

	assert.True(t, seventies.IsSatisfiedBy(1977))
	assert.False(t, seventies.IsSatisfiedBy(1981))
	assert.True(t, Not(seventies).IsSatisfiedBy(1981))
	assert.True(t, Or[int](maxYear(1965), minYear(1990)).IsSatisfiedBy(1995))

	sql, params := seventies.ToSQL()
	assert.Equal(t, "(year >= ? AND year <= ?)", sql)
	assert.Equal(t, []interface{}{1970, 1979}, params)

	sql, params = Not(seventies).ToSQL()
	assert.Equal(t, "NOT ((year >= ? AND year <= ?))", sql)
	assert.Len(t, params, 2)
}

func TestAll(t *testing.T) {
	all := All[int]()
	assert.True(t, all.IsSatisfiedBy(0))

	sql, params := And[int]().ToSQL()
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}
