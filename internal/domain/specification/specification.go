package specification

import "strings"

// Specification is a query predicate that can be evaluated in memory and
// rendered as a SQL WHERE fragment with positional parameters.
type Specification[T any] interface {
	// IsSatisfiedBy checks if the specification is satisfied by the candidate
	IsSatisfiedBy(candidate T) bool
	// ToSQL converts the specification to a WHERE clause and parameters
	ToSQL() (string, []interface{})
}

// And combines specifications so that all must hold
func And[T any](specs ...Specification[T]) Specification[T] {
	return &andSpecification[T]{specs: specs}
}

// Or combines specifications so that at least one must hold
func Or[T any](specs ...Specification[T]) Specification[T] {
	return &orSpecification[T]{specs: specs}
}

// Not negates a specification
func Not[T any](spec Specification[T]) Specification[T] {
	return &notSpecification[T]{spec: spec}
}

// All matches every candidate
func All[T any]() Specification[T] {
	return allSpecification[T]{}
}

type andSpecification[T any] struct {
	specs []Specification[T]
}

func (s *andSpecification[T]) IsSatisfiedBy(candidate T) bool {
	for _, spec := range s.specs {
		if !spec.IsSatisfiedBy(candidate) {
			return false
		}
	}
	return true
}

func (s *andSpecification[T]) ToSQL() (string, []interface{}) {
	return join(s.specs, " AND ")
}

type orSpecification[T any] struct {
	specs []Specification[T]
}

func (s *orSpecification[T]) IsSatisfiedBy(candidate T) bool {
	for _, spec := range s.specs {
		if spec.IsSatisfiedBy(candidate) {
			return true
		}
	}
	return false
}

func (s *orSpecification[T]) ToSQL() (string, []interface{}) {
	return join(s.specs, " OR ")
}

type notSpecification[T any] struct {
	spec Specification[T]
}

func (s *notSpecification[T]) IsSatisfiedBy(candidate T) bool {
	return !s.spec.IsSatisfiedBy(candidate)
}

func (s *notSpecification[T]) ToSQL() (string, []interface{}) {
	sql, params := s.spec.ToSQL()
	return "NOT (" + sql + ")", params
}

type allSpecification[T any] struct{}

func (allSpecification[T]) IsSatisfiedBy(T) bool { return true }

func (allSpecification[T]) ToSQL() (string, []interface{}) { return "1 = 1", nil }

func join[T any](specs []Specification[T], op string) (string, []interface{}) {
	if len(specs) == 0 {
		return "1 = 1", nil
	}

	parts := make([]string, 0, len(specs))
	var params []interface{}
	for _, spec := range specs {
		sql, p := spec.ToSQL()
		parts = append(parts, sql)
		params = append(params, p...)
	}

	return "(" + strings.Join(parts, op) + ")", params
}
