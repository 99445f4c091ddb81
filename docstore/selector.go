package docstore

import (
	"errors"
	"slices"
)

// Operator identifies the comparison of a Predicate.
type Operator string

const (
	// OpEq matches when the field equals the value exactly (strings are case-sensitive).
	OpEq Operator = "eq"

	// OpGt matches when the field is a number greater than the value.
	OpGt Operator = "gt"
)

// Predicate is a single comparison on a top-level JSON field.
type Predicate struct {
	field string
	op    Operator
	value any
}

// Field returns the JSON field name.
func (p Predicate) Field() string { return p.field }

// Op returns the comparison operator.
func (p Predicate) Op() Operator { return p.op }

// Value returns the comparison value.
func (p Predicate) Value() any { return p.value }

// Selector is a conjunction of predicates. The zero value matches every document.
type Selector struct {
	predicates []Predicate
}

// Select starts building a Selector.
//
//	docstore.Select().Eq("subject", "Physics").Gt("available_copies", 0)
func Select() Selector {
	return Selector{}
}

// Eq adds an equality predicate. Supported values are strings, booleans and numbers.
func (s Selector) Eq(field string, value any) Selector {
	return s.with(Predicate{field: field, op: OpEq, value: normalizeValue(value)})
}

// Gt adds a numeric greater-than predicate.
func (s Selector) Gt(field string, value float64) Selector {
	return s.with(Predicate{field: field, op: OpGt, value: value})
}

// Predicates returns a copy of the predicates.
func (s Selector) Predicates() []Predicate {
	return slices.Clone(s.predicates)
}

// IsEmpty reports whether the selector has no predicates.
func (s Selector) IsEmpty() bool {
	return len(s.predicates) == 0
}

// Matches evaluates the selector against a JSON body.
func (s Selector) Matches(body []byte) (bool, error) {
	if s.IsEmpty() {
		return true, nil
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, errors.Join(ErrDecodingFailed, err)
	}

	for _, p := range s.predicates {
		actual, ok := fields[p.field]
		if !ok {
			return false, nil
		}

		switch p.op {
		case OpEq:
			if normalizeValue(actual) != p.value {
				return false, nil
			}

		case OpGt:
			number, isNumber := actual.(float64)
			threshold, _ := p.value.(float64)
			if !isNumber || number <= threshold {
				return false, nil
			}
		}
	}

	return true, nil
}

func (s Selector) with(p Predicate) Selector {
	predicates := make([]Predicate, 0, len(s.predicates)+1)
	predicates = append(predicates, s.predicates...)
	predicates = append(predicates, p)

	return Selector{predicates: predicates}
}

// normalizeValue maps all integer kinds onto float64, the type JSON numbers decode into.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
