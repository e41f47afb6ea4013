package dal

import (
	"fmt"
	"strings"
)

type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Filter is one condition of a Criteria. Field paths are dotted and may cross
// associations, e.g. "category.products.price".
type Filter interface {
	filter()
}

// TermFilter matches an exact value; a nil value matches NULL.
type TermFilter struct {
	Field string
	Value any
}

// TermsFilter matches any of the values.
type TermsFilter struct {
	Field  string
	Values []any
}

// RangeFilter bounds a value; nil bounds are ignored.
type RangeFilter struct {
	Field string
	GT    any
	GTE   any
	LT    any
	LTE   any
}

// MatchFilter is a case-insensitive contains match on a text field.
type MatchFilter struct {
	Field string
	Value string
}

// NotFilter negates the conjunction of its filters.
type NotFilter struct {
	Filters []Filter
}

type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// MultiFilter combines filters with AND or OR.
type MultiFilter struct {
	Operator Operator
	Filters  []Filter
}

func (TermFilter) filter()  {}
func (TermsFilter) filter() {}
func (RangeFilter) filter() {}
func (MatchFilter) filter() {}
func (NotFilter) filter()   {}
func (MultiFilter) filter() {}

func Term(field string, value any) TermFilter {
	return TermFilter{Field: field, Value: value}
}

func Terms(field string, values ...any) TermsFilter {
	return TermsFilter{Field: field, Values: values}
}

func Match(field, value string) MatchFilter {
	return MatchFilter{Field: field, Value: value}
}

func Not(filters ...Filter) NotFilter {
	return NotFilter{Filters: filters}
}

func AnyOf(filters ...Filter) MultiFilter {
	return MultiFilter{Operator: Or, Filters: filters}
}

func AllOf(filters ...Filter) MultiFilter {
	return MultiFilter{Operator: And, Filters: filters}
}

type Sorting struct {
	Field     string
	Direction Direction
}

// Criteria describes a search: filters are combined with AND.
type Criteria struct {
	Filters  []Filter
	Sortings []Sorting
	Offset   int
	// Limit of zero returns every match.
	Limit int
}

func NewCriteria() *Criteria {
	return &Criteria{}
}

func (c *Criteria) AddFilter(filters ...Filter) *Criteria {
	c.Filters = append(c.Filters, filters...)
	return c
}

func (c *Criteria) AddSorting(field string, direction Direction) *Criteria {
	c.Sortings = append(c.Sortings, Sorting{Field: field, Direction: direction})
	return c
}

func (c *Criteria) SetLimit(limit int) *Criteria {
	c.Limit = limit
	return c
}

func (c *Criteria) SetOffset(offset int) *Criteria {
	c.Offset = offset
	return c
}

// CriteriaFromMap decodes the wire form of a criteria:
//
//	{"filters": [{"type": "term", "field": "product.price", "value": 10}],
//	 "sortings": [{"field": "product.prices", "direction": "desc"}],
//	 "limit": 10, "offset": 0}
func CriteriaFromMap(m map[string]any) (*Criteria, error) {
	c := NewCriteria()
	if raw, ok := m["filters"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: filters must be a list", ErrInvalidCriteria)
		}
		for _, item := range list {
			f, err := filterFromMap(item)
			if err != nil {
				return nil, err
			}
			c.AddFilter(f)
		}
	}
	if raw, ok := m["sortings"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: sortings must be a list", ErrInvalidCriteria)
		}
		for _, item := range list {
			s, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: sorting must be an object", ErrInvalidCriteria)
			}
			field, _ := s["field"].(string)
			if field == "" {
				return nil, fmt.Errorf("%w: sorting without field", ErrInvalidCriteria)
			}
			direction := Ascending
			if d, _ := s["direction"].(string); strings.EqualFold(d, "desc") {
				direction = Descending
			}
			c.AddSorting(field, direction)
		}
	}
	if n, ok := m["limit"].(float64); ok {
		c.Limit = int(n)
	}
	if n, ok := m["offset"].(float64); ok {
		c.Offset = int(n)
	}
	if c.Limit < 0 || c.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidCriteria)
	}
	return c, nil
}

func filterFromMap(raw any) (Filter, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: filter must be an object", ErrInvalidCriteria)
	}
	typ, _ := m["type"].(string)
	field, _ := m["field"].(string)

	nested := func() ([]Filter, error) {
		list, _ := m["filters"].([]any)
		out := make([]Filter, 0, len(list))
		for _, item := range list {
			f, err := filterFromMap(item)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}

	switch strings.ToLower(typ) {
	case "term":
		return Term(field, m["value"]), nil
	case "terms":
		values, _ := m["values"].([]any)
		return Terms(field, values...), nil
	case "range":
		return RangeFilter{Field: field, GT: m["gt"], GTE: m["gte"], LT: m["lt"], LTE: m["lte"]}, nil
	case "match":
		value, _ := m["value"].(string)
		return Match(field, value), nil
	case "not":
		filters, err := nested()
		if err != nil {
			return nil, err
		}
		return Not(filters...), nil
	case "multi":
		filters, err := nested()
		if err != nil {
			return nil, err
		}
		op := And
		if o, _ := m["operator"].(string); strings.EqualFold(o, "or") {
			op = Or
		}
		return MultiFilter{Operator: op, Filters: filters}, nil
	}
	return nil, fmt.Errorf("%w: unknown filter type %q", ErrInvalidCriteria, typ)
}
