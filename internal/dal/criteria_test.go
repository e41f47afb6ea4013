package dal_test

import (
	"errors"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
)

func TestCriteriaFromMap(t *testing.T) {
	raw := map[string]any{
		"filters": []any{
			map[string]any{"type": "term", "field": "product.active", "value": true},
			map[string]any{"type": "terms", "field": "product.id", "values": []any{"a", "b"}},
			map[string]any{"type": "range", "field": "product.price", "gte": 10.0, "lt": 20.0},
			map[string]any{"type": "match", "field": "product.name", "value": "shirt"},
			map[string]any{"type": "not", "filters": []any{
				map[string]any{"type": "term", "field": "product.parentId", "value": nil},
			}},
			map[string]any{"type": "multi", "operator": "or", "filters": []any{
				map[string]any{"type": "term", "field": "product.stock", "value": 0.0},
				map[string]any{"type": "match", "field": "product.ean", "value": "400"},
			}},
		},
		"sortings": []any{
			map[string]any{"field": "product.prices", "direction": "desc"},
			map[string]any{"field": "product.name"},
		},
		"limit":  25.0,
		"offset": 50.0,
	}

	c, err := dal.CriteriaFromMap(raw)
	assertNoError(t, err)

	want := &dal.Criteria{
		Filters: []dal.Filter{
			dal.Term("product.active", true),
			dal.Terms("product.id", "a", "b"),
			dal.RangeFilter{Field: "product.price", GTE: 10.0, LT: 20.0},
			dal.Match("product.name", "shirt"),
			dal.Not(dal.Term("product.parentId", nil)),
			dal.AnyOf(dal.Term("product.stock", 0.0), dal.Match("product.ean", "400")),
		},
		Sortings: []dal.Sorting{
			{Field: "product.prices", Direction: dal.Descending},
			{Field: "product.name", Direction: dal.Ascending},
		},
		Limit:  25,
		Offset: 50,
	}
	assertEqual(t, want, c)
}

func TestCriteriaFromMapErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"filters not a list", map[string]any{"filters": "price"}},
		{"filter not an object", map[string]any{"filters": []any{"price"}}},
		{"unknown filter type", map[string]any{"filters": []any{map[string]any{"type": "fuzzy"}}}},
		{"unknown nested filter type", map[string]any{"filters": []any{
			map[string]any{"type": "not", "filters": []any{map[string]any{"type": "near"}}},
		}}},
		{"sortings not a list", map[string]any{"sortings": map[string]any{}}},
		{"sorting without field", map[string]any{"sortings": []any{map[string]any{"direction": "asc"}}}},
		{"negative limit", map[string]any{"limit": -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dal.CriteriaFromMap(tt.raw)
			if !errors.Is(err, dal.ErrInvalidCriteria) {
				t.Fatalf("expected ErrInvalidCriteria, got %v", err)
			}
		})
	}
}

func TestCriteriaBuilder(t *testing.T) {
	c := dal.NewCriteria().
		AddFilter(dal.Term("active", true)).
		AddSorting("name", dal.Ascending).
		SetLimit(10).
		SetOffset(20)

	assertEqual(t, 1, len(c.Filters))
	assertEqual(t, []dal.Sorting{{Field: "name", Direction: dal.Ascending}}, c.Sortings)
	assertEqual(t, 10, c.Limit)
	assertEqual(t, 20, c.Offset)

	empty, err := dal.CriteriaFromMap(nil)
	assertNoError(t, err)
	assertEqual(t, dal.NewCriteria(), empty)
}
