package dal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
)

func TestSearchSortsByContextPrice(t *testing.T) {
	env := newTestEnv(t)
	ruleA := dal.NewID()
	id1, id2, id3 := dal.NewID(), dal.NewID(), dal.NewID()

	withRule := func(p map[string]any, gross float64) map[string]any {
		p["prices"] = []any{map[string]any{
			"currencyId": dal.DefaultCurrencyID,
			"ruleId":     ruleA,
			"gross":      gross,
			"net":        gross / 1.19,
		}}
		return p
	}
	env.upsert(t, schema.Product,
		withRule(productPayload(id1, "one", 1), 15),
		withRule(productPayload(id2, "two", 3), 5),
		withRule(productPayload(id3, "three", 2), 10),
	)

	withContextRule := dal.NewShopContext("", nil, []string{ruleA}, "", "")
	tests := []struct {
		name      string
		sc        dal.ShopContext
		direction dal.Direction
		want      []string
	}{
		{"rule ascending", withContextRule, dal.Ascending, []string{id2, id3, id1}},
		{"rule descending", withContextRule, dal.Descending, []string{id1, id3, id2}},
		{"fallback to price", dal.DefaultContext(), dal.Ascending, []string{id1, id3, id2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := dal.NewCriteria().
				AddFilter(dal.Terms("id", id1, id2, id3)).
				AddSorting("prices", tt.direction)
			result, err := env.repo(schema.Product).SearchIDs(context.Background(), criteria, tt.sc)
			assertNoError(t, err)
			assertEqual(t, tt.want, result.IDs)
			assertEqual(t, 3, result.Total)
		})
	}
}

func TestSearchTotalIgnoresPagination(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id := dal.NewID()
		ids = append(ids, id)
		env.upsert(t, schema.Product, productPayload(id, name, 1))
	}

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantIDs   []string
		wantTotal int
	}{
		{"first page", 2, 0, ids[:2], 3},
		{"second page", 2, 2, ids[2:], 3},
		{"offset without limit", 0, 1, ids[1:], 3},
		{"offset past the end", 0, 5, []string{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := dal.NewCriteria().
				AddSorting("name", dal.Ascending).
				SetLimit(tt.limit).
				SetOffset(tt.offset)
			result, err := env.repo(schema.Product).SearchIDs(context.Background(), criteria, dal.DefaultContext())
			assertNoError(t, err)
			assertEqual(t, tt.wantIDs, result.IDs)
			assertEqual(t, tt.wantTotal, result.Total)
		})
	}
}

func TestSearchFilters(t *testing.T) {
	env := newTestEnv(t)
	sneaker, boot, sandal := dal.NewID(), dal.NewID(), dal.NewID()
	s := productPayload(sneaker, "Running Sneaker", 50)
	s["ean"] = "4006381333931"
	b := productPayload(boot, "Winter Boot", 120)
	b["active"] = false
	env.upsert(t, schema.Product, s, b, productPayload(sandal, "Beach Sandal", 20))

	tests := []struct {
		name   string
		filter dal.Filter
		want   []string
	}{
		{"term", dal.Term("active", false), []string{boot}},
		{"terms", dal.Terms("id", sneaker, sandal), []string{sandal, sneaker}},
		{"match is case-insensitive", dal.Match("name", "SNEAK"), []string{sneaker}},
		{"range", dal.RangeFilter{Field: "price", GTE: 20.0, LT: 100.0}, []string{sandal, sneaker}},
		{"not", dal.Not(dal.Term("active", true)), []string{boot}},
		{"any of", dal.AnyOf(dal.Match("name", "boot"), dal.Match("ean", "333")), []string{sneaker, boot}},
		{"all of", dal.AllOf(dal.Term("active", true), dal.RangeFilter{Field: "price", GT: 30.0}), []string{sneaker}},
		{"null", dal.Term("ean", nil), []string{sandal, boot}},
		{"association", dal.Term("manufacturer.name", "Acme"), []string{sandal, sneaker, boot}},
		{"empty terms", dal.Terms("id"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := dal.NewCriteria().AddFilter(tt.filter).AddSorting("price", dal.Ascending)
			result, err := env.repo(schema.Product).SearchIDs(context.Background(), criteria, dal.DefaultContext())
			assertNoError(t, err)
			assertEqual(t, tt.want, result.IDs)
		})
	}
}

func TestSearchVariantsUseInheritedValues(t *testing.T) {
	env := newTestEnv(t)
	parentID, variantID, cheapVariantID := dal.NewID(), dal.NewID(), dal.NewID()
	env.upsert(t, schema.Product,
		productPayload(parentID, "Hoodie", 40),
		map[string]any{"id": variantID, "parentId": parentID},
		map[string]any{"id": cheapVariantID, "parentId": parentID, "price": 25.0},
	)

	criteria := dal.NewCriteria().
		AddFilter(dal.Match("name", "hoodie"), dal.Term("price", 40.0)).
		AddSorting("createdAt", dal.Ascending)
	result, err := env.repo(schema.Product).SearchIDs(context.Background(), criteria, dal.DefaultContext())
	assertNoError(t, err)
	assertEqual(t, map[string]bool{parentID: true, variantID: true}, toSet(result.IDs))

	roots, err := env.repo(schema.Product).SearchIDs(context.Background(),
		dal.NewCriteria().AddFilter(dal.Term("parentId", nil)), dal.DefaultContext())
	assertNoError(t, err)
	assertEqual(t, []string{parentID}, roots.IDs)
}

func TestSearchCategoriesByProductPrice(t *testing.T) {
	env := newTestEnv(t)
	cheap, pricey, child := dal.NewID(), dal.NewID(), dal.NewID()
	cheapProduct, priceyProduct, variantID := dal.NewID(), dal.NewID(), dal.NewID()

	env.upsert(t, schema.Category,
		map[string]any{"id": cheap, "name": "Cheap", "products": []any{productPayload(cheapProduct, "a", 10)}},
		map[string]any{"id": pricey, "name": "Pricey", "products": []any{productPayload(priceyProduct, "b", 100)}},
		map[string]any{"id": child, "parentId": pricey, "name": "Pricey child"},
	)
	// the variant has no categories of its own and joins through its parent
	env.upsert(t, schema.Product, map[string]any{"id": variantID, "parentId": priceyProduct, "price": 5.0})

	tests := []struct {
		name     string
		criteria *dal.Criteria
		want     []string
	}{
		{
			name:     "root categories",
			criteria: dal.NewCriteria().AddFilter(dal.Term("parentId", nil)),
			want:     []string{cheap, pricey},
		},
		{
			name:     "product price",
			criteria: dal.NewCriteria().AddFilter(dal.RangeFilter{Field: "category.products.price", GTE: 50.0}),
			want:     []string{pricey},
		},
		{
			name:     "inherited variant",
			criteria: dal.NewCriteria().AddFilter(dal.RangeFilter{Field: "category.products.price", LTE: 6.0}),
			want:     []string{pricey},
		},
		{
			name:     "no match",
			criteria: dal.NewCriteria().AddFilter(dal.RangeFilter{Field: "products.price", GT: 500.0}),
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.criteria.AddSorting("name", dal.Ascending)
			result, err := env.repo(schema.Category).SearchIDs(context.Background(), tt.criteria, dal.DefaultContext())
			assertNoError(t, err)
			assertEqual(t, tt.want, result.IDs)
			assertEqual(t, len(tt.want), result.Total)
		})
	}
}

func TestSearchManufacturersByProductPrice(t *testing.T) {
	env := newTestEnv(t)
	big, small := dal.NewID(), dal.NewID()
	smallProduct := dal.NewID()
	product := func(id string, price float64) map[string]any {
		return map[string]any{"id": id, "name": "item", "price": price, "taxId": dal.DefaultTaxID}
	}
	env.upsert(t, schema.Manufacturer,
		map[string]any{"id": big, "name": "Big", "products": []any{product(dal.NewID(), 100)}},
		map[string]any{"id": small, "name": "Small", "products": []any{product(smallProduct, 10)}},
	)

	search := func(t *testing.T) []string {
		t.Helper()
		criteria := dal.NewCriteria().
			AddFilter(dal.Term("product_manufacturer.products.price", 100.0)).
			AddSorting("name", dal.Ascending).
			SetLimit(10)
		result, err := env.repo(schema.Manufacturer).SearchIDs(context.Background(), criteria, dal.DefaultContext())
		assertNoError(t, err)
		assertEqual(t, len(result.IDs), result.Total)
		return result.IDs
	}
	assertEqual(t, []string{big}, search(t))

	// a variant inherits the manufacturer of its parent
	env.upsert(t, schema.Product, map[string]any{"id": dal.NewID(), "parentId": smallProduct, "price": 100.0})
	assertEqual(t, []string{big, small}, search(t))
}

func TestSearchTranslatedFallback(t *testing.T) {
	env := newTestEnv(t)
	german := dal.NewID()
	translated, untranslated := dal.NewID(), dal.NewID()
	env.upsert(t, schema.Product, productPayload(translated, "Shoe", 1), productPayload(untranslated, "Shirt", 2))

	germanContext := dal.NewShopContext("", nil, nil, "", german)
	_, err := env.repo(schema.Product).Update(context.Background(),
		[]map[string]any{{"id": translated, "name": "Schuh"}}, germanContext)
	assertNoError(t, err)

	criteria := dal.NewCriteria().AddFilter(dal.Terms("name", "Schuh", "Shirt"))
	result, err := env.repo(schema.Product).SearchIDs(context.Background(), criteria, germanContext)
	assertNoError(t, err)
	assertEqual(t, map[string]bool{translated: true, untranslated: true}, toSet(result.IDs))

	result, err = env.repo(schema.Product).SearchIDs(context.Background(), criteria, dal.DefaultContext())
	assertNoError(t, err)
	assertEqual(t, []string{untranslated}, result.IDs)
}

func TestSearchErrors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		definition string
		criteria   *dal.Criteria
		want       error
	}{
		{"unknown field", schema.Product, dal.NewCriteria().AddFilter(dal.Term("color", "red")), dal.ErrUnknownField},
		{"unknown association", schema.Product, dal.NewCriteria().AddFilter(dal.Term("vendor.name", "x")), dal.ErrUnknownField},
		{"invalid value", schema.Product, dal.NewCriteria().AddFilter(dal.Term("price", "cheap")), dal.ErrInvalidCriteria},
		{"invalid direction", schema.Product, &dal.Criteria{Sortings: []dal.Sorting{{Field: "name", Direction: "sideways"}}}, dal.ErrInvalidCriteria},
		{"invalid operator", schema.Product, dal.NewCriteria().AddFilter(dal.MultiFilter{Operator: "XOR"}), dal.ErrInvalidCriteria},
		{"mapping definition", schema.ProductCategory, dal.NewCriteria(), dal.ErrUnsupportedProjection},
		{"unknown definition", "unknown", dal.NewCriteria(), dal.ErrUnknownDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.repo(tt.definition).SearchIDs(context.Background(), tt.criteria, dal.DefaultContext())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRepositorySearchReturnsRecordsInOrder(t *testing.T) {
	env := newTestEnv(t)
	cheap, expensive := dal.NewID(), dal.NewID()
	env.upsert(t, schema.Product, productPayload(cheap, "cheap", 1), productPayload(expensive, "expensive", 99))

	result, err := env.repo(schema.Product).Search(context.Background(),
		dal.NewCriteria().AddSorting("price", dal.Descending).SetLimit(1), dal.DefaultContext())
	assertNoError(t, err)
	assertEqual(t, []string{expensive}, result.Records.IDs())
	assertEqual(t, 2, result.Total)
	rec, _ := result.Records.First()
	assertEqual(t, "Acme", rec.Related("manufacturer").String("name"))
}

func TestSearchWithoutCriteria(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.repo(schema.Tax).SearchIDs(context.Background(), nil, dal.DefaultContext())
	assertNoError(t, err)
	assertEqual(t, []string{dal.DefaultTaxID}, result.IDs)
	assertEqual(t, 1, result.Total)
}
