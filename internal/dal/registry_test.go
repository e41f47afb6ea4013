package dal_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
)

func TestRegistryWriteOrder(t *testing.T) {
	registry, err := schema.NewRegistry()
	assertNoError(t, err)

	position := map[string]int{}
	for i, def := range registry.WriteOrder() {
		position[def.Name] = i
	}
	assertEqual(t, len(registry.Definitions()), len(position))

	before := [][2]string{
		{schema.Tax, schema.Product},
		{schema.Manufacturer, schema.Product},
		{schema.MediaAlbum, schema.Media},
		{schema.Media, schema.ProductMedia},
		{schema.Product, schema.ProductMedia},
		{schema.Product, schema.ProductCategory},
		{schema.Category, schema.ProductCategory},
		{schema.Category, schema.CategoryAttribute},
		{schema.Product, schema.PriceRule},
	}
	for _, pair := range before {
		if position[pair[0]] >= position[pair[1]] {
			t.Errorf("expected %s to be written before %s", pair[0], pair[1])
		}
	}
}

func TestRegistryResolvePath(t *testing.T) {
	registry, err := schema.NewRegistry()
	assertNoError(t, err)

	tests := []struct {
		name      string
		root      string
		path      string
		wantOwner string
		wantField string
		wantSteps int
	}{
		{"plain field", schema.Product, "price", schema.Product, "price", 0},
		{"root prefix", schema.Product, "product.price", schema.Product, "price", 0},
		{"many to one", schema.Product, "product.manufacturer.name", schema.Manufacturer, "name", 1},
		{"many to many", schema.Category, "category.products.price", schema.Product, "price", 1},
		{"nested", schema.Product, "media.media.album.name", schema.MediaAlbum, "name", 3},
		{"bare association", schema.Product, "categories", schema.Category, "id", 1},
		{"virtual field", schema.Product, "prices", schema.Product, "prices", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := registry.Definition(tt.root)
			assertNoError(t, err)
			path, err := registry.ResolvePath(root, tt.path)
			assertNoError(t, err)
			assertEqual(t, tt.wantOwner, path.Target().Name)
			assertEqual(t, tt.wantField, path.Field.Name)
			assertEqual(t, tt.wantSteps, len(path.Steps))

			cached, err := registry.ResolvePath(root, tt.path)
			assertNoError(t, err)
			if cached != path {
				t.Fatalf("expected the resolved path to be cached")
			}
		})
	}

	product, _ := registry.Definition(schema.Product)
	for _, path := range []string{"color", "manufacturer.color", "vendor.name", "tax.rate.value"} {
		if _, err := registry.ResolvePath(product, path); !errors.Is(err, dal.ErrUnknownField) {
			t.Errorf("%s: expected ErrUnknownField, got %v", path, err)
		}
	}
}

func TestRegistryCompileErrors(t *testing.T) {
	field := func(name string) *dal.Field {
		return &dal.Field{Name: name, Column: name, Kind: dal.KindID}
	}
	tests := []struct {
		name string
		defs []*dal.Definition
		want string
	}{
		{
			name: "unknown reference",
			defs: []*dal.Definition{{
				Name: "a", Table: "a", Fields: []*dal.Field{field("id"), field("bId")},
				Associations: []*dal.Association{{Name: "b", Kind: dal.ManyToOne, Reference: "b", LocalField: "bId"}},
			}},
			want: "unknown entity definition",
		},
		{
			name: "undeclared local field",
			defs: []*dal.Definition{
				{Name: "a", Table: "a", Fields: []*dal.Field{field("id")},
					Associations: []*dal.Association{{Name: "b", Kind: dal.ManyToOne, Reference: "b", LocalField: "bId"}}},
				{Name: "b", Table: "b", Fields: []*dal.Field{field("id")}},
			},
			want: "local field bId is not declared",
		},
		{
			name: "dependency cycle",
			defs: []*dal.Definition{
				{Name: "a", Table: "a", Fields: []*dal.Field{field("id"), field("bId")},
					Associations: []*dal.Association{{Name: "b", Kind: dal.ManyToOne, Reference: "b", LocalField: "bId"}}},
				{Name: "b", Table: "b", Fields: []*dal.Field{field("id"), field("aId")},
					Associations: []*dal.Association{{Name: "a", Kind: dal.ManyToOne, Reference: "a", LocalField: "aId"}}},
			},
			want: "dependency cycle",
		},
		{
			name: "missing primary key",
			defs: []*dal.Definition{{Name: "a", Table: "a", Fields: []*dal.Field{field("code")}}},
			want: "primary key field id is not declared",
		},
		{
			name: "translated without table",
			defs: []*dal.Definition{{Name: "a", Table: "a", Fields: []*dal.Field{
				field("id"),
				{Name: "name", Column: "name", Kind: dal.KindString, Translated: true},
			}}},
			want: "translated fields without translation table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := dal.NewRegistry()
			registry.Register(tt.defs...)
			err := registry.Compile()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRegistryDefinitionRequiresCompile(t *testing.T) {
	registry := dal.NewRegistry()
	registry.Register(&dal.Definition{Name: "a", Table: "a", Fields: []*dal.Field{{Name: "id", Column: "id", Kind: dal.KindID}}})
	if _, err := registry.Definition("a"); !errors.Is(err, dal.ErrUnknownDefinition) {
		t.Fatalf("expected ErrUnknownDefinition before compile, got %v", err)
	}

	assertNoError(t, registry.Compile())
	def, err := registry.Definition("a")
	assertNoError(t, err)
	assertEqual(t, "a", def.Name)
}
