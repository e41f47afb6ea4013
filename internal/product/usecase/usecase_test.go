package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/database"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	mfrRepo "github.com/fekuna/omnipos-product-dal/internal/manufacturer/repository"
	"github.com/fekuna/omnipos-product-dal/internal/product"
	"github.com/fekuna/omnipos-product-dal/internal/product/dto"
	"github.com/fekuna/omnipos-product-dal/internal/product/repository"
	"github.com/fekuna/omnipos-product-dal/internal/product/usecase"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestUseCase(t *testing.T) (product.UseCase, *dal.Stack) {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := schema.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("failed to compile registry: %v", err)
	}

	stack := dal.NewStack(dal.StackConfig{
		DB:            db,
		Registry:      registry,
		WriterOptions: []dal.WriterOption{dal.WithHooks(schema.CategoryTreeIndexer)},
	})
	uc := usecase.NewProductUseCase(repository.NewDALRepository(stack), mfrRepo.NewDALRepository(stack), logger.NewNop())
	return uc, stack
}

func createProduct(t *testing.T, uc product.UseCase, input *dto.CreateProductInput) *dto.CreateProductInput {
	t.Helper()
	if input.ManufacturerName == "" && input.ManufacturerID == "" {
		input.ManufacturerName = "Acme"
	}
	if _, err := uc.CreateProduct(context.Background(), input); err != nil {
		t.Fatalf("create product %q: %v", input.Name, err)
	}
	return input
}

func stockOf(t *testing.T, uc product.UseCase, id string) int64 {
	t.Helper()
	p, err := uc.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p == nil {
		t.Fatalf("product %s not found", id)
	}
	return p.Stock
}

func ptr[T any](v T) *T {
	return &v
}

// ============================================================================
// Tests
// ============================================================================

func TestBuildCriteria(t *testing.T) {
	tests := []struct {
		name    string
		filters *dto.ProductFilters
		want    *dal.Criteria
	}{
		{
			name:    "nil filters",
			filters: nil,
			want:    dal.NewCriteria().AddSorting("createdAt", dal.Descending),
		},
		{
			name: "all filters",
			filters: &dto.ProductFilters{
				CategoryID:  "c1",
				ParentID:    ptr(""),
				IsActive:    ptr(true),
				SearchQuery: "shirt",
				SortBy:      "price",
				SortOrder:   "ASC",
				Page:        3,
				PageSize:    10,
			},
			want: &dal.Criteria{
				Filters: []dal.Filter{
					dal.Term("categories.id", "c1"),
					dal.Term("parentId", nil),
					dal.Term("active", true),
					dal.AnyOf(dal.Match("name", "shirt"), dal.Match("ean", "shirt")),
				},
				Sortings: []dal.Sorting{{Field: "prices", Direction: dal.Ascending}},
				Limit:    10,
				Offset:   20,
			},
		},
		{
			name:    "variants of a product",
			filters: &dto.ProductFilters{ParentID: ptr("p1"), SortBy: "name"},
			want: &dal.Criteria{
				Filters:  []dal.Filter{dal.Term("parentId", "p1")},
				Sortings: []dal.Sorting{{Field: "name", Direction: dal.Descending}},
			},
		},
		{
			name:    "unknown sort field and first page",
			filters: &dto.ProductFilters{SortBy: "stock; DROP TABLE product", PageSize: 5},
			want: &dal.Criteria{
				Sortings: []dal.Sorting{{Field: "createdAt", Direction: dal.Descending}},
				Limit:    5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.BuildCriteria(tt.filters)
			if !reflect.DeepEqual(tt.want, got) {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	uc, stack := newTestUseCase(t)
	ctx := context.Background()

	categoryID := dal.NewID()
	if _, err := stack.Repository(schema.Category).Create(ctx, []map[string]any{
		{"id": categoryID, "name": "Shoes"},
	}, dal.DefaultContext()); err != nil {
		t.Fatalf("create category: %v", err)
	}

	created, err := uc.CreateProduct(ctx, &dto.CreateProductInput{
		Name:             "Sneaker",
		Description:      "Canvas",
		Price:            59.9,
		Stock:            12,
		EAN:              "4006381333931",
		ManufacturerName: "Acme",
		CategoryIDs:      []string{categoryID},
		Prices:           []dto.PriceInput{{Gross: 49.9, Net: 41.9}},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created == nil || created.ID == "" {
		t.Fatalf("expected the created product, got %v", created)
	}
	if created.Name != "Sneaker" || created.Price != 59.9 || created.Stock != 12 {
		t.Fatalf("unexpected product: %+v", created.ProductBasic)
	}
	if created.TaxID != dal.DefaultTaxID {
		t.Errorf("expected the default tax, got %s", created.TaxID)
	}
	if created.Description == nil || *created.Description != "Canvas" {
		t.Errorf("unexpected description: %v", created.Description)
	}
	if created.Manufacturer == nil || created.Manufacturer.Name != "Acme" {
		t.Errorf("expected the manufacturer to be loaded, got %v", created.Manufacturer)
	}
	if len(created.Categories) != 1 || created.Categories[0].ID != categoryID {
		t.Errorf("unexpected categories: %v", created.Categories)
	}
	if !reflect.DeepEqual([]string{categoryID}, created.CategoryTree) {
		t.Errorf("unexpected category tree: %v", created.CategoryTree)
	}
	if len(created.Prices) != 1 {
		t.Fatalf("expected one price, got %d", len(created.Prices))
	}
	price := created.Prices[0]
	if price.CurrencyID != dal.DefaultCurrencyID || price.QuantityStart != 1 || price.Gross != 49.9 {
		t.Errorf("unexpected price: %+v", price)
	}

	got, err := uc.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	missing, err := uc.GetProduct(ctx, dal.NewID())
	if err != nil || missing != nil {
		t.Fatalf("expected nil without error for a missing product, got %v (%v)", missing, err)
	}
}

func TestCreateProductReusesManufacturer(t *testing.T) {
	uc, stack := newTestUseCase(t)
	ctx := context.Background()

	first, err := uc.CreateProduct(ctx, &dto.CreateProductInput{Name: "Boot", Price: 80, ManufacturerName: "Acme"})
	if err != nil {
		t.Fatalf("create first product: %v", err)
	}
	second, err := uc.CreateProduct(ctx, &dto.CreateProductInput{Name: "Sandal", Price: 30, ManufacturerName: "Acme"})
	if err != nil {
		t.Fatalf("create second product: %v", err)
	}
	if first.ManufacturerID != second.ManufacturerID {
		t.Fatalf("expected one manufacturer, got %s and %s", first.ManufacturerID, second.ManufacturerID)
	}

	result, err := stack.Repository(schema.Manufacturer).SearchIDs(ctx, dal.NewCriteria(), dal.DefaultContext())
	if err != nil {
		t.Fatalf("search manufacturers: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected one manufacturer row, got %d", result.Total)
	}
}

func TestCreateProductValidation(t *testing.T) {
	uc, _ := newTestUseCase(t)

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{Name: "Broken", Price: -1, ManufacturerName: "Acme"})
	var stackErr *dal.WriteStackError
	if !errors.As(err, &stackErr) {
		t.Fatalf("expected a write stack error, got %v", err)
	}
	if _, ok := stackErr.ToMap()["/price"]; !ok {
		t.Fatalf("expected a violation at /price, got %v", stackErr.ToMap())
	}
}

func TestListProducts(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	alpha := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Alpha", Price: 10})
	beta := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Beta", Price: 20})
	gamma := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Gamma", Price: 30})
	if _, err := uc.AddVariant(ctx, &dto.CreateVariantInput{ProductID: alpha.ID, Name: "Alpha XL"}); err != nil {
		t.Fatalf("add variant: %v", err)
	}

	tests := []struct {
		name      string
		filters   *dto.ProductFilters
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "main products by price",
			filters:   &dto.ProductFilters{ParentID: ptr(""), SortBy: "price", SortOrder: "asc", Page: 1, PageSize: 2},
			wantIDs:   []string{alpha.ID, beta.ID},
			wantTotal: 3,
		},
		{
			name:      "second page",
			filters:   &dto.ProductFilters{ParentID: ptr(""), SortBy: "price", SortOrder: "asc", Page: 2, PageSize: 2},
			wantIDs:   []string{gamma.ID},
			wantTotal: 3,
		},
		{
			name:      "search by name",
			filters:   &dto.ProductFilters{SearchQuery: "amm"},
			wantIDs:   []string{gamma.ID},
			wantTotal: 1,
		},
		{
			name:      "name descending",
			filters:   &dto.ProductFilters{ParentID: ptr(""), SortBy: "name"},
			wantIDs:   []string{gamma.ID, beta.ID, alpha.ID},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := uc.ListProducts(ctx, tt.filters)
			if err != nil {
				t.Fatalf("list products: %v", err)
			}
			ids := make([]string, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			if !reflect.DeepEqual(tt.wantIDs, ids) {
				t.Fatalf("expected %v, got %v", tt.wantIDs, ids)
			}
			if total != tt.wantTotal {
				t.Fatalf("expected total %d, got %d", tt.wantTotal, total)
			}
		})
	}
}

func TestAddVariant(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()
	parent := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Shirt", Price: 25, Stock: 4})

	variant, err := uc.AddVariant(ctx, &dto.CreateVariantInput{ProductID: parent.ID, Price: ptr(27.5)})
	if err != nil {
		t.Fatalf("add variant: %v", err)
	}
	if !variant.IsVariant() || *variant.ParentID != parent.ID {
		t.Fatalf("expected a variant of %s, got parent %v", parent.ID, variant.ParentID)
	}
	if variant.Name != "Shirt" || variant.Stock != 4 {
		t.Errorf("expected inherited name and stock, got %q and %d", variant.Name, variant.Stock)
	}
	if variant.Price != 27.5 {
		t.Errorf("expected the own price, got %v", variant.Price)
	}

	variants, err := uc.ListVariants(ctx, parent.ID)
	if err != nil {
		t.Fatalf("list variants: %v", err)
	}
	if len(variants) != 1 || variants[0].ID != variant.ID {
		t.Fatalf("unexpected variants: %v", variants)
	}

	if _, err := uc.AddVariant(ctx, &dto.CreateVariantInput{ProductID: variant.ID}); !errors.Is(err, product.ErrNestedVariant) {
		t.Fatalf("expected ErrNestedVariant, got %v", err)
	}
	if _, err := uc.AddVariant(ctx, &dto.CreateVariantInput{ProductID: dal.NewID()}); !errors.Is(err, product.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestUpdateProduct(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()
	p := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Mug", Price: 8, Stock: 3})

	updated, err := uc.UpdateProduct(ctx, &dto.UpdateProductInput{ID: p.ID, Name: ptr("Big Mug"), Stock: ptr(9), IsActive: ptr(false)})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Name != "Big Mug" || updated.Stock != 9 || updated.IsActive {
		t.Fatalf("unexpected product after update: %+v", updated.ProductBasic)
	}
	if updated.Price != 8 {
		t.Errorf("expected the price to be kept, got %v", updated.Price)
	}

	_, err = uc.UpdateProduct(ctx, &dto.UpdateProductInput{ID: dal.NewID(), Name: ptr("Ghost")})
	if !errors.Is(err, dal.ErrValidation) {
		t.Fatalf("expected a validation error for a missing product, got %v", err)
	}
}

func TestReserveStock(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	mug := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Mug", Price: 8, Stock: 10})
	cup := createProduct(t, uc, &dto.CreateProductInput{ID: dal.NewID(), Name: "Cup", Price: 5, Stock: 2})
	variant, err := uc.AddVariant(ctx, &dto.CreateVariantInput{ProductID: mug.ID, Name: "Mug Blue"})
	if err != nil {
		t.Fatalf("add variant: %v", err)
	}

	t.Run("deducts quantities", func(t *testing.T) {
		if err := uc.ReserveStock(ctx, map[string]int32{mug.ID: 4, cup.ID: 2}); err != nil {
			t.Fatalf("reserve stock: %v", err)
		}
		if got := stockOf(t, uc, mug.ID); got != 6 {
			t.Errorf("expected mug stock 6, got %d", got)
		}
		if got := stockOf(t, uc, cup.ID); got != 0 {
			t.Errorf("expected cup stock 0, got %d", got)
		}
	})

	t.Run("variant uses inherited stock", func(t *testing.T) {
		if err := uc.ReserveStock(ctx, map[string]int32{variant.ID: 1}); err != nil {
			t.Fatalf("reserve stock: %v", err)
		}
		if got := stockOf(t, uc, variant.ID); got != 5 {
			t.Errorf("expected variant stock 5, got %d", got)
		}
		if got := stockOf(t, uc, mug.ID); got != 6 {
			t.Errorf("expected the parent stock to be unchanged, got %d", got)
		}
	})

	t.Run("insufficient stock writes nothing", func(t *testing.T) {
		err := uc.ReserveStock(ctx, map[string]int32{mug.ID: 1, cup.ID: 1})
		if !errors.Is(err, product.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if got := stockOf(t, uc, mug.ID); got != 6 {
			t.Errorf("expected mug stock 6, got %d", got)
		}
	})

	t.Run("unknown product writes nothing", func(t *testing.T) {
		err := uc.ReserveStock(ctx, map[string]int32{mug.ID: 1, dal.NewID(): 1})
		if !errors.Is(err, product.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if got := stockOf(t, uc, mug.ID); got != 6 {
			t.Errorf("expected mug stock 6, got %d", got)
		}
	})

	t.Run("empty order", func(t *testing.T) {
		if err := uc.ReserveStock(ctx, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
