package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-product-dal/internal/auth"
	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/manufacturer"
	"github.com/fekuna/omnipos-product-dal/internal/model"
	"github.com/fekuna/omnipos-product-dal/internal/product"
	"github.com/fekuna/omnipos-product-dal/internal/product/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type productUseCase struct {
	repo          product.Repository
	manufacturers manufacturer.Repository
	logger        logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, manufacturers manufacturer.Repository, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:          repo,
		manufacturers: manufacturers,
		logger:        log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.ProductDetail, error) {
	sc := auth.ShopContext(ctx)

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	taxID := input.TaxID
	if taxID == "" {
		taxID = dal.DefaultTaxID
	}

	payload := map[string]any{
		"id":     id,
		"name":   input.Name,
		"price":  input.Price,
		"stock":  input.Stock,
		"taxId":  taxID,
		"active": true,
	}
	if input.Description != "" {
		payload["description"] = input.Description
	}
	if input.EAN != "" {
		payload["ean"] = input.EAN
	}
	switch {
	case input.ManufacturerID != "":
		payload["manufacturerId"] = input.ManufacturerID
	case input.ManufacturerName != "":
		manufacturerID, err := uc.findManufacturer(ctx, input.ManufacturerName, sc)
		if err != nil {
			return nil, err
		}
		if manufacturerID != "" {
			payload["manufacturerId"] = manufacturerID
		} else {
			payload["manufacturer"] = map[string]any{"name": input.ManufacturerName}
		}
	}
	if len(input.CategoryIDs) > 0 {
		payload["categories"] = categoryRefs(input.CategoryIDs)
	}
	if len(input.Prices) > 0 {
		payload["prices"] = pricePayloads(input.Prices, sc)
	}

	if _, err := uc.repo.Create(ctx, []map[string]any{payload}, sc); err != nil {
		return nil, err
	}
	uc.logger.Info("product created", zap.String("product_id", id))

	return uc.GetProduct(ctx, id)
}

// findManufacturer returns the id of the first manufacturer with the given
// name, or "" when there is none.
func (uc *productUseCase) findManufacturer(ctx context.Context, name string, sc dal.ShopContext) (string, error) {
	criteria := dal.NewCriteria().
		AddFilter(dal.Term("name", name)).
		AddSorting("createdAt", dal.Ascending).
		SetLimit(1)

	result, err := uc.manufacturers.SearchIDs(ctx, criteria, sc)
	if err != nil {
		return "", fmt.Errorf("find manufacturer: %w", err)
	}
	if len(result.IDs) == 0 {
		return "", nil
	}
	return result.IDs[0], nil
}

// GetProduct returns nil without error when the product does not exist.
func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.ProductDetail, error) {
	products, err := uc.repo.ReadDetail(ctx, []string{id}, auth.ShopContext(ctx))
	if err != nil {
		return nil, err
	}
	p, ok := products.First()
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]*model.ProductBasic, int, error) {
	criteria := BuildCriteria(filters)
	products, total, err := uc.repo.Search(ctx, criteria, auth.ShopContext(ctx))
	if err != nil {
		return nil, 0, err
	}
	return products.All(), total, nil
}

// BuildCriteria translates list filters into search criteria.
func BuildCriteria(f *dto.ProductFilters) *dal.Criteria {
	c := dal.NewCriteria()
	if f == nil {
		return c.AddSorting("createdAt", dal.Descending)
	}

	if f.CategoryID != "" {
		c.AddFilter(dal.Term("categories.id", f.CategoryID))
	}
	if f.ParentID != nil {
		if *f.ParentID == "" {
			c.AddFilter(dal.Term("parentId", nil))
		} else {
			c.AddFilter(dal.Term("parentId", *f.ParentID))
		}
	}
	if f.IsActive != nil {
		c.AddFilter(dal.Term("active", *f.IsActive))
	}
	if f.SearchQuery != "" {
		c.AddFilter(dal.AnyOf(
			dal.Match("name", f.SearchQuery),
			dal.Match("ean", f.SearchQuery),
		))
	}

	direction := dal.Descending
	if strings.ToLower(f.SortOrder) == "asc" {
		direction = dal.Ascending
	}
	// whitelisted sort fields
	switch f.SortBy {
	case "name":
		c.AddSorting("name", direction)
	case "price":
		c.AddSorting("prices", direction)
	default:
		c.AddSorting("createdAt", direction)
	}

	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		c.SetLimit(f.PageSize).SetOffset((page - 1) * f.PageSize)
	}
	return c
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.ProductDetail, error) {
	sc := auth.ShopContext(ctx)

	payload := map[string]any{"id": input.ID}
	if input.Name != nil {
		payload["name"] = *input.Name
	}
	if input.Description != nil {
		payload["description"] = *input.Description
	}
	if input.Price != nil {
		payload["price"] = *input.Price
	}
	if input.Stock != nil {
		payload["stock"] = *input.Stock
	}
	if input.EAN != nil {
		payload["ean"] = *input.EAN
	}
	if input.TaxID != nil {
		payload["taxId"] = *input.TaxID
	}
	if input.ManufacturerID != nil {
		payload["manufacturerId"] = *input.ManufacturerID
	}
	if input.IsActive != nil {
		payload["active"] = *input.IsActive
	}
	if len(input.CategoryIDs) > 0 {
		payload["categories"] = categoryRefs(input.CategoryIDs)
	}

	if _, err := uc.repo.Update(ctx, []map[string]any{payload}, sc); err != nil {
		return nil, err
	}
	return uc.GetProduct(ctx, input.ID)
}

func (uc *productUseCase) AddVariant(ctx context.Context, input *dto.CreateVariantInput) (*model.ProductDetail, error) {
	sc := auth.ShopContext(ctx)

	parents, err := uc.repo.ReadBasic(ctx, []string{input.ProductID}, sc)
	if err != nil {
		return nil, err
	}
	parent, ok := parents.First()
	if !ok {
		return nil, product.ErrProductNotFound
	}
	if parent.IsVariant() {
		return nil, product.ErrNestedVariant
	}

	id := uuid.New().String()
	payload := map[string]any{
		"id":       id,
		"parentId": parent.ID,
	}
	if input.Name != "" {
		payload["name"] = input.Name
	}
	if input.Price != nil {
		payload["price"] = *input.Price
	}
	if input.Stock != nil {
		payload["stock"] = *input.Stock
	}
	if input.EAN != "" {
		payload["ean"] = input.EAN
	}

	if _, err := uc.repo.Create(ctx, []map[string]any{payload}, sc); err != nil {
		return nil, err
	}
	uc.logger.Info("variant created", zap.String("product_id", parent.ID), zap.String("variant_id", id))

	return uc.GetProduct(ctx, id)
}

func (uc *productUseCase) ListVariants(ctx context.Context, productID string) ([]*model.ProductBasic, error) {
	criteria := dal.NewCriteria().
		AddFilter(dal.Term("parentId", productID)).
		AddSorting("createdAt", dal.Ascending)

	variants, _, err := uc.repo.Search(ctx, criteria, auth.ShopContext(ctx))
	if err != nil {
		return nil, err
	}
	return variants.All(), nil
}

// ReserveStock deducts the ordered quantities from the effective stock of
// each product in a single write. Nothing is written when one product is
// missing or short.
func (uc *productUseCase) ReserveStock(ctx context.Context, items map[string]int32) error {
	if len(items) == 0 {
		return nil
	}
	sc := auth.ShopContext(ctx)

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	products, err := uc.repo.ReadBasic(ctx, ids, sc)
	if err != nil {
		return err
	}

	payloads := make([]map[string]any, 0, len(items))
	for _, id := range ids {
		canonical, ok := dal.NormalizeID(id)
		if !ok {
			return fmt.Errorf("%w: %s", product.ErrProductNotFound, id)
		}
		p, ok := products.Get(canonical)
		if !ok {
			return fmt.Errorf("%w: %s", product.ErrProductNotFound, id)
		}
		quantity := int64(items[id])
		if p.Stock < quantity {
			return fmt.Errorf("%w: %s has %d, %d requested", product.ErrInsufficientStock, p.ID, p.Stock, quantity)
		}
		payloads = append(payloads, map[string]any{"id": p.ID, "stock": p.Stock - quantity})
	}

	_, err = uc.repo.Update(ctx, payloads, sc)
	return err
}

func categoryRefs(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id})
	}
	return out
}

func pricePayloads(prices []dto.PriceInput, sc dal.ShopContext) []any {
	out := make([]any, 0, len(prices))
	for _, p := range prices {
		currency := p.CurrencyID
		if currency == "" {
			currency = sc.CurrencyID
		}
		start := p.QuantityStart
		if start == 0 {
			start = 1
		}
		payload := map[string]any{
			"currencyId":    currency,
			"quantityStart": start,
			"gross":         p.Gross,
			"net":           p.Net,
		}
		if p.RuleID != "" {
			payload["ruleId"] = p.RuleID
		}
		if p.QuantityEnd > 0 {
			payload["quantityEnd"] = p.QuantityEnd
		}
		out = append(out, payload)
	}
	return out
}
