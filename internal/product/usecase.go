package product

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/model"
	"github.com/fekuna/omnipos-product-dal/internal/product/dto"
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.ProductDetail, error)
	GetProduct(ctx context.Context, id string) (*model.ProductDetail, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]*model.ProductBasic, int, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.ProductDetail, error)

	// Variant ops
	AddVariant(ctx context.Context, input *dto.CreateVariantInput) (*model.ProductDetail, error)
	ListVariants(ctx context.Context, productID string) ([]*model.ProductBasic, error)

	ReserveStock(ctx context.Context, items map[string]int32) error
}
