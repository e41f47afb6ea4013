package product

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/model"
)

type Repository interface {
	Create(ctx context.Context, payloads []map[string]any, sc dal.ShopContext) (*dal.WriteResult, error)
	Upsert(ctx context.Context, payloads []map[string]any, sc dal.ShopContext) (*dal.WriteResult, error)
	Update(ctx context.Context, payloads []map[string]any, sc dal.ShopContext) (*dal.WriteResult, error)

	ReadBasic(ctx context.Context, ids []string, sc dal.ShopContext) (*dal.Collection[*model.ProductBasic], error)
	ReadDetail(ctx context.Context, ids []string, sc dal.ShopContext) (*dal.Collection[*model.ProductDetail], error)

	// Search returns one page of basic products and the unpaginated total.
	Search(ctx context.Context, criteria *dal.Criteria, sc dal.ShopContext) (*dal.Collection[*model.ProductBasic], int, error)
	SearchIDs(ctx context.Context, criteria *dal.Criteria, sc dal.ShopContext) (*dal.IDSearchResult, error)
}
