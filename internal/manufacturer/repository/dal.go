package repository

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/model"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
)

type DALRepository struct {
	*dal.Repository
}

func NewDALRepository(stack *dal.Stack) *DALRepository {
	return &DALRepository{Repository: stack.Repository(schema.Manufacturer)}
}

func (r *DALRepository) ReadBasic(ctx context.Context, ids []string, sc dal.ShopContext) (*dal.Collection[*model.Manufacturer], error) {
	records, err := r.Repository.ReadBasic(ctx, ids, sc)
	if err != nil {
		return nil, err
	}
	return dal.MapCollection(records, model.ManufacturerFromRecord), nil
}

func (r *DALRepository) Search(ctx context.Context, criteria *dal.Criteria, sc dal.ShopContext) (*dal.Collection[*model.Manufacturer], int, error) {
	result, err := r.Repository.Search(ctx, criteria, sc)
	if err != nil {
		return nil, 0, err
	}
	return dal.MapCollection(result.Records, model.ManufacturerFromRecord), result.Total, nil
}
