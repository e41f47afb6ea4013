package usecase

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/auth"
	"github.com/fekuna/omnipos-product-dal/internal/category"
	"github.com/fekuna/omnipos-product-dal/internal/category/dto"
	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/model"
	"github.com/google/uuid"
)

type categoryUseCase struct {
	repo   category.Repository
	logger logger.ZapLogger
}

func NewCategoryUseCase(repo category.Repository, log logger.ZapLogger) category.UseCase {
	return &categoryUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error) {
	id := uuid.New().String()
	payload := map[string]any{
		"id":   id,
		"name": input.Name,
	}
	if input.ParentID != nil && *input.ParentID != "" {
		payload["parentId"] = *input.ParentID
	}
	if input.Position > 0 {
		payload["position"] = input.Position
	}
	if len(input.ProductIDs) > 0 {
		products := make([]any, 0, len(input.ProductIDs))
		for _, pid := range input.ProductIDs {
			products = append(products, map[string]any{"id": pid})
		}
		payload["products"] = products
	}

	if _, err := uc.repo.Create(ctx, []map[string]any{payload}, auth.ShopContext(ctx)); err != nil {
		return nil, err
	}
	return uc.GetCategory(ctx, id)
}

func (uc *categoryUseCase) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	categories, err := uc.repo.ReadBasic(ctx, []string{id}, auth.ShopContext(ctx))
	if err != nil {
		return nil, err
	}
	c, ok := categories.First()
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context, filters *dto.CategoryFilters) ([]*model.Category, int, error) {
	if filters == nil {
		filters = &dto.CategoryFilters{}
	}
	criteria := dal.NewCriteria().
		AddSorting("position", dal.Ascending).
		AddSorting("name", dal.Ascending)
	if filters.ParentID != nil {
		if *filters.ParentID == "" {
			criteria.AddFilter(dal.Term("parentId", nil))
		} else {
			criteria.AddFilter(dal.Term("parentId", *filters.ParentID))
		}
	}
	if filters.IsActive != nil {
		criteria.AddFilter(dal.Term("active", *filters.IsActive))
	}
	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		criteria.SetLimit(filters.PageSize).SetOffset((page - 1) * filters.PageSize)
	}

	categories, total, err := uc.repo.Search(ctx, criteria, auth.ShopContext(ctx))
	if err != nil {
		return nil, 0, err
	}
	return categories.All(), total, nil
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (*model.Category, error) {
	sc := auth.ShopContext(ctx)

	payload := map[string]any{"id": input.ID}
	if input.ParentID != nil {
		if *input.ParentID == "" {
			payload["parentId"] = nil
		} else {
			if err := uc.checkAncestors(ctx, input.ID, *input.ParentID, sc); err != nil {
				return nil, err
			}
			payload["parentId"] = *input.ParentID
		}
	}
	if input.Name != nil {
		payload["name"] = *input.Name
	}
	if input.Position != nil {
		payload["position"] = *input.Position
	}
	if input.IsActive != nil {
		payload["active"] = *input.IsActive
	}

	if _, err := uc.repo.Update(ctx, []map[string]any{payload}, sc); err != nil {
		return nil, err
	}
	return uc.GetCategory(ctx, input.ID)
}

// checkAncestors rejects a parent that is the category itself or one of its descendants.
func (uc *categoryUseCase) checkAncestors(ctx context.Context, id, parentID string, sc dal.ShopContext) error {
	seen := map[string]bool{}
	for current := parentID; current != ""; {
		if current == id {
			return category.ErrCategoryCycle
		}
		if seen[current] {
			return category.ErrCategoryCycle
		}
		seen[current] = true

		categories, err := uc.repo.ReadBasic(ctx, []string{current}, sc)
		if err != nil {
			return err
		}
		c, ok := categories.First()
		if !ok {
			return category.ErrCategoryNotFound
		}
		if c.ParentID == nil {
			return nil
		}
		current = *c.ParentID
	}
	return nil
}
