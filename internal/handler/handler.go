package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-product-dal/internal/auth"
	"github.com/fekuna/omnipos-product-dal/internal/category"
	catDTO "github.com/fekuna/omnipos-product-dal/internal/category/dto"
	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/model"
	"github.com/fekuna/omnipos-product-dal/internal/product"
	"github.com/fekuna/omnipos-product-dal/internal/product/dto"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type EntityHandler struct {
	stack      *dal.Stack
	productUC  product.UseCase
	categoryUC category.UseCase
	logger     logger.ZapLogger
}

func NewEntityHandler(stack *dal.Stack, productUC product.UseCase, categoryUC category.UseCase, log logger.ZapLogger) *EntityHandler {
	return &EntityHandler{
		stack:      stack,
		productUC:  productUC,
		categoryUC: categoryUC,
		logger:     log,
	}
}

// Write expects {"entity": "product", "mode": "create|upsert|update", "payloads": [...]}
// and answers {"events": [{"definition": ..., "ids": [...]}]}.
func (h *EntityHandler) Write(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	repo, err := h.repository(in)
	if err != nil {
		return nil, err
	}

	rawPayloads, ok := in["payloads"].([]any)
	if !ok || len(rawPayloads) == 0 {
		return nil, status.Error(codes.InvalidArgument, "payloads must be a non-empty list")
	}
	payloads := make([]map[string]any, 0, len(rawPayloads))
	for i, raw := range rawPayloads {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "payload %d must be an object", i)
		}
		payloads = append(payloads, m)
	}

	sc := auth.ShopContext(ctx)
	var result *dal.WriteResult
	mode, _ := in["mode"].(string)
	switch strings.ToLower(mode) {
	case "", "upsert":
		result, err = repo.Upsert(ctx, payloads, sc)
	case "create":
		result, err = repo.Create(ctx, payloads, sc)
	case "update":
		result, err = repo.Update(ctx, payloads, sc)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown write mode %q", mode)
	}
	if err != nil {
		h.logger.Warn("write failed", zap.String("entity", repo.Definition()), zap.Error(err))
		return nil, toStatus(err)
	}

	events := make([]any, 0, len(result.Events))
	for _, e := range result.Events {
		events = append(events, map[string]any{
			"definition": e.Definition,
			"ids":        stringList(e.IDs),
		})
	}
	return newStruct(map[string]any{"events": events})
}

// Read expects {"entity": ..., "ids": [...], "projection": "raw|basic|detail"}.
func (h *EntityHandler) Read(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	repo, err := h.repository(in)
	if err != nil {
		return nil, err
	}
	ids := toStrings(in["ids"])

	sc := auth.ShopContext(ctx)
	var records *dal.Collection[*dal.Record]
	projection, _ := in["projection"].(string)
	switch strings.ToLower(projection) {
	case "", "basic":
		records, err = repo.ReadBasic(ctx, ids, sc)
	case "raw":
		records, err = repo.ReadRaw(ctx, ids, sc)
	case "detail":
		records, err = repo.ReadDetail(ctx, ids, sc)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown projection %q", projection)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"records": recordList(records)})
}

// Search expects {"entity": ..., "criteria": {...}} and answers the ids of
// the page, the total and the basic records.
func (h *EntityHandler) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	repo, err := h.repository(in)
	if err != nil {
		return nil, err
	}

	raw, _ := in["criteria"].(map[string]any)
	criteria, err := dal.CriteriaFromMap(raw)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := repo.Search(ctx, criteria, auth.ShopContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"ids":     stringList(result.Records.IDs()),
		"total":   result.Total,
		"records": recordList(result.Records),
	})
}

// ListProducts expects the product list filters:
// {"category_id", "parent_id", "is_active", "search", "sort_by", "sort_order", "page", "page_size"}.
func (h *EntityHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	filters := &dto.ProductFilters{}
	filters.CategoryID, _ = in["category_id"].(string)
	filters.SearchQuery, _ = in["search"].(string)
	filters.SortBy, _ = in["sort_by"].(string)
	filters.SortOrder, _ = in["sort_order"].(string)
	if v, ok := in["parent_id"].(string); ok {
		filters.ParentID = &v
	}
	if v, ok := in["is_active"].(bool); ok {
		filters.IsActive = &v
	}
	if v, ok := in["page"].(float64); ok {
		filters.Page = int(v)
	}
	if v, ok := in["page_size"].(float64); ok {
		filters.PageSize = int(v)
	}

	products, total, err := h.productUC.ListProducts(ctx, filters)
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(products))
	for _, p := range products {
		items = append(items, productToMap(p))
	}
	return newStruct(map[string]any{"products": items, "total": total})
}

// ListCategories expects {"parent_id", "is_active", "page", "page_size"}.
func (h *EntityHandler) ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.AsMap()
	filters := &catDTO.CategoryFilters{}
	if v, ok := in["parent_id"].(string); ok {
		filters.ParentID = &v
	}
	if v, ok := in["is_active"].(bool); ok {
		filters.IsActive = &v
	}
	if v, ok := in["page"].(float64); ok {
		filters.Page = int(v)
	}
	if v, ok := in["page_size"].(float64); ok {
		filters.PageSize = int(v)
	}

	categories, total, err := h.categoryUC.ListCategories(ctx, filters)
	if err != nil {
		h.logger.Error("failed to list categories", zap.Error(err))
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(categories))
	for _, c := range categories {
		item := map[string]any{
			"id":        c.ID,
			"name":      c.Name,
			"is_active": c.IsActive,
		}
		if c.ParentID != nil {
			item["parent_id"] = *c.ParentID
		}
		if c.Position != nil {
			item["position"] = *c.Position
		}
		items = append(items, item)
	}
	return newStruct(map[string]any{"categories": items, "total": total})
}

func (h *EntityHandler) repository(in map[string]any) (*dal.Repository, error) {
	entity, _ := in["entity"].(string)
	if entity == "" {
		return nil, status.Error(codes.InvalidArgument, "entity is required")
	}
	if _, err := h.stack.Registry.Definition(entity); err != nil {
		return nil, toStatus(err)
	}
	return h.stack.Repository(entity), nil
}

func productToMap(p *model.ProductBasic) map[string]any {
	out := map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"price":           p.Price,
		"stock":           p.Stock,
		"is_active":       p.IsActive,
		"tax_id":          p.TaxID,
		"manufacturer_id": p.ManufacturerID,
		"category_tree":   stringList(p.CategoryTree),
	}
	if p.ParentID != nil {
		out["parent_id"] = *p.ParentID
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.EAN != nil {
		out["ean"] = *p.EAN
	}
	if p.Manufacturer != nil {
		out["manufacturer"] = map[string]any{"id": p.Manufacturer.ID, "name": p.Manufacturer.Name}
	}
	if p.Tax != nil {
		out["tax"] = map[string]any{"id": p.Tax.ID, "name": p.Tax.Name, "rate": p.Tax.Rate}
	}
	return out
}

func recordList(records *dal.Collection[*dal.Record]) []any {
	out := make([]any, 0, records.Len())
	for _, r := range records.All() {
		out = append(out, r.ToMap())
	}
	return out
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func toStrings(raw any) []string {
	list, _ := raw.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return s, nil
}
