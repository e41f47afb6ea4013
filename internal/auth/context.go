// Package auth resolves the shop context of an incoming request.
package auth

import (
	"context"
	"strings"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"google.golang.org/grpc/metadata"
)

// Metadata keys carrying the shop context.
const (
	MetadataShopID     = "x-shop-id"
	MetadataCatalogIDs = "x-catalog-ids"
	MetadataRuleIDs    = "x-rule-ids"
	MetadataCurrencyID = "x-currency-id"
	MetadataLanguageID = "x-language-id"
)

type shopContextKey struct{}

// WithShopContext stores the shop context in ctx.
func WithShopContext(ctx context.Context, sc dal.ShopContext) context.Context {
	return context.WithValue(ctx, shopContextKey{}, sc)
}

// ShopContext returns the shop context placed by the interceptor, falling
// back to the incoming metadata and then to the defaults.
func ShopContext(ctx context.Context) dal.ShopContext {
	if sc, ok := ctx.Value(shopContextKey{}).(dal.ShopContext); ok {
		return sc
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return dal.DefaultContext()
	}
	return FromMetadata(md)
}

// FromMetadata builds a shop context from request metadata. Missing values
// fall back to the default context.
func FromMetadata(md metadata.MD) dal.ShopContext {
	return dal.NewShopContext(
		first(md, MetadataShopID),
		list(md, MetadataCatalogIDs),
		list(md, MetadataRuleIDs),
		first(md, MetadataCurrencyID),
		first(md, MetadataLanguageID),
	)
}

func first(md metadata.MD, key string) string {
	if val := md.Get(key); len(val) > 0 {
		return strings.TrimSpace(val[0])
	}
	return ""
}

// list accepts repeated keys as well as comma separated values.
func list(md metadata.MD, key string) []string {
	var out []string
	for _, val := range md.Get(key) {
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
