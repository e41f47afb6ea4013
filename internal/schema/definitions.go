// Package schema declares the catalog entities: taxes, manufacturers, media,
// categories and products with their variants, price rules and translations.
package schema

import (
	"github.com/fekuna/omnipos-product-dal/internal/dal"
)

// Definition names.
const (
	Tax               = "tax"
	Manufacturer      = "product_manufacturer"
	MediaAlbum        = "media_album"
	Media             = "media"
	Category          = "category"
	CategoryAttribute = "category_attribute"
	Product           = "product"
	ProductCategory   = "product_category"
	ProductMedia      = "product_media"
	PriceRule         = "product_price_rule"
)

func idField() *dal.Field {
	return &dal.Field{Name: "id", Column: "id", Kind: dal.KindID}
}

func manyToOne(name, reference, localField string, load dal.LoadMode) *dal.Association {
	return &dal.Association{Name: name, Kind: dal.ManyToOne, Reference: reference, LocalField: localField, Load: load}
}

// NewRegistry registers and compiles every catalog definition.
func NewRegistry() (*dal.Registry, error) {
	r := dal.NewRegistry()
	r.Register(
		taxDefinition(),
		manufacturerDefinition(),
		mediaAlbumDefinition(),
		mediaDefinition(),
		categoryDefinition(),
		categoryAttributeDefinition(),
		productDefinition(),
		productCategoryDefinition(),
		productMediaDefinition(),
		priceRuleDefinition(),
	)
	if err := r.Compile(); err != nil {
		return nil, err
	}
	return r, nil
}

func taxDefinition() *dal.Definition {
	return &dal.Definition{
		Name:       Tax,
		Table:      "tax",
		Timestamps: true,
		Fields: []*dal.Field{
			idField(),
			{Name: "name", Column: "name", Kind: dal.KindString, Required: true, Rules: "max=255"},
			{Name: "rate", Column: "rate", Kind: dal.KindFloat, Required: true, Rules: "gte=0,lte=100"},
		},
	}
}

func manufacturerDefinition() *dal.Definition {
	return &dal.Definition{
		Name:       Manufacturer,
		Table:      "product_manufacturer",
		Timestamps: true,
		Fields: []*dal.Field{
			idField(),
			{Name: "name", Column: "name", Kind: dal.KindString, Required: true, Rules: "max=255"},
			{Name: "link", Column: "link", Kind: dal.KindString, Rules: "max=255"},
		},
		Associations: []*dal.Association{
			{Name: "products", Kind: dal.OneToMany, Reference: Product, ReferenceField: "manufacturerId"},
		},
	}
}

func mediaAlbumDefinition() *dal.Definition {
	return &dal.Definition{
		Name:  MediaAlbum,
		Table: "media_album",
		Fields: []*dal.Field{
			idField(),
			{Name: "name", Column: "name", Kind: dal.KindString, Required: true, Rules: "max=255"},
			{Name: "position", Column: "position", Kind: dal.KindInt},
		},
		Defaults: map[string]any{"position": 1},
	}
}

func mediaDefinition() *dal.Definition {
	return &dal.Definition{
		Name:       Media,
		Table:      "media",
		Timestamps: true,
		Fields: []*dal.Field{
			idField(),
			{Name: "albumId", Column: "album_id", Kind: dal.KindID, Required: true},
			{Name: "fileName", Column: "file_name", Kind: dal.KindString, Required: true},
			{Name: "mimeType", Column: "mime_type", Kind: dal.KindString, Required: true},
			{Name: "fileSize", Column: "file_size", Kind: dal.KindInt, Rules: "gte=0"},
			{Name: "name", Column: "name", Kind: dal.KindString},
		},
		Associations: []*dal.Association{
			manyToOne("album", MediaAlbum, "albumId", dal.LoadBasic),
		},
		Defaults: map[string]any{"fileSize": 0},
	}
}

func categoryDefinition() *dal.Definition {
	return &dal.Definition{
		Name:        Category,
		Table:       "category",
		Timestamps:  true,
		Fields: []*dal.Field{
			idField(),
			{Name: "parentId", Column: "parent_id", Kind: dal.KindID},
			{Name: "name", Column: "name", Kind: dal.KindString, Required: true, Rules: "max=255"},
			{Name: "position", Column: "position", Kind: dal.KindInt},
			{Name: "active", Column: "active", Kind: dal.KindBool},
		},
		Associations: []*dal.Association{
			manyToOne("parent", Category, "parentId", dal.LoadNone),
			{
				Name:               "products",
				Kind:               dal.ManyToMany,
				Reference:          Product,
				Mapping:            ProductCategory,
				MappingLocal:       "categoryId",
				MappingReference:   "productId",
				ReferenceJoinField: "categoryJoinId",
			},
			{Name: "attribute", Kind: dal.OneToOne, Reference: CategoryAttribute, ReferenceField: "categoryId", Load: dal.LoadBasic},
		},
		Defaults: map[string]any{"active": true, "position": 1},
	}
}

// categoryAttributeDefinition is the free-form attribute extension of a category.
func categoryAttributeDefinition() *dal.Definition {
	fields := []*dal.Field{
		idField(),
		{Name: "categoryId", Column: "category_id", Kind: dal.KindID, Required: true},
	}
	for _, n := range []string{"1", "2", "3", "4", "5", "6"} {
		fields = append(fields, &dal.Field{Name: "attribute" + n, Column: "attribute" + n, Kind: dal.KindString})
	}
	return &dal.Definition{
		Name:   CategoryAttribute,
		Table:  "category_attribute",
		Fields: fields,
		Associations: []*dal.Association{
			manyToOne("category", Category, "categoryId", dal.LoadNone),
		},
	}
}

func productDefinition() *dal.Definition {
	return &dal.Definition{
		Name:        Product,
		Table:       "product",
		ParentField: "parentId",
		Timestamps:  true,
		Translation: &dal.Translation{
			Table:          "product_translation",
			ForeignKey:     "product_id",
			LanguageColumn: "language_id",
		},
		Fields: []*dal.Field{
			idField(),
			{Name: "parentId", Column: "parent_id", Kind: dal.KindID},
			{Name: "taxId", Column: "tax_id", Kind: dal.KindID, Required: true, Inherited: true},
			{Name: "manufacturerId", Column: "manufacturer_id", Kind: dal.KindID, Required: true, Inherited: true},
			{Name: "price", Column: "price", Kind: dal.KindFloat, Required: true, Inherited: true, Rules: "gte=0"},
			{Name: "stock", Column: "stock", Kind: dal.KindInt, Inherited: true},
			{Name: "active", Column: "active", Kind: dal.KindBool, Inherited: true},
			{Name: "ean", Column: "ean", Kind: dal.KindString, Inherited: true, Rules: "max=255"},
			{Name: "name", Column: "name", Kind: dal.KindString, Required: true, Translated: true, Inherited: true, Rules: "max=255"},
			{Name: "description", Column: "description", Kind: dal.KindString, Translated: true, Inherited: true},
			{Name: "categoryTree", Column: "category_tree", Kind: dal.KindJSON, ReadOnly: true, Inherited: true},
			{Name: "categoryJoinId", Column: "category_join_id", Kind: dal.KindID, ReadOnly: true},
			{Name: "prices", Kind: dal.KindFloat, Expression: priceExpression},
		},
		Associations: []*dal.Association{
			manyToOne("parent", Product, "parentId", dal.LoadNone),
			manyToOne("tax", Tax, "taxId", dal.LoadBasic),
			manyToOne("manufacturer", Manufacturer, "manufacturerId", dal.LoadBasic),
			{
				Name:           "prices",
				Kind:           dal.OneToMany,
				Reference:      PriceRule,
				ReferenceField: "productId",
				PositionField:  "position",
				Inherited:      true,
				Load:           dal.LoadBasic,
			},
			{
				Name:           "media",
				Kind:           dal.OneToMany,
				Reference:      ProductMedia,
				ReferenceField: "productId",
				PositionField:  "position",
				Inherited:      true,
				Load:           dal.LoadDetail,
			},
			{
				Name:             "categories",
				Kind:             dal.ManyToMany,
				Reference:        Category,
				Mapping:          ProductCategory,
				MappingLocal:     "productId",
				MappingReference: "categoryId",
				LocalJoinField:   "categoryJoinId",
				Inherited:        true,
				Load:             dal.LoadDetail,
			},
		},
		Defaults: map[string]any{"stock": 0, "active": true},
	}
}

func productCategoryDefinition() *dal.Definition {
	return &dal.Definition{
		Name:       ProductCategory,
		Table:      "product_category",
		PrimaryKey: []string{"productId", "categoryId"},
		Mapping:    true,
		Fields: []*dal.Field{
			{Name: "productId", Column: "product_id", Kind: dal.KindID},
			{Name: "categoryId", Column: "category_id", Kind: dal.KindID},
		},
		Associations: []*dal.Association{
			manyToOne("product", Product, "productId", dal.LoadNone),
			manyToOne("category", Category, "categoryId", dal.LoadNone),
		},
	}
}

func productMediaDefinition() *dal.Definition {
	return &dal.Definition{
		Name:       ProductMedia,
		Table:      "product_media",
		Timestamps: true,
		Fields: []*dal.Field{
			idField(),
			{Name: "productId", Column: "product_id", Kind: dal.KindID, Required: true},
			{Name: "mediaId", Column: "media_id", Kind: dal.KindID, Required: true},
			{Name: "isCover", Column: "is_cover", Kind: dal.KindBool},
			{Name: "position", Column: "position", Kind: dal.KindInt},
		},
		Associations: []*dal.Association{
			manyToOne("product", Product, "productId", dal.LoadNone),
			manyToOne("media", Media, "mediaId", dal.LoadBasic),
		},
		Defaults: map[string]any{"isCover": false},
	}
}

func priceRuleDefinition() *dal.Definition {
	return &dal.Definition{
		Name:  PriceRule,
		Table: "product_price_rule",
		Fields: []*dal.Field{
			idField(),
			{Name: "productId", Column: "product_id", Kind: dal.KindID, Required: true},
			{Name: "currencyId", Column: "currency_id", Kind: dal.KindID, Required: true},
			{Name: "quantityStart", Column: "quantity_start", Kind: dal.KindInt, Required: true, Rules: "gte=1"},
			{Name: "quantityEnd", Column: "quantity_end", Kind: dal.KindInt, Rules: "gte=1"},
			{Name: "ruleId", Column: "rule_id", Kind: dal.KindID},
			{Name: "gross", Column: "gross", Kind: dal.KindFloat, Required: true, Rules: "gte=0"},
			{Name: "net", Column: "net", Kind: dal.KindFloat, Required: true, Rules: "gte=0"},
			{Name: "position", Column: "position", Kind: dal.KindInt},
		},
		Associations: []*dal.Association{
			manyToOne("product", Product, "productId", dal.LoadNone),
		},
		Defaults: map[string]any{"quantityStart": 1},
	}
}
