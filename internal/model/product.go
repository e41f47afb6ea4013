package model

import "github.com/fekuna/omnipos-product-dal/internal/dal"

// ProductBasic is the basic projection of a product, inherited values applied.
type ProductBasic struct {
	BaseModel
	ParentID       *string       `json:"parent_id"`
	TaxID          string        `json:"tax_id"`
	ManufacturerID string        `json:"manufacturer_id"`
	Price          float64       `json:"price"`
	Stock          int64         `json:"stock"`
	IsActive       bool          `json:"is_active"`
	EAN            *string       `json:"ean"`
	Name           string        `json:"name"`
	Description    *string       `json:"description"`
	CategoryTree   []string      `json:"category_tree"`
	Tax            *Tax          `json:"tax,omitempty"`
	Manufacturer   *Manufacturer `json:"manufacturer,omitempty"`
	Prices         []PriceRule   `json:"prices"`
}

// IsVariant reports whether the product inherits from a parent.
func (p *ProductBasic) IsVariant() bool {
	return p.ParentID != nil
}

func ProductBasicFromRecord(r *dal.Record) *ProductBasic {
	if r == nil {
		return nil
	}
	return &ProductBasic{
		BaseModel:      baseFrom(r),
		ParentID:       r.StringPtr("parentId"),
		TaxID:          r.String("taxId"),
		ManufacturerID: r.String("manufacturerId"),
		Price:          r.Float("price"),
		Stock:          r.Int("stock"),
		IsActive:       r.Bool("active"),
		EAN:            r.StringPtr("ean"),
		Name:           r.String("name"),
		Description:    r.StringPtr("description"),
		CategoryTree:   r.Strings("categoryTree"),
		Tax:            TaxFromRecord(r.Related("tax")),
		Manufacturer:   ManufacturerFromRecord(r.Related("manufacturer")),
		Prices:         collect(r.Collection("prices"), PriceRuleFromRecord),
	}
}

// ProductDetail adds the detail-only associations.
type ProductDetail struct {
	ProductBasic
	Media      []ProductMedia `json:"media"`
	Categories []Category     `json:"categories"`
}

func ProductDetailFromRecord(r *dal.Record) *ProductDetail {
	if r == nil {
		return nil
	}
	return &ProductDetail{
		ProductBasic: *ProductBasicFromRecord(r),
		Media:        collect(r.Collection("media"), ProductMediaFromRecord),
		Categories:   collect(r.Collection("categories"), CategoryFromRecord),
	}
}

type PriceRule struct {
	ID            string  `json:"id"`
	ProductID     string  `json:"product_id"`
	CurrencyID    string  `json:"currency_id"`
	QuantityStart int64   `json:"quantity_start"`
	QuantityEnd   *int64  `json:"quantity_end"`
	RuleID        *string `json:"rule_id"`
	Gross         float64 `json:"gross"`
	Net           float64 `json:"net"`
	Position      *int64  `json:"position"`
}

func (p PriceRule) GetID() string {
	return p.ID
}

func PriceRuleFromRecord(r *dal.Record) *PriceRule {
	if r == nil {
		return nil
	}
	return &PriceRule{
		ID:            r.ID,
		ProductID:     r.String("productId"),
		CurrencyID:    r.String("currencyId"),
		QuantityStart: r.Int("quantityStart"),
		QuantityEnd:   r.IntPtr("quantityEnd"),
		RuleID:        r.StringPtr("ruleId"),
		Gross:         r.Float("gross"),
		Net:           r.Float("net"),
		Position:      r.IntPtr("position"),
	}
}
