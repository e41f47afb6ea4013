package model

import (
	"strconv"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
)

type Category struct {
	BaseModel
	ParentID  *string            `json:"parent_id"`
	Name      string             `json:"name"`
	Position  *int64             `json:"position"`
	IsActive  bool               `json:"is_active"`
	Attribute *CategoryAttribute `json:"attribute,omitempty"`
}

func CategoryFromRecord(r *dal.Record) *Category {
	if r == nil {
		return nil
	}
	return &Category{
		BaseModel: baseFrom(r),
		ParentID:  r.StringPtr("parentId"),
		Name:      r.String("name"),
		Position:  r.IntPtr("position"),
		IsActive:  r.Bool("active"),
		Attribute: CategoryAttributeFromRecord(r.Related("attribute")),
	}
}

// CategoryAttribute carries the free-form attribute columns of a category.
type CategoryAttribute struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Attributes [6]string `json:"attributes"`
}

func (a CategoryAttribute) GetID() string {
	return a.ID
}

func CategoryAttributeFromRecord(r *dal.Record) *CategoryAttribute {
	if r == nil {
		return nil
	}
	a := &CategoryAttribute{ID: r.ID, CategoryID: r.String("categoryId")}
	for i := range a.Attributes {
		a.Attributes[i] = r.String("attribute" + strconv.Itoa(i+1))
	}
	return a
}
