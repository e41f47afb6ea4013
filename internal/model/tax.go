package model

import "github.com/fekuna/omnipos-product-dal/internal/dal"

type Tax struct {
	BaseModel
	Name string  `json:"name"`
	Rate float64 `json:"rate"`
}

func TaxFromRecord(r *dal.Record) *Tax {
	if r == nil {
		return nil
	}
	return &Tax{
		BaseModel: baseFrom(r),
		Name:      r.String("name"),
		Rate:      r.Float("rate"),
	}
}

type Manufacturer struct {
	BaseModel
	Name string  `json:"name"`
	Link *string `json:"link"`
}

func ManufacturerFromRecord(r *dal.Record) *Manufacturer {
	if r == nil {
		return nil
	}
	return &Manufacturer{
		BaseModel: baseFrom(r),
		Name:      r.String("name"),
		Link:      r.StringPtr("link"),
	}
}
