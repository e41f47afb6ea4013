package dto

type PriceInput struct {
	CurrencyID    string
	RuleID        string
	QuantityStart int
	QuantityEnd   int
	Gross         float64
	Net           float64
}

type CreateProductInput struct {
	ID               string // optional, generated when empty
	Name             string
	Description      string
	Price            float64
	Stock            int
	EAN              string
	TaxID            string
	ManufacturerID   string
	ManufacturerName string // creates a manufacturer when ManufacturerID is empty
	CategoryIDs      []string
	Prices           []PriceInput
}

// UpdateProductInput only changes the fields that are set.
type UpdateProductInput struct {
	ID             string
	Name           *string
	Description    *string
	Price          *float64
	Stock          *int
	EAN            *string
	TaxID          *string
	ManufacturerID *string
	IsActive       *bool
	CategoryIDs    []string // appended to the existing assignments
}

// CreateVariantInput creates a variant; unset fields are inherited from the parent.
type CreateVariantInput struct {
	ProductID string
	Name      string
	Price     *float64
	Stock     *int
	EAN       string
}
