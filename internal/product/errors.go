package product

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrNestedVariant     = errors.New("variants cannot have variants")
	ErrInsufficientStock = errors.New("insufficient stock")
)
