package category

import "errors"

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryCycle    = errors.New("category cannot be its own ancestor")
)
