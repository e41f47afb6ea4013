package dto

type ProductFilters struct {
	CategoryID  string
	ParentID    *string // nil ignores, empty string means main products only
	IsActive    *bool
	SearchQuery string // name or ean
	SortBy      string // name, price, created_at
	SortOrder   string // asc, desc
	Page        int
	PageSize    int
}
