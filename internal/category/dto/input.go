package dto

type CreateCategoryInput struct {
	ParentID   *string
	Name       string
	Position   int
	ProductIDs []string // products assigned to the new category
}

type UpdateCategoryInput struct {
	ID       string
	ParentID *string
	Name     *string
	Position *int
	IsActive *bool
}
