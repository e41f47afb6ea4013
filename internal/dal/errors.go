package dal

import "errors"

var (
	// ErrUnknownDefinition is returned when no definition is registered under a name.
	ErrUnknownDefinition = errors.New("dal: unknown entity definition")

	// ErrUnknownField is returned when a field path does not resolve on a definition.
	ErrUnknownField = errors.New("dal: unknown field")

	// ErrValidation is wrapped by every WriteStackError.
	ErrValidation = errors.New("dal: write validation failed")

	// ErrWriteFailed is returned when the storage layer fails inside a write transaction.
	ErrWriteFailed = errors.New("dal: write failed")

	// ErrInvalidCriteria is returned when a criteria cannot be compiled into a query.
	ErrInvalidCriteria = errors.New("dal: invalid criteria")

	// ErrUnsupportedProjection is returned when a definition cannot be read in the requested projection.
	ErrUnsupportedProjection = errors.New("dal: unsupported projection")
)
