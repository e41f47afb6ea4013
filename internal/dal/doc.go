// Package dal provides the entity data-access layer: a definition registry,
// a transactional write stack, an inheritance-aware entity reader and a
// criteria based search engine.
//
// # Definitions
//
// Every storable entity is described by a [Definition] registered in a
// [Registry]. Definitions carry the scalar fields, the associations to other
// definitions and the optional translation table. [Registry.Compile] resolves
// association targets and derives the dependency order used by the writer.
//
// # Variants
//
// A definition with a ParentField supports variants. A variant row stores
// NULL for every field it does not own; readers and the search engine
// overlay the parent's value for inherited fields, exactly one level deep.
//
// # Projections
//
//   - raw: stored row, no inheritance, no associations
//   - basic: translation and parent overlay plus associations loaded in basic mode
//   - detail: basic plus associations loaded in detail mode
//
// # Errors
//
//   - [ErrValidation] - a write was rejected, see [WriteStackError]
//   - [ErrWriteFailed] - the storage layer failed inside a write transaction
//   - [ErrUnknownDefinition] - no definition registered under that name
//   - [ErrInvalidCriteria] - a criteria path or filter could not be compiled
package dal
