package dal

import (
	"fmt"
	"sort"
	"strings"
)

// Violation codes.
const (
	CodeMissingRequired  = "MISSING_REQUIRED"
	CodeInvalidType      = "INVALID_TYPE"
	CodeUnknownField     = "UNKNOWN_FIELD"
	CodeReadOnly         = "READ_ONLY"
	CodeConstraint       = "CONSTRAINT_VIOLATION"
	CodeMissingReference = "MISSING_REFERENCE"
	CodeNotFound         = "NOT_FOUND"
)

// Violation is one rejected value of a write payload.
type Violation struct {
	// Row is the index of the root payload the violation belongs to.
	Row int
	// Entity is the definition of the offending row, possibly a nested one.
	Entity string
	// Pointer locates the value inside its root payload, e.g. "/price" or "/manufacturer/name".
	Pointer string
	Code    string
	Message string
}

// WriteStackError aggregates every violation of one write call.
type WriteStackError struct {
	Definition string
	Violations []Violation
}

func (e *WriteStackError) Error() string {
	pointers := make([]string, 0, len(e.Violations))
	seen := map[string]bool{}
	for _, v := range e.Violations {
		if !seen[v.Pointer] {
			seen[v.Pointer] = true
			pointers = append(pointers, v.Pointer)
		}
	}
	sort.Strings(pointers)
	return fmt.Sprintf("%s: %s: %d violation(s) at %s",
		ErrValidation.Error(), e.Definition, len(e.Violations), strings.Join(pointers, ", "))
}

func (e *WriteStackError) Unwrap() error {
	return ErrValidation
}

// ToMap groups the violation messages by pointer.
func (e *WriteStackError) ToMap() map[string][]string {
	out := make(map[string][]string, len(e.Violations))
	for _, v := range e.Violations {
		out[v.Pointer] = append(out[v.Pointer], v.Message)
	}
	return out
}

// Codes returns the violation codes keyed by pointer.
func (e *WriteStackError) Codes() map[string][]string {
	out := make(map[string][]string, len(e.Violations))
	for _, v := range e.Violations {
		out[v.Pointer] = append(out[v.Pointer], v.Code)
	}
	return out
}
