// Package apperr holds sentinel errors shared across layers. Callers wrap
// them with context and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound marks an unknown collection or record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks two documents claiming the same record id.
	ErrConflict = errors.New("conflict")
	// ErrInvalidConfig marks a collection definition that cannot be built.
	ErrInvalidConfig = errors.New("invalid configuration")
)
