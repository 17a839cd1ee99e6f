package store

import (
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNoFilter rejects an update or delete whose filter produced no
	// predicates. Without it an empty filter would scope the statement
	// to every row in the table.
	ErrNoFilter = apperrors.Validation("no filter supplied")

	// ErrNoFields rejects a partial update that names no fields.
	ErrNoFields = apperrors.Validation("no fields to update")
)

// InsertResult is the per-item outcome of a batch insert: the new row id
// or the error that prevented it. A failed item never aborts its
// siblings.
type InsertResult struct {
	ID  int64
	Err error
}
