package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry marks a row whose geometry cannot be parsed or
// normalized by the spatial store. Row-local: the row is reported and the
// batch continues.
var ErrInvalidGeometry = errors.New("geometry cannot be parsed")

// ReferenceNotFoundError reports a missing reference entity (city, service
// type, division type). Batch-fatal: there is nothing to reconcile against.
type ReferenceNotFoundError struct {
	Entity string
	Name   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q is not present in the database", e.Entity, e.Name)
}

// ValidationError reports a required input column missing from the document.
// Batch-fatal: surfaced before per-row processing begins.
type ValidationError struct {
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
	}
	return e.Reason
}

// AmbiguousMatchError reports more overlapping stored peers than the
// resolver is allowed to choose between. Row-local; never auto-resolved.
type AmbiguousMatchError struct {
	Kind  EntityKind
	Peers int
}

func (e *AmbiguousMatchError) Error() string {
	switch e.Kind {
	case KindBlock:
		return fmt.Sprintf("intersects %d other blocks, manual resolution required", e.Peers)
	case KindAdministrativeUnit, KindMunicipality:
		return fmt.Sprintf("overlaps %d existing divisions of the same kind, manual insertion required for nested divisions", e.Peers)
	case KindService:
		return fmt.Sprintf("overlaps %d existing objects, manual resolution required", e.Peers)
	}
	return fmt.Sprintf("overlaps %d existing buildings, manual resolution required", e.Peers)
}

func IsBatchFatal(err error) bool {
	var refErr *ReferenceNotFoundError
	var valErr *ValidationError
	return errors.As(err, &refErr) || errors.As(err, &valErr)
}
