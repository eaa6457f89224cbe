package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and index adapters return
// these (optionally wrapped) so services can translate them into coded domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: version or entity does not exist in the store
// - ErrConflict: write collided with existing state (e.g. slug already taken)
// - ErrInvalidState: row in wrong lifecycle state for the requested operation
// - ErrUnavailable: store or search index temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
