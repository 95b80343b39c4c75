package store

import "errors"

var (
	// ErrNotFound is returned when a query succeeds but matches nothing.
	ErrNotFound = errors.New("no records found")
	// ErrInvalidQuery is returned before any storage call for a malformed request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStorageRead wraps storage failures on the query path.
	ErrStorageRead = errors.New("storage read failed")
	// ErrStorageWrite wraps a rejected bulk load.
	ErrStorageWrite = errors.New("storage write failed")
)
