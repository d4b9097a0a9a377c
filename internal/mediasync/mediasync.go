// Package mediasync holds the domain model for the incremental
// synchronization engine: activations, watermarks, raw provider records,
// and the deduplicated feed entries the rest of the application consumes.
package mediasync

import "errors"

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)
