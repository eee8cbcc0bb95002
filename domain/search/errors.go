package search

import "errors"

// ErrDimensionMismatch indicates the collection exists with a vector
// dimension different from the active backend's. Destructive guard:
// resolving it requires an explicit recreate.
var ErrDimensionMismatch = errors.New("collection dimension mismatch")

// ErrNotFound indicates a topic or point is absent from the index.
var ErrNotFound = errors.New("not found")
