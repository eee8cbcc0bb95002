package search

import "context"

// Store is the vector-store contract used by the index writer, the
// memory subsystem, and the tool facade.
type Store interface {
	// Ensure creates the collection when absent. When the collection
	// exists with a different vector dimension it returns an error
	// wrapping ErrDimensionMismatch and leaves the collection intact.
	Ensure(ctx context.Context, dimension int) error

	// Recreate drops and recreates the collection at the given
	// dimension. The only destructive operation; callers must gate it
	// behind an explicit request.
	Recreate(ctx context.Context, dimension int) error

	// Upsert writes points in bounded chunks.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to k hits ranked by descending similarity.
	Search(ctx context.Context, vector []float32, k int, filters Filters) ([]Result, error)

	// Scroll pages through payloads matching the filters. A zero next
	// offset means the listing is exhausted.
	Scroll(ctx context.Context, filters Filters, limit int, offset uint64) ([]Result, uint64, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (uint64, error)
}

// Snapshotter is implemented by stores that support collection
// snapshots for backup and cross-host migration.
type Snapshotter interface {
	// SnapshotCreate takes a snapshot of the collection and returns
	// its name.
	SnapshotCreate(ctx context.Context) (string, error)

	// SnapshotList returns the names of existing snapshots.
	SnapshotList(ctx context.Context) ([]string, error)

	// SnapshotRestore recovers the collection from a snapshot given a
	// name, a URL, or a server-side file path.
	SnapshotRestore(ctx context.Context, location string) error
}
