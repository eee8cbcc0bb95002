package doc

import "context"

// Cache tracks which archive contents have already been indexed, keyed
// by content hash. Implementations degrade gracefully: a broken cache
// means re-ingesting, never losing data.
type Cache interface {
	// Lookup returns the record for a content hash, with false when no
	// record exists.
	Lookup(ctx context.Context, hash string) (Record, bool, error)

	// MarkIndexed records a completed ingest, replacing any earlier
	// record for the same source path.
	MarkIndexed(ctx context.Context, record Record) error

	// Records returns every cache record.
	Records(ctx context.Context) ([]Record, error)

	// EraseAll drops all records, forcing the next ingest to process
	// every archive.
	EraseAll(ctx context.Context) error
}
