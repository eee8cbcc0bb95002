package persistence

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdex/helpdex/domain/doc"
	"github.com/helpdex/helpdex/internal/database"
)

func newTestStore(t *testing.T) ArchiveRecordStore {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "cache.db")
	db, err := database.NewDatabase(context.Background(), url, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(db))
	return NewArchiveRecordStore(db)
}

func TestLookupMissReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, found, err := store.Lookup(context.Background(), "no-such-hash")
	require.NoError(t, err, "a cache miss is not an error")
	assert.False(t, found)
}

func TestMarkIndexedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	record := doc.NewRecord("hash-1", "/help/8.3.24/shcntx_ru.hbk", at, 120, "8.3.24", "ru")
	require.NoError(t, store.MarkIndexed(ctx, record))

	got, found, err := store.Lookup(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/help/8.3.24/shcntx_ru.hbk", got.Path())
	assert.Equal(t, doc.StatusIndexed, got.Status())
	assert.Equal(t, 120, got.TopicCount())
	assert.Equal(t, "8.3.24", got.Version())
	assert.Equal(t, "ru", got.Language())
	assert.True(t, got.Indexed())
}

func TestMarkIndexedReplacesStaleHashForSamePath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := "/help/8.3.24/shcntx_ru.hbk"
	require.NoError(t, store.MarkIndexed(ctx,
		doc.NewRecord("old-hash", path, time.Now(), 100, "8.3.24", "ru")))
	require.NoError(t, store.MarkIndexed(ctx,
		doc.NewRecord("new-hash", path, time.Now(), 105, "8.3.24", "ru")))

	_, found, err := store.Lookup(ctx, "old-hash")
	require.NoError(t, err)
	assert.False(t, found, "a changed archive must not leave its old hash behind")

	got, found, err := store.Lookup(ctx, "new-hash")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 105, got.TopicCount())

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMarkIndexedIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := doc.NewRecord("hash-1", "/p", time.Now(), 10, "v", "ru")
	require.NoError(t, store.MarkIndexed(ctx, record))
	require.NoError(t, store.MarkIndexed(ctx, record))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordsOrderedBySourcePath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkIndexed(ctx, doc.NewRecord("h2", "/b", time.Now(), 1, "v", "")))
	require.NoError(t, store.MarkIndexed(ctx, doc.NewRecord("h1", "/a", time.Now(), 1, "v", "")))
	require.NoError(t, store.MarkIndexed(ctx, doc.NewRecord("h3", "/c", time.Now(), 1, "v", "")))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "/a", records[0].Path())
	assert.Equal(t, "/b", records[1].Path())
	assert.Equal(t, "/c", records[2].Path())
}

func TestEraseAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkIndexed(ctx, doc.NewRecord("h1", "/a", time.Now(), 1, "v", "")))
	require.NoError(t, store.MarkIndexed(ctx, doc.NewRecord("h2", "/b", time.Now(), 1, "v", "")))
	require.NoError(t, store.EraseAll(ctx))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
