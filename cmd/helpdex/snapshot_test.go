package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdex/helpdex/domain/search"
)

// collectionSnapshots simulates a server-side collection with named
// snapshots: create copies the live points, restore brings a copy back.
type collectionSnapshots struct {
	live      map[uint64]search.Payload
	snapshots map[string]map[uint64]search.Payload
}

func newCollectionSnapshots() *collectionSnapshots {
	return &collectionSnapshots{
		live:      map[uint64]search.Payload{},
		snapshots: map[string]map[uint64]search.Payload{},
	}
}

func (c *collectionSnapshots) SnapshotCreate(context.Context) (string, error) {
	name := fmt.Sprintf("help_topics-%d.snapshot", len(c.snapshots)+1)
	copied := make(map[uint64]search.Payload, len(c.live))
	for id, p := range c.live {
		copied[id] = p
	}
	c.snapshots[name] = copied
	return name, nil
}

func (c *collectionSnapshots) SnapshotList(context.Context) ([]string, error) {
	names := make([]string, 0, len(c.snapshots))
	for name := range c.snapshots {
		names = append(names, name)
	}
	return names, nil
}

func (c *collectionSnapshots) SnapshotRestore(_ context.Context, location string) error {
	stored, ok := c.snapshots[location]
	if !ok {
		return fmt.Errorf("snapshot %s not found", location)
	}
	c.live = make(map[uint64]search.Payload, len(stored))
	for id, p := range stored {
		c.live[id] = p
	}
	return nil
}

func TestSnapshotCreateThenRestoreRoundTrip(t *testing.T) {
	snap := newCollectionSnapshots()
	ctx := context.Background()
	for id := uint64(1); id <= 3; id++ {
		snap.live[id] = search.NewPayload(
			fmt.Sprintf("topics/%d.html", id), "Тема", "текст", "8.3.24", "ru", search.DomainHelp)
	}

	var out bytes.Buffer
	require.NoError(t, runSnapshotCreate(ctx, snap, &out))
	name := strings.TrimSpace(out.String())
	require.NotEmpty(t, name)

	// Simulate the empty collection on the migration target.
	snap.live = map[uint64]search.Payload{}

	require.NoError(t, runSnapshotRestore(ctx, snap, name))
	assert.Len(t, snap.live, 3, "restore reproduces the point count")
	assert.Equal(t, "topics/2.html", snap.live[2].Path(), "payloads survive the round trip")
}

func TestSnapshotListPrintsNames(t *testing.T) {
	snap := newCollectionSnapshots()
	ctx := context.Background()
	_, err := snap.SnapshotCreate(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSnapshotList(ctx, snap, &out))
	assert.Contains(t, out.String(), "help_topics-1.snapshot")
}

func TestSnapshotRestoreUnknownName(t *testing.T) {
	err := runSnapshotRestore(context.Background(), newCollectionSnapshots(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
