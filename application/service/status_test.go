package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusWriterUpdateAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := NewStatusWriter(path, testLogger())

	assert.Equal(t, PhaseIdle, w.Snapshot().Phase)

	w.Update(func(r *StatusRecord) {
		r.Phase = PhaseExtract
		r.ArchivesTotal = 3
	})

	snap := w.Snapshot()
	assert.Equal(t, PhaseExtract, snap.Phase)
	assert.Equal(t, 3, snap.ArchivesTotal)
	assert.False(t, snap.UpdatedAt.IsZero())

	// The file mirrors the in-memory record.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk StatusRecord
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, PhaseExtract, onDisk.Phase)
	assert.Equal(t, 3, onDisk.ArchivesTotal)
}

func TestStatusWriterCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "status.json")
	w := NewStatusWriter(path, testLogger())
	w.Update(func(r *StatusRecord) { r.Phase = PhaseDone })

	record, err := ReadStatus(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, record.Phase)
}

func TestReadStatusMissingFileIsIdle(t *testing.T) {
	record, err := ReadStatus(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, record.Phase)
}

func TestReadStatusCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))
	_, err := ReadStatus(path)
	require.Error(t, err)
}
