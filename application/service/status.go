package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Phase identifies the stage an ingest run is in.
type Phase string

// Ingest phases.
const (
	PhaseIdle     Phase = "idle"
	PhaseDiscover Phase = "discover"
	PhaseExtract  Phase = "extract"
	PhaseEmbed    Phase = "embed"
	PhaseUpsert   Phase = "upsert"
	PhaseDone     Phase = "done"
)

// FolderProgress counts per source folder.
type FolderProgress struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// StatusRecord is the shared single-writer, multi-reader picture of
// the current or last ingest run.
type StatusRecord struct {
	Phase            Phase                     `json:"phase"`
	Backend          string                    `json:"backend"`
	Degraded         bool                      `json:"degraded"`
	StartedAt        time.Time                 `json:"started_at,omitzero"`
	UpdatedAt        time.Time                 `json:"updated_at,omitzero"`
	ArchivesTotal    int                       `json:"archives_total"`
	ArchivesDone     int                       `json:"archives_done"`
	ArchivesSkipped  int                       `json:"archives_skipped"`
	ArchivesFailed   int                       `json:"archives_failed"`
	TopicsSeen       int                       `json:"topics_seen"`
	TopicsEmbedded   int                       `json:"topics_embedded"`
	Folders          map[string]FolderProgress `json:"folders,omitempty"`
	TopicsPerSecond  float64                   `json:"topics_per_second"`
	ETASeconds       int64                     `json:"eta_seconds"`
}

// StatusWriter maintains the ingest status file. Writes are atomic
// (tmp file plus rename) and best-effort: a failed write is logged at
// warn level and never blocks the pipeline.
type StatusWriter struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	current StatusRecord
}

// NewStatusWriter creates a StatusWriter for the given file path.
func NewStatusWriter(path string, logger *slog.Logger) *StatusWriter {
	return &StatusWriter{
		path:    path,
		logger:  logger,
		current: StatusRecord{Phase: PhaseIdle},
	}
}

// Update applies mutate to the current record, stamps it, and writes
// the file.
func (w *StatusWriter) Update(mutate func(*StatusRecord)) {
	w.mu.Lock()
	mutate(&w.current)
	w.current.UpdatedAt = time.Now()
	record := w.current
	w.mu.Unlock()

	if err := writeJSONAtomic(w.path, record); err != nil {
		w.logger.Warn("status write failed", "path", w.path, "error", err)
	}
}

// Snapshot returns a copy of the current record.
func (w *StatusWriter) Snapshot() StatusRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// ReadStatus loads a status record from disk. A missing file yields an
// idle record, not an error.
func ReadStatus(path string) (StatusRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusRecord{Phase: PhaseIdle}, nil
		}
		return StatusRecord{}, fmt.Errorf("read status file: %w", err)
	}
	var record StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return StatusRecord{}, fmt.Errorf("decode status file: %w", err)
	}
	return record, nil
}

// writeJSONAtomic writes v to path via a temp file and rename, so
// concurrent readers always see a complete document.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
