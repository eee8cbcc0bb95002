package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/helpdex/helpdex/domain/memory"
)

// pendingEntry is the on-disk form of a deferred long-tier write.
type pendingEntry struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Domain    string            `json:"domain"`
	Payload   map[string]string `json:"payload"`
}

func toPendingEntry(e memory.Event) pendingEntry {
	return pendingEntry{
		ID:        e.ID(),
		Kind:      string(e.Kind()),
		Timestamp: e.Timestamp(),
		Domain:    e.Domain(),
		Payload:   e.Payload(),
	}
}

func (p pendingEntry) toEvent() memory.Event {
	return memory.ReconstructEvent(p.ID, memory.Kind(p.Kind), p.Timestamp, p.Domain, p.Payload)
}

// PendingQueue is the on-disk list of memory events awaiting a
// long-tier write. The file is a JSON array rewritten atomically on
// every update, so a crash mid-write never corrupts it.
type PendingQueue struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewPendingQueue creates a PendingQueue backed by the given file.
func NewPendingQueue(path string, logger *slog.Logger) *PendingQueue {
	return &PendingQueue{path: path, logger: logger}
}

// Enqueue appends an event to the queue.
func (q *PendingQueue) Enqueue(event memory.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return err
	}
	entries = append(entries, toPendingEntry(event))
	return q.write(entries)
}

// Len returns the number of queued events.
func (q *PendingQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Drain attempts each queued event in order. Successful entries are
// removed; failed entries stay for the next cycle. Draining is
// idempotent: re-entry after a crash resumes from whatever the file
// holds.
func (q *PendingQueue) Drain(ctx context.Context, attempt func(context.Context, memory.Event) error) (drained, remaining int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return 0, 0, err
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	var kept []pendingEntry
	for _, entry := range entries {
		if ctx.Err() != nil {
			kept = append(kept, entry)
			continue
		}
		if err := attempt(ctx, entry.toEvent()); err != nil {
			q.logger.Warn("pending drain attempt failed",
				"event_id", entry.ID, "error", err)
			kept = append(kept, entry)
			continue
		}
		drained++
	}
	if err := q.write(kept); err != nil {
		return drained, len(kept), err
	}
	return drained, len(kept), ctx.Err()
}

// load reads the queue file. A missing file is an empty queue; an
// unreadable or corrupt file is surfaced so callers never silently
// drop deferred writes.
func (q *PendingQueue) load() ([]pendingEntry, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending queue: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []pendingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode pending queue: %w", err)
	}
	return entries, nil
}

func (q *PendingQueue) write(entries []pendingEntry) error {
	if entries == nil {
		entries = []pendingEntry{}
	}
	if err := writeJSONAtomic(q.path, entries); err != nil {
		return fmt.Errorf("write pending queue: %w", err)
	}
	return nil
}
