package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/helpdex/helpdex/domain/memory"
	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/internal/config"
)

// Memory file names under the configured base directory.
const (
	journalFileName = "journal.jsonl"
	pendingFileName = "pending.json"
)

// Memory implements the three-tier memory subsystem: an in-process
// ring of recent events, an on-disk journal with TTL compaction, and
// domain-tagged points in the vector store. Long-tier writes that fail
// are parked in the pending queue and drained later.
type Memory struct {
	cfg      config.MemoryConfig
	embedder search.Embedder
	store    search.Store
	pending  *PendingQueue
	logger   *slog.Logger

	mu   sync.Mutex
	ring []memory.Event
}

// NewMemory creates the memory service. The store is the memory
// collection, distinct from the help-topic collection.
func NewMemory(cfg config.MemoryConfig, embedder search.Embedder, store search.Store, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		pending:  NewPendingQueue(filepath.Join(cfg.BaseDir(), pendingFileName), logger),
		logger:   logger,
	}
}

// Enabled reports whether memory recording is switched on.
func (m *Memory) Enabled() bool { return m.cfg.Enabled() }

// Pending returns the pending queue, for the watcher's drain cycle.
func (m *Memory) Pending() *PendingQueue { return m.pending }

// Record writes an event through all three tiers. The short and
// medium tiers are synchronous; the long tier falls back to the
// pending queue when the embedding write fails, and the call still
// succeeds.
func (m *Memory) Record(ctx context.Context, event memory.Event) error {
	if !m.cfg.Enabled() {
		return nil
	}

	m.mu.Lock()
	m.ring = append(m.ring, event)
	if over := len(m.ring) - m.cfg.ShortCap(); over > 0 {
		m.ring = m.ring[over:]
	}
	m.mu.Unlock()

	if err := m.appendJournal(event); err != nil {
		m.logger.Warn("memory journal write failed", "error", err)
	}

	if err := m.writeLong(ctx, event); err != nil {
		m.logger.Debug("deferring long-tier write", "event_id", event.ID(), "error", err)
		if qErr := m.pending.Enqueue(event); qErr != nil {
			return fmt.Errorf("long-tier write failed and pending enqueue failed: %w", qErr)
		}
	}
	return nil
}

// Recent returns up to n events from the short tier, newest first.
func (m *Memory) Recent(n int) []memory.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.ring) {
		n = len(m.ring)
	}
	out := make([]memory.Event, n)
	for i := 0; i < n; i++ {
		out[i] = m.ring[len(m.ring)-1-i]
	}
	return out
}

// SaveSnippet records a snippet_save event and upserts the snippet to
// the long tier. Returns true when the write was deferred to the
// pending queue.
func (m *Memory) SaveSnippet(ctx context.Context, snip memory.Snippet) (bool, error) {
	event := memory.NewEvent(memory.KindSnippetSave, snip.Domain(), map[string]string{
		"title":       snip.Title(),
		"description": snip.Description(),
		"code":        snip.Code(),
		"class":       string(snip.Class()),
	})

	m.mu.Lock()
	m.ring = append(m.ring, event)
	if over := len(m.ring) - m.cfg.ShortCap(); over > 0 {
		m.ring = m.ring[over:]
	}
	m.mu.Unlock()

	if err := m.appendJournal(event); err != nil {
		m.logger.Warn("memory journal write failed", "error", err)
	}

	if err := m.upsertSnippet(ctx, snip); err != nil {
		m.logger.Debug("deferring snippet write", "title", snip.Title(), "error", err)
		if qErr := m.pending.Enqueue(event); qErr != nil {
			return false, fmt.Errorf("snippet write failed and pending enqueue failed: %w", qErr)
		}
		return true, nil
	}
	return false, nil
}

// DrainPending retries every queued long-tier write once.
func (m *Memory) DrainPending(ctx context.Context) (drained, remaining int, err error) {
	return m.pending.Drain(ctx, m.writeQueued)
}

// writeQueued replays one pending entry. Entries that carry snippet
// content become snippet points; everything else becomes a session
// summary point.
func (m *Memory) writeQueued(ctx context.Context, event memory.Event) error {
	if event.Kind() == memory.KindSnippetSave && event.Field("code") != "" {
		snip := memory.NewSnippet(
			event.Field("title"), event.Field("description"), event.Field("code"),
			event.Domain(), memory.SnippetClass(event.Field("class")),
		)
		return m.upsertSnippet(ctx, snip)
	}
	return m.writeLong(ctx, event)
}

func (m *Memory) writeLong(ctx context.Context, event memory.Event) error {
	domain := event.Domain()
	if domain == "" {
		domain = search.DomainSessions
	}
	summary := event.Summary()
	vector, err := m.embedder.EmbedOne(ctx, summary)
	if err != nil {
		return err
	}
	payload := search.NewPayload("", event.Field("title"), summary, "", "", domain)
	return m.store.Upsert(ctx, []search.Point{
		search.NewPoint(event.PointID(), vector, payload),
	})
}

func (m *Memory) upsertSnippet(ctx context.Context, snip memory.Snippet) error {
	vector, err := m.embedder.EmbedOne(ctx, snip.Text())
	if err != nil {
		return err
	}
	payload := search.NewPayload(snip.Key(), snip.Title(), snip.Text(), "", "", snip.Domain())
	return m.store.Upsert(ctx, []search.Point{
		search.NewPoint(snip.PointID(), vector, payload),
	})
}

// journalEntry shares the pending entry shape; the journal is one JSON
// object per line.
type journalEntry = pendingEntry

// appendJournal appends the event and compacts expired and excess
// entries in the same pass. The file is rewritten atomically.
func (m *Memory) appendJournal(event memory.Event) error {
	path := filepath.Join(m.cfg.BaseDir(), journalFileName)
	entries, err := readJournal(path)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-m.cfg.JournalTTL())
	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, toPendingEntry(event))
	if over := len(kept) - m.cfg.JournalLimit(); over > 0 {
		kept = kept[over:]
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), journalFileName+".tmp-*")
	if err != nil {
		return err
	}
	w := bufio.NewWriter(tmp)
	for _, e := range kept {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
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

// Journal returns the journal entries currently on disk as events,
// oldest first.
func (m *Memory) Journal() ([]memory.Event, error) {
	entries, err := readJournal(filepath.Join(m.cfg.BaseDir(), journalFileName))
	if err != nil {
		return nil, err
	}
	events := make([]memory.Event, len(entries))
	for i, e := range entries {
		events[i] = e.toEvent()
	}
	return events, nil
}

func readJournal(path string) ([]journalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []journalEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			// A torn tail line from a crash is dropped, not fatal.
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan journal: %w", err)
	}
	return entries, nil
}
