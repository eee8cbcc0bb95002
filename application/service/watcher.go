package service

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/helpdex/helpdex/internal/config"
)

// watcherStateFileName holds the persisted mtime map.
const watcherStateFileName = "watcher-state.json"

// Watcher rescans the source roots on a timer and drains the pending
// memory queue on its own timer. Filesystem notifications shortcut the
// next poll; the periodic scan stays the source of truth.
type Watcher struct {
	cfg       config.WatcherConfig
	roots     []string
	statePath string
	ingest    *Ingest
	memory    *Memory
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	hints  chan struct{}
}

// NewWatcher creates a Watcher. statePath names the directory for the
// persisted mtime map.
func NewWatcher(
	cfg config.WatcherConfig,
	roots []string,
	stateDir string,
	ingest *Ingest,
	memory *Memory,
	logger *slog.Logger,
) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:       cfg,
		roots:     roots,
		statePath: filepath.Join(stateDir, watcherStateFileName),
		ingest:    ingest,
		memory:    memory,
		logger:    logger,
		hints:     make(chan struct{}, 1),
	}
}

// Start begins watching in a background goroutine. If disabled, this
// is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	if !w.cfg.Enabled() {
		w.logger.Info("watcher disabled")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	w.logger.Info("watcher started",
		slog.Duration("poll_interval", w.cfg.PollInterval()),
		slog.Duration("pending_interval", w.cfg.PendingInterval()))
}

// Stop cancels the background goroutine and waits for it to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.logger.Info("watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	notifier := w.startNotifier(ctx)
	if notifier != nil {
		defer notifier.Close()
	}

	// First scan on startup so archives mounted before start are
	// picked up immediately.
	w.scan(ctx)
	w.drain(ctx)

	pollTicker := time.NewTicker(w.cfg.PollInterval())
	defer pollTicker.Stop()
	pendingTicker := time.NewTicker(w.cfg.PendingInterval())
	defer pendingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			w.scan(ctx)
		case <-w.hints:
			w.scan(ctx)
			pollTicker.Reset(w.cfg.PollInterval())
		case <-pendingTicker.C:
			w.drain(ctx)
		}
	}
}

// startNotifier wires fsnotify on the source roots. Failures leave the
// watcher purely poll-based.
func (w *Watcher) startNotifier(ctx context.Context) *fsnotify.Watcher {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling only", "error", err)
		return nil
	}
	watched := 0
	for _, root := range w.roots {
		if err := notifier.Add(root); err != nil {
			w.logger.Warn("fsnotify add failed", "root", root, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		notifier.Close()
		return nil
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-notifier.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case w.hints <- struct{}{}:
				default:
				}
			case err, ok := <-notifier.Errors:
				if !ok {
					return
				}
				w.logger.Warn("fsnotify error", "error", err)
			}
		}
	}()
	return notifier
}

// scan compares current archive mtimes with the persisted map and
// re-ingests exactly the changed archives.
func (w *Watcher) scan(ctx context.Context) {
	previous := w.loadState()
	current := map[string]int64{}
	var changed []string

	for _, root := range w.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".hbk") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			mtime := info.ModTime().UnixNano()
			current[path] = mtime
			if previous[path] != mtime {
				changed = append(changed, path)
			}
			return nil
		})
		if err != nil {
			w.logger.Warn("watcher scan failed", "root", root, "error", err)
		}
	}

	if len(changed) == 0 {
		w.saveState(current)
		return
	}

	w.logger.Info("watcher detected archive changes", "count", len(changed))
	summary, err := w.ingest.Run(ctx, RunOptions{Paths: changed, Roots: w.roots})
	if err != nil {
		if errors.Is(err, ErrIngestRunning) {
			// Another run owns the pipeline; keep the old state so the
			// change is retried on the next poll.
			w.logger.Info("ingest busy, deferring watcher run")
			return
		}
		w.logger.Warn("watcher ingest failed", "error", err)
		return
	}
	w.logger.Info("watcher ingest complete",
		"indexed", summary.Indexed, "failed", summary.Failed, "topics", summary.Topics)
	w.saveState(current)
}

// drain retries pending long-tier memory writes with a short backoff
// around transient store errors.
func (w *Watcher) drain(ctx context.Context) {
	if w.memory == nil || !w.memory.Enabled() {
		return
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	var drained, remaining int
	err := backoff.Retry(func() error {
		var err error
		drained, remaining, err = w.memory.DrainPending(ctx)
		return err
	}, policy)
	if err != nil {
		w.logger.Warn("pending drain failed", "error", err)
		return
	}
	if drained > 0 || remaining > 0 {
		w.logger.Info("pending drain", "drained", drained, "remaining", remaining)
	}
}

func (w *Watcher) loadState() map[string]int64 {
	data, err := os.ReadFile(w.statePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("watcher state unreadable", "error", err)
		}
		return map[string]int64{}
	}
	var state map[string]int64
	if err := json.Unmarshal(data, &state); err != nil {
		w.logger.Warn("watcher state corrupt, rescanning everything", "error", err)
		return map[string]int64{}
	}
	return state
}

func (w *Watcher) saveState(state map[string]int64) {
	if err := writeJSONAtomic(w.statePath, state); err != nil {
		w.logger.Warn("watcher state write failed", "error", err)
	}
}
