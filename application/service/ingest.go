package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helpdex/helpdex/domain/doc"
	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/infrastructure/pipeline"
	"github.com/helpdex/helpdex/internal/config"
)

// RunOptions control a single ingest run.
type RunOptions struct {
	// Recreate erases the cache and rebuilds the collection before
	// ingesting. The only destructive option.
	Recreate bool

	// DryRun reports what would be done without extracting anything.
	DryRun bool

	// NoCache bypasses cache lookups. Successful archives are still
	// marked, so a later cached run sees them.
	NoCache bool

	// MaxTasks caps the number of archives processed. Zero means no
	// cap.
	MaxTasks int

	// Workers overrides the configured per-archive worker count.
	Workers int

	// Languages overrides the configured language filter.
	Languages []string

	// Roots overrides the configured source roots.
	Roots []string

	// Paths restricts the run to specific archive files. Used by the
	// watcher to re-ingest exactly what changed.
	Paths []string
}

// RunSummary reports the outcome of an ingest run.
type RunSummary struct {
	Discovered int
	Skipped    int
	Indexed    int
	Failed     int
	Topics     int
	Degraded   bool
}

// Ingest orchestrates the archive-to-index pipeline: discovery,
// cache partitioning, extraction, embedding, and upserts.
type Ingest struct {
	cfg      config.IngestConfig
	cache    doc.Cache
	pipeline *pipeline.Pipeline
	embedder search.Embedder
	store    search.Store
	status   *StatusWriter
	logger   *slog.Logger

	running atomic.Bool
	failMu  sync.Mutex
}

// NewIngest creates an Ingest service. A nil cache disables cache
// lookups entirely; every archive is treated as new work.
func NewIngest(
	cfg config.IngestConfig,
	cache doc.Cache,
	pipe *pipeline.Pipeline,
	embedder search.Embedder,
	store search.Store,
	status *StatusWriter,
	logger *slog.Logger,
) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{
		cfg:      cfg,
		cache:    cache,
		pipeline: pipe,
		embedder: embedder,
		store:    store,
		status:   status,
		logger:   logger,
	}
}

// Running reports whether an ingest run is in progress.
func (s *Ingest) Running() bool { return s.running.Load() }

// Status returns the current status record.
func (s *Ingest) Status() StatusRecord { return s.status.Snapshot() }

// Run executes a full ingest pass. Only one run may be active at a
// time; a concurrent call returns ErrIngestRunning.
func (s *Ingest) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrIngestRunning
	}
	defer s.running.Store(false)

	dimension, err := s.embedder.Dimension(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("probe embedding dimension: %w", err)
	}

	if opts.Recreate {
		if s.cache != nil {
			if err := s.cache.EraseAll(ctx); err != nil {
				return RunSummary{}, fmt.Errorf("erase ingest cache: %w", err)
			}
		}
		if err := s.store.Recreate(ctx, dimension); err != nil {
			return RunSummary{}, err
		}
	} else if err := s.store.Ensure(ctx, dimension); err != nil {
		// Dimension mismatch against an existing collection stays
		// fatal until the caller explicitly recreates.
		return RunSummary{}, err
	}

	started := time.Now()
	s.status.Update(func(r *StatusRecord) {
		*r = StatusRecord{
			Phase:     PhaseDiscover,
			Backend:   s.embedder.Name(),
			StartedAt: started,
			Folders:   map[string]FolderProgress{},
		}
	})

	archives, err := s.discover(opts)
	if err != nil {
		s.status.Update(func(r *StatusRecord) { r.Phase = PhaseIdle })
		return RunSummary{}, err
	}

	work, skipped, err := s.partition(ctx, archives, opts.NoCache)
	if err != nil {
		return RunSummary{}, err
	}
	if opts.MaxTasks > 0 && len(work) > opts.MaxTasks {
		work = work[:opts.MaxTasks]
	}

	summary := RunSummary{Discovered: len(archives), Skipped: skipped}
	s.status.Update(func(r *StatusRecord) {
		r.ArchivesTotal = len(archives)
		r.ArchivesSkipped = skipped
		for _, t := range work {
			folder := filepath.Dir(t.archive.Path())
			fp := r.Folders[folder]
			fp.Total++
			r.Folders[folder] = fp
		}
	})

	if opts.DryRun {
		s.logger.Info("dry run",
			"discovered", len(archives), "skipped", skipped, "work", len(work))
		s.status.Update(func(r *StatusRecord) { r.Phase = PhaseDone })
		return summary, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = s.cfg.Workers()
	}

	var indexed, failed, topics atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range work {
		t := t
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			count, err := s.processArchive(gctx, t)
			folder := filepath.Dir(t.archive.Path())
			if err != nil {
				failed.Add(1)
				s.recordFailure(t.archive.Path(), err)
				s.status.Update(func(r *StatusRecord) { r.ArchivesFailed++ })
				s.updateFolder(folder, func(fp *FolderProgress) { fp.Failed++ })
				s.logger.Warn("archive ingest failed",
					"path", t.archive.Path(), "error", err)
				return nil
			}
			indexed.Add(1)
			topics.Add(int64(count))
			s.updateFolder(folder, func(fp *FolderProgress) { fp.Done++ })
			s.updateProgress(started, len(work))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.Indexed = int(indexed.Load())
	summary.Failed = int(failed.Load())
	summary.Topics = int(topics.Load())
	summary.Degraded = s.embedder.Degraded()

	s.status.Update(func(r *StatusRecord) {
		r.Phase = PhaseDone
		r.Degraded = summary.Degraded
		r.ETASeconds = 0
	})
	s.logger.Info("ingest run complete",
		"indexed", summary.Indexed, "skipped", summary.Skipped,
		"failed", summary.Failed, "topics", summary.Topics,
		"elapsed", time.Since(started).Round(time.Second))
	return summary, nil
}

// task pairs a discovered archive with its content hash.
type task struct {
	archive doc.Archive
	hash    string
}

// discover walks the source roots collecting .hbk archives that pass
// the language filter.
func (s *Ingest) discover(opts RunOptions) ([]doc.Archive, error) {
	languages := opts.Languages
	if languages == nil {
		languages = s.cfg.Languages()
	}

	roots := opts.Roots
	if len(roots) == 0 && s.cfg.SourceBase() != "" {
		roots = []string{s.cfg.SourceBase()}
	}
	if len(roots) == 0 && len(opts.Paths) == 0 {
		return nil, ErrNoSources
	}

	restrict := map[string]bool{}
	for _, p := range opts.Paths {
		restrict[filepath.Clean(p)] = true
	}

	var archives []doc.Archive
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("discovery error", "path", path, "error", err)
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".hbk") {
				return nil
			}
			if len(restrict) > 0 && !restrict[filepath.Clean(path)] {
				return nil
			}
			a := doc.NewArchive(path, root)
			if !a.MatchesLanguage(languages) {
				return nil
			}
			archives = append(archives, a)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk source root %s: %w", root, err)
		}
	}
	return archives, nil
}

// partition hashes each archive and splits the list into work and
// cache hits. A cache read failure degrades to "no cache" with a
// warning.
func (s *Ingest) partition(ctx context.Context, archives []doc.Archive, noCache bool) ([]task, int, error) {
	var work []task
	skipped := 0
	for _, a := range archives {
		hash, err := hashFile(a.Path())
		if err != nil {
			s.recordFailure(a.Path(), err)
			s.logger.Warn("archive unreadable", "path", a.Path(), "error", err)
			continue
		}
		if !noCache && s.cache != nil {
			record, found, err := s.cache.Lookup(ctx, hash)
			if err != nil {
				s.logger.Warn("cache lookup failed, treating archive as new",
					"path", a.Path(), "error", err)
			} else if found && record.Indexed() {
				skipped++
				continue
			}
		}
		work = append(work, task{archive: a, hash: hash})
	}
	return work, skipped, nil
}

// processArchive runs one archive through extract, embed, and upsert,
// then marks it indexed.
func (s *Ingest) processArchive(ctx context.Context, t task) (int, error) {
	s.status.Update(func(r *StatusRecord) { r.Phase = PhaseExtract })

	var topics []doc.Topic
	count, err := s.pipeline.Run(ctx, t.archive, func(topic doc.Topic) error {
		topics = append(topics, topic)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.status.Update(func(r *StatusRecord) {
		r.Phase = PhaseEmbed
		r.TopicsSeen += count
	})

	texts := make([]string, len(topics))
	for i, topic := range topics {
		texts[i] = topic.PayloadText()
	}
	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d topics: %w", len(texts), err)
	}

	points := make([]search.Point, len(topics))
	for i, topic := range topics {
		payload := search.NewPayload(
			topic.Path(), topic.Title(), topic.PayloadText(),
			topic.Version(), topic.Language(), search.DomainHelp,
		)
		points[i] = search.NewPoint(topic.PointID(), vectors[i], payload)
	}

	s.status.Update(func(r *StatusRecord) {
		r.Phase = PhaseUpsert
		r.TopicsEmbedded += len(points)
		r.Degraded = s.embedder.Degraded()
	})
	if err := s.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	if s.cache != nil {
		record := doc.NewRecord(t.hash, t.archive.Path(), time.Now(), count,
			t.archive.Version(), t.archive.Language())
		if err := s.cache.MarkIndexed(ctx, record); err != nil {
			s.logger.Warn("cache mark failed", "path", t.archive.Path(), "error", err)
		}
	}
	return count, nil
}

func (s *Ingest) updateFolder(folder string, mutate func(*FolderProgress)) {
	s.status.Update(func(r *StatusRecord) {
		if r.Folders == nil {
			r.Folders = map[string]FolderProgress{}
		}
		fp := r.Folders[folder]
		mutate(&fp)
		r.Folders[folder] = fp
	})
}

// updateProgress recomputes rolling throughput and the archive-based
// ETA.
func (s *Ingest) updateProgress(started time.Time, totalWork int) {
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return
	}
	s.status.Update(func(r *StatusRecord) {
		r.TopicsPerSecond = float64(r.TopicsEmbedded) / elapsed
		done := r.ArchivesDone + 1
		r.ArchivesDone = done
		remaining := totalWork - done
		if remaining > 0 && done > 0 {
			perArchive := elapsed / float64(done)
			r.ETASeconds = int64(perArchive * float64(remaining))
		} else {
			r.ETASeconds = 0
		}
	})
}

// failureEntry is one line of the append-only failure log.
type failureEntry struct {
	Path      string    `json:"path"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// recordFailure appends to the failure log. Log write errors are
// themselves only logged; a failing failure log never stops a run.
func (s *Ingest) recordFailure(path string, cause error) {
	logPath := s.cfg.FailedLogPath()
	if logPath == "" {
		return
	}
	s.failMu.Lock()
	defer s.failMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		s.logger.Warn("failure log unavailable", "error", err)
		return
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("failure log unavailable", "error", err)
		return
	}
	defer f.Close()

	line, err := json.Marshal(failureEntry{
		Path:      path,
		Reason:    cause.Error(),
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("failure log write failed", "error", err)
	}
}

// hashFile returns the hex sha256 of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
