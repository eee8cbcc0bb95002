package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// batchTimeoutBase and batchTimeoutPerItem scale the batch deadline
// with batch size: max(configured timeout, base + len/10 seconds).
const (
	batchTimeoutBase    = 30 * time.Second
	batchTimeoutPerItem = time.Second / 10
)

// DispatcherConfig carries the cross-cutting limits the dispatcher
// applies around any backend.
type DispatcherConfig struct {
	BatchSize     int
	Workers       int
	MaxInputChars int
	Timeout       time.Duration
	MaxConcurrent int
	SemaphoreWait time.Duration
	RetryAttempts int
	InitialDelay  time.Duration
}

// Dispatcher wraps a Backend with sanitization, truncation, batching,
// concurrency limits, timeouts, retries, and the count-mismatch
// recovery protocol. Backends stay simple; every operational concern
// lives here. It implements the search.Embedder interface.
type Dispatcher struct {
	backend Backend
	cfg     DispatcherConfig
	sem     *semaphore.Weighted
	logger  *slog.Logger

	dimMu    sync.Mutex
	dim      int
	degraded atomic.Bool
}

// NewDispatcher creates a Dispatcher around backend. A placeholder
// backend marks the dispatcher degraded from the start.
func NewDispatcher(backend Backend, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SemaphoreWait <= 0 {
		cfg.SemaphoreWait = 300 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	d := &Dispatcher{
		backend: backend,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logger,
	}
	if backend.Name() == BackendNone {
		d.degraded.Store(true)
	}
	return d
}

// Name returns the underlying backend name.
func (d *Dispatcher) Name() string { return d.backend.Name() }

// Degraded reports whether any vector served so far was a placeholder.
func (d *Dispatcher) Degraded() bool { return d.degraded.Load() }

// Dimension returns the backend's vector dimension, probing it once
// and reusing the result for the life of the dispatcher.
func (d *Dispatcher) Dimension(ctx context.Context) (int, error) {
	d.dimMu.Lock()
	defer d.dimMu.Unlock()
	if d.dim > 0 {
		return d.dim, nil
	}
	dim, err := d.backend.ProbeDimension(ctx)
	if err != nil {
		return 0, err
	}
	d.dim = dim
	return dim, nil
}

// EmbedOne embeds a single text with the full retry and timeout
// treatment. A failure after all attempts is returned to the caller;
// no placeholder is substituted for single embeds.
func (d *Dispatcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	text = d.prepare(text)

	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	var vec []float32
	err := d.withRetries(ctx, 1, func(callCtx context.Context) error {
		v, embedErr := d.backend.EmbedOne(callCtx, text)
		if embedErr != nil {
			return embedErr
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := d.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedMany embeds texts in configured batches across a bounded worker
// pool. The result always has exactly one vector per input, in input
// order; slots whose embedding failed after the full mismatch protocol
// carry placeholder vectors and flip the dispatcher to degraded.
func (d *Dispatcher) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = d.prepare(t)
	}

	results := make([][]float32, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for start := 0; start < len(prepared); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		offset, batch := start, prepared[start:end]
		g.Go(func() error {
			vecs, err := d.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			copy(results[offset:], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, vec := range results {
		if err := d.checkDimension(vec); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// embedBatch runs one batch through the retry loop and, on a count
// mismatch that survives a same-size retry, recovers by halving.
func (d *Dispatcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	vecs, err := func() ([][]float32, error) {
		defer d.sem.Release(1)
		var out [][]float32
		retryErr := d.withRetries(ctx, len(batch), func(callCtx context.Context) error {
			v, embedErr := d.backend.EmbedMany(callCtx, batch)
			if embedErr != nil {
				return embedErr
			}
			if len(v) != len(batch) {
				return fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(v), len(batch))
			}
			out = v
			return nil
		})
		return out, retryErr
	}()
	if err == nil {
		return vecs, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return d.recoverBatch(ctx, batch, err)
}

// recoverBatch splits a failing batch in half and retries each part.
// At size one it falls through to a single-item call; if that still
// fails the slot gets a placeholder vector and the dispatcher is
// marked degraded.
func (d *Dispatcher) recoverBatch(ctx context.Context, batch []string, cause error) ([][]float32, error) {
	if len(batch) == 1 {
		vec, err := d.EmbedOne(ctx, batch[0])
		if err == nil {
			return [][]float32{vec}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		dim, dimErr := d.Dimension(ctx)
		if dimErr != nil {
			return nil, fmt.Errorf("embed item: %w", err)
		}
		d.degraded.Store(true)
		d.logger.Warn("embedding failed, using placeholder vector", "error", err)
		return [][]float32{PlaceholderVector(batch[0], dim)}, nil
	}

	d.logger.Warn("splitting failing embedding batch",
		"size", len(batch), "error", cause)

	mid := len(batch) / 2
	left, err := d.embedBatch(ctx, batch[:mid])
	if err != nil {
		return nil, err
	}
	right, err := d.embedBatch(ctx, batch[mid:])
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// withRetries runs call under a size-scaled deadline, retrying
// retryable failures with exponential delays. A 429 Retry-After hint
// from the backend overrides the computed delay.
func (d *Dispatcher) withRetries(ctx context.Context, batchLen int, call func(context.Context) error) error {
	timeout := d.cfg.Timeout
	if batchLen > 1 {
		scaled := batchTimeoutBase + time.Duration(batchLen)*batchTimeoutPerItem
		if scaled > timeout {
			timeout = scaled
		}
	}

	var lastErr error
	delay := d.cfg.InitialDelay
	for attempt := 0; attempt < d.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			wait := delay
			if hinter, ok := d.backend.(retryHinter); ok {
				if hinted, has := hinter.RetryAfterHint(); has {
					wait = clampRetryAfter(hinted)
				}
			}
			d.logger.Debug("retrying embedding call",
				"attempt", attempt+1, "delay", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

// acquire takes a concurrency slot, waiting a bounded amount of time.
func (d *Dispatcher) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.SemaphoreWait)
	defer cancel()
	if err := d.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: waited %s", ErrSemaphoreTimeout, d.cfg.SemaphoreWait)
	}
	return nil
}

// checkDimension verifies a returned vector against the memoized
// dimension, establishing it on first use.
func (d *Dispatcher) checkDimension(vec []float32) error {
	d.dimMu.Lock()
	defer d.dimMu.Unlock()
	if d.dim == 0 {
		d.dim = len(vec)
		return nil
	}
	if len(vec) != d.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionChanged, d.dim, len(vec))
	}
	return nil
}

func (d *Dispatcher) prepare(text string) string {
	text = Sanitize(text)
	if d.cfg.MaxInputChars > 0 {
		truncated, did := Truncate(text, d.cfg.MaxInputChars)
		if did {
			d.logger.Debug("truncated embedding input",
				"limit", d.cfg.MaxInputChars)
		}
		text = truncated
	}
	return text
}
