package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// localBatchMax is the largest batch a single pipeline run accepts.
const localBatchMax = 10

// ErrLocalModelUnavailable indicates no usable model directory exists.
var ErrLocalModelUnavailable = errors.New("local embedding model unavailable")

// ortSingleton holds the process-wide ONNX Runtime session and
// pipeline. ORT only allows one active session per process, so all
// LocalBackend instances share it. The mutex serializes both
// initialization and inference (ORT is not thread-safe).
var ortSingleton struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.Mutex
	ready    bool
}

// LocalBackend embeds in-process through a local ONNX model. No
// network, no rate limit; errors are terminal for the call.
type LocalBackend struct {
	cacheDir string
}

// NewLocalBackend creates a LocalBackend that looks for model files in
// cacheDir (a subdirectory containing tokenizer.json).
func NewLocalBackend(cacheDir string) *LocalBackend {
	return &LocalBackend{cacheDir: cacheDir}
}

// Name returns the backend name.
func (l *LocalBackend) Name() string { return BackendLocal }

// Available reports whether a usable model directory exists on disk.
func (l *LocalBackend) Available() bool {
	_, err := l.modelPath()
	return err == nil
}

// EmbedOne embeds a single text.
func (l *LocalBackend) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := l.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in pipeline-sized slices, preserving input
// order.
func (l *LocalBackend) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := l.initialize(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += localBatchMax {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + localBatchMax
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := runLocalPipeline(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(out), len(texts))
	}
	return out, nil
}

// ProbeDimension runs the model once to discover the vector size.
func (l *LocalBackend) ProbeDimension(ctx context.Context) (int, error) {
	vec, err := l.EmbedOne(ctx, ".")
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	return len(vec), nil
}

func (l *LocalBackend) initialize() error {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if ortSingleton.ready {
		return nil
	}

	modelPath, err := l.modelPath()
	if err != nil {
		return err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "help-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	ortSingleton.session = session
	ortSingleton.pipeline = pipeline
	ortSingleton.ready = true
	return nil
}

// Close destroys the shared ONNX Runtime session. A later call re-runs
// initialization.
func (l *LocalBackend) Close() error {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if !ortSingleton.ready {
		return nil
	}
	session := ortSingleton.session
	ortSingleton.session = nil
	ortSingleton.pipeline = nil
	ortSingleton.ready = false
	return session.Destroy()
}

// modelPath looks for a model subdirectory containing tokenizer.json
// inside cacheDir.
func (l *LocalBackend) modelPath() (string, error) {
	entries, err := os.ReadDir(l.cacheDir)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrLocalModelUnavailable, l.cacheDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(l.cacheDir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no model subdirectory with tokenizer.json in %s", ErrLocalModelUnavailable, l.cacheDir)
}

// runLocalPipeline executes one inference call under the singleton
// mutex.
func runLocalPipeline(texts []string) ([][]float32, error) {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	result, err := ortSingleton.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, vec := range result.Embeddings {
		v := make([]float32, len(vec))
		copy(v, vec)
		out[i] = v
	}
	return out, nil
}
