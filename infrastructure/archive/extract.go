// Package archive unpacks vendor .hbk help bundles. The format is an
// opaque container that different vendor releases produced with
// different tools, so extraction walks a chain of strategies until one
// yields files.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrExtractFailed indicates every extraction strategy failed.
var ErrExtractFailed = errors.New("archive extraction failed")

// Extractor unpacks help bundles into scratch directories.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

type strategy struct {
	name string
	run  func(ctx context.Context, src, dst string) error
}

// Extract unpacks src into dst, trying each strategy in order until
// one produces a non-empty output tree. The source file is never
// mutated. Callers own dst and must remove it on all exit paths.
func (e *Extractor) Extract(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	strategies := []strategy{
		{"7z", extract7z},
		{"7z-typed", extract7zTyped},
		{"zip", extractZip},
		{"unzip", extractUnzip},
	}

	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.run(ctx, src, dst)
		if err == nil && hasFiles(dst) {
			return nil
		}
		if err != nil {
			lastErr = err
			e.logger.Debug("extraction strategy failed",
				"strategy", s.name, "archive", filepath.Base(src), "error", err)
		}
		// A strategy can exit zero without producing files; sweep the
		// scratch dir before the next attempt.
		clearDir(dst)
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtractFailed, filepath.Base(src), lastErr)
	}
	return fmt.Errorf("%w: %s: no files produced", ErrExtractFailed, filepath.Base(src))
}

// Unzip extracts a plain zip file into dst with the same zip-slip
// guard as the bundle strategies. Used for downloaded repository
// archives that are ordinary zips.
func Unzip(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	return extractZip(context.Background(), src, dst)
}

func extract7z(ctx context.Context, src, dst string) error {
	return run7z(ctx, src, dst, nil)
}

// extract7zTyped retries 7z with explicit container types for bundles
// whose signature confuses autodetection.
func extract7zTyped(ctx context.Context, src, dst string) error {
	var lastErr error
	for _, t := range []string{"zip", "7z", "cab"} {
		if err := run7z(ctx, src, dst, []string{"-t" + t}); err != nil {
			lastErr = err
			continue
		}
		if hasFiles(dst) {
			return nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no container type matched")
	}
	return lastErr
}

func run7z(ctx context.Context, src, dst string, extra []string) error {
	bin, err := exec.LookPath("7z")
	if err != nil {
		return fmt.Errorf("7z not available: %w", err)
	}
	args := append([]string{"x", "-y", "-o" + dst}, extra...)
	args = append(args, src)
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("7z: %v: %s", err, firstLine(out))
	}
	return nil
}

func extractZip(_ context.Context, src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := writeZipEntry(f, dst); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, dst string) error {
	// Guard against zip-slip entries escaping the scratch dir.
	target := filepath.Join(dst, filepath.Clean("/"+f.Name))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry escapes scratch dir: %s", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("write zip entry %s: %w", f.Name, err)
	}
	return nil
}

func extractUnzip(ctx context.Context, src, dst string) error {
	bin, err := exec.LookPath("unzip")
	if err != nil {
		return fmt.Errorf("unzip not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin, "-o", "-q", src, "-d", dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("unzip: %v: %s", err, firstLine(out))
	}
	return nil
}

func hasFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func clearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		_ = os.RemoveAll(filepath.Join(dir, entry.Name()))
	}
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
