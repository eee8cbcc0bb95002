// Package pipeline turns help archives into normalized Markdown topics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/helpdex/helpdex/domain/doc"
	"github.com/helpdex/helpdex/infrastructure/archive"
	"github.com/helpdex/helpdex/infrastructure/markdown"
)

// candidateExts are the file extensions treated as help documents.
var candidateExts = map[string]bool{
	".html":  true,
	".htm":   true,
	".xml":   true,
	".xhtml": true,
	".st":    true,
}

const htmlSniffBytes = 512

// Pipeline extracts an archive and converts its documents into topics.
type Pipeline struct {
	extractor *archive.Extractor
	tempRoot  string
	logger    *slog.Logger
}

// New creates a Pipeline that extracts into scratch directories under
// tempRoot.
func New(extractor *archive.Extractor, tempRoot string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		tempRoot:  tempRoot,
		logger:    logger,
	}
}

// Run extracts the archive and streams each converted topic through
// emit. Files that fail conversion are skipped with a warning; the
// caller decides whether a partial run marks the archive indexed. The
// scratch directory is removed on all exit paths. Returns the number
// of topics emitted.
func (p *Pipeline) Run(ctx context.Context, a doc.Archive, emit func(doc.Topic) error) (int, error) {
	scratch, err := os.MkdirTemp(p.tempRoot, "hbk-*")
	if err != nil {
		if mkErr := os.MkdirAll(p.tempRoot, 0o755); mkErr == nil {
			scratch, err = os.MkdirTemp(p.tempRoot, "hbk-*")
		}
		if err != nil {
			return 0, fmt.Errorf("create scratch dir: %w", err)
		}
	}
	defer os.RemoveAll(scratch)

	if err := p.extractor.Extract(ctx, a.Path(), scratch); err != nil {
		return 0, err
	}

	count := 0
	walkErr := filepath.WalkDir(scratch, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isCandidate(path) {
			return nil
		}

		topic, ok := p.convertFile(path, scratch, a)
		if !ok {
			return nil
		}
		if err := emit(topic); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		return count, walkErr
	}
	return count, nil
}

func (p *Pipeline) convertFile(path, scratch string, a doc.Archive) (doc.Topic, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		p.logger.Warn("skipping unreadable file", "path", filepath.Base(path), "error", err)
		return doc.Topic{}, false
	}

	body, err := markdown.Convert(string(raw))
	if err != nil || body == "" {
		if err != nil {
			p.logger.Warn("skipping unconvertible file", "path", filepath.Base(path), "error", err)
		}
		return doc.Topic{}, false
	}

	rel, err := filepath.Rel(scratch, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	title := markdown.Title(string(raw))
	if title == "" {
		title = stem(path)
	}

	return doc.NewTopic(rel, title, body, a.Version(), a.Language()), true
}

// isCandidate reports whether a file should be converted: a known
// document extension, or no extension with an HTML-looking prefix.
func isCandidate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if candidateExts[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, htmlSniffBytes)
	n, _ := f.Read(buf)
	return markdown.LooksLikeHTML(buf[:n])
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
