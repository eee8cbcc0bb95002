package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/helpdex/helpdex/domain/memory"
	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/infrastructure/archive"
)

// maxStandardSummaryChars bounds the prose stored per standards
// document.
const maxStandardSummaryChars = 300

// StandardsLoader ingests coding-standards documents into the memory
// long tier under the standards domain, either from a local directory
// or from a GitHub repository zip.
type StandardsLoader struct {
	memory *Memory
	client *http.Client
	logger *slog.Logger
}

// NewStandardsLoader creates a StandardsLoader.
func NewStandardsLoader(mem *Memory, client *http.Client, logger *slog.Logger) *StandardsLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StandardsLoader{memory: mem, client: client, logger: logger}
}

// LoadDir walks dir and stores one reference entry per document: the
// first heading plus the first paragraph, bounded to 300 characters.
func (l *StandardsLoader) LoadDir(ctx context.Context, dir string) (LoadReport, error) {
	var report LoadReport
	seen := map[string]bool{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("standards walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".html", ".htm", ".txt":
		default:
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("standards file unreadable", "path", path, "error", err)
			report.Skipped++
			return nil
		}
		report.Files++

		title, summary := summarizeStandard(string(data))
		if title == "" {
			title = stemOf(path)
		}
		snip := memory.NewSnippet(title, summary, "", search.DomainStandards, memory.ClassReference)
		if seen[snip.Key()] {
			report.Skipped++
			return nil
		}
		seen[snip.Key()] = true

		deferred, err := l.memory.SaveSnippet(ctx, snip)
		if err != nil {
			return fmt.Errorf("save standard %q: %w", title, err)
		}
		if deferred {
			report.Deferred++
		}
		report.Loaded++
		return nil
	})
	if err != nil {
		return report, err
	}
	l.logger.Info("standards loaded", "dir", dir,
		"files", report.Files, "loaded", report.Loaded, "deferred", report.Deferred)
	return report, nil
}

// LoadRepo downloads a GitHub repository zip ("owner/name") and loads
// the given subpath of its tree.
func (l *StandardsLoader) LoadRepo(ctx context.Context, repo, branch, subpath string) (LoadReport, error) {
	if branch == "" {
		branch = "master"
	}
	url := fmt.Sprintf("https://codeload.github.com/%s/zip/refs/heads/%s", repo, branch)

	tempDir, err := os.MkdirTemp("", "helpdex-standards-*")
	if err != nil {
		return LoadReport{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	zipPath := filepath.Join(tempDir, "repo.zip")
	if err := l.download(ctx, url, zipPath); err != nil {
		return LoadReport{}, err
	}

	extracted := filepath.Join(tempDir, "tree")
	if err := archive.Unzip(zipPath, extracted); err != nil {
		return LoadReport{}, fmt.Errorf("unpack repo zip: %w", err)
	}

	// GitHub zips wrap everything in a single "name-branch" directory.
	root := extracted
	entries, err := os.ReadDir(extracted)
	if err == nil && len(entries) == 1 && entries[0].IsDir() {
		root = filepath.Join(extracted, entries[0].Name())
	}
	if subpath != "" {
		root = filepath.Join(root, subpath)
	}
	return l.LoadDir(ctx, root)
}

func (l *StandardsLoader) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// summarizeStandard extracts the first "#" heading and the first
// following paragraph.
func summarizeStandard(body string) (title, summary string) {
	lines := strings.Split(body, "\n")
	var paragraph []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if title == "" && strings.HasPrefix(trimmed, "#") {
			title = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		if title == "" {
			continue
		}
		if trimmed == "" {
			if len(paragraph) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			break
		}
		paragraph = append(paragraph, trimmed)
	}
	summary = strings.Join(paragraph, " ")
	if len(summary) > maxStandardSummaryChars {
		cut := maxStandardSummaryChars
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	return title, summary
}
