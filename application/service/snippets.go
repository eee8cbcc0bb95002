package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helpdex/helpdex/domain/memory"
	"github.com/helpdex/helpdex/domain/search"
)

// codeFence matches the first fenced code block in a Markdown body.
var codeFence = regexp.MustCompile("(?s)```(?:bsl|1c)?\n(.*?)```")

// LoadReport summarizes a snippet or standards loading pass.
type LoadReport struct {
	Files    int
	Loaded   int
	Deferred int
	Skipped  int
}

// SnippetLoader reads a snippets directory and upserts its contents to
// the memory long tier. Supported formats: JSON arrays, Markdown with
// YAML front matter, and raw .bsl/.1c/.os code files.
type SnippetLoader struct {
	memory *Memory
	logger *slog.Logger
}

// NewSnippetLoader creates a SnippetLoader.
func NewSnippetLoader(mem *Memory, logger *slog.Logger) *SnippetLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnippetLoader{memory: mem, logger: logger}
}

// snippetRecord is the JSON and front-matter shape of one snippet.
type snippetRecord struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Code        string   `json:"code" yaml:"code"`
	Domain      string   `json:"domain" yaml:"domain"`
	Class       string   `json:"class" yaml:"class"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// LoadDir walks dir and upserts every snippet found. Duplicate content
// within one pass is loaded once; unparseable files are skipped with a
// warning.
func (l *SnippetLoader) LoadDir(ctx context.Context, dir string) (LoadReport, error) {
	var report LoadReport
	seen := map[string]bool{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("snippets walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		records, ok := l.parseFile(path)
		if !ok {
			report.Skipped++
			return nil
		}
		report.Files++
		for _, rec := range records {
			snip := rec.toSnippet()
			if snip.Title() == "" || seen[snip.Key()] {
				report.Skipped++
				continue
			}
			seen[snip.Key()] = true

			deferred, err := l.memory.SaveSnippet(ctx, snip)
			if err != nil {
				return fmt.Errorf("save snippet %q: %w", snip.Title(), err)
			}
			if deferred {
				report.Deferred++
			}
			report.Loaded++
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	l.logger.Info("snippets loaded", "dir", dir,
		"files", report.Files, "loaded", report.Loaded,
		"deferred", report.Deferred, "skipped", report.Skipped)
	return report, nil
}

func (l *SnippetLoader) parseFile(path string) ([]snippetRecord, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return l.parseJSON(path)
	case ".md", ".markdown":
		return l.parseMarkdown(path)
	case ".bsl", ".1c", ".os":
		return l.parseRawCode(path)
	default:
		return nil, false
	}
}

func (l *SnippetLoader) parseJSON(path string) ([]snippetRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("snippet file unreadable", "path", path, "error", err)
		return nil, false
	}
	var records []snippetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		// A single object is accepted too.
		var one snippetRecord
		if err := json.Unmarshal(data, &one); err != nil {
			l.logger.Warn("snippet file unparseable", "path", path, "error", err)
			return nil, false
		}
		records = []snippetRecord{one}
	}
	return records, true
}

// parseMarkdown reads YAML front matter and takes the first fenced
// code block as the snippet code. Without front matter the filename
// stem becomes the title.
func (l *SnippetLoader) parseMarkdown(path string) ([]snippetRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("snippet file unreadable", "path", path, "error", err)
		return nil, false
	}

	var rec snippetRecord
	body := string(data)
	if meta, rest, ok := splitFrontMatter(body); ok {
		if err := yaml.Unmarshal([]byte(meta), &rec); err != nil {
			l.logger.Warn("snippet front matter unparseable", "path", path, "error", err)
		}
		body = rest
	}
	if rec.Title == "" {
		rec.Title = stemOf(path)
	}
	if rec.Code == "" {
		if m := codeFence.FindStringSubmatch(body); m != nil {
			rec.Code = strings.TrimSpace(m[1])
			body = strings.Replace(body, m[0], "", 1)
		}
	}
	if rec.Description == "" {
		rec.Description = strings.TrimSpace(body)
	}
	return []snippetRecord{rec}, true
}

func (l *SnippetLoader) parseRawCode(path string) ([]snippetRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("snippet file unreadable", "path", path, "error", err)
		return nil, false
	}
	return []snippetRecord{{
		Title: stemOf(path),
		Code:  strings.TrimSpace(string(data)),
		Class: string(memory.ClassSnippet),
	}}, true
}

// toSnippet applies the domain defaults: executable code lands in the
// snippets domain, prose in community_help, unless the record names a
// domain explicitly.
func (r snippetRecord) toSnippet() memory.Snippet {
	description := r.Description
	if len(r.Tags) > 0 {
		description = strings.TrimSpace(description + "\n\nTags: " + strings.Join(r.Tags, ", "))
	}
	snip := memory.NewSnippet(r.Title, description, r.Code, r.Domain, memory.SnippetClass(r.Class))
	if r.Domain == "" {
		domain := search.DomainCommunity
		if snip.Class() == memory.ClassSnippet {
			domain = search.DomainSnippets
		}
		snip = memory.NewSnippet(r.Title, description, r.Code, domain, snip.Class())
	}
	return snip
}

// splitFrontMatter splits a "---" delimited YAML header from a
// Markdown document.
func splitFrontMatter(body string) (meta, rest string, ok bool) {
	if !strings.HasPrefix(body, "---\n") && !strings.HasPrefix(body, "---\r\n") {
		return "", body, false
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(body, "---\r\n"), "---\n")
	idx := strings.Index(trimmed, "\n---")
	if idx < 0 {
		return "", body, false
	}
	meta = trimmed[:idx]
	rest = trimmed[idx+len("\n---"):]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	}
	return meta, rest, true
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
