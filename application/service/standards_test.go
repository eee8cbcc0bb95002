package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/internal/config"
)

func newTestStandardsLoader(t *testing.T) (*StandardsLoader, *fakeStore) {
	t.Helper()
	cfg := config.NewMemoryConfig().WithEnabled(true).WithBaseDir(t.TempDir())
	store := &fakeStore{}
	mem := NewMemory(cfg, newFakeEmbedder(), store, testLogger())
	return NewStandardsLoader(mem, nil, testLogger()), store
}

func TestStandardsLoaderLoadDir(t *testing.T) {
	dir := t.TempDir()
	doc := `# Именование переменных

Имена переменных образуются от терминов предметной области.
Сокращения не допускаются.

## Детали

Дальше по тексту.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "naming.md"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.yml"), []byte("ignored: true"), 0o644))

	loader, store := newTestStandardsLoader(t)
	report, err := loader.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Loaded)

	payloads := store.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "Именование переменных", payloads[0].Title())
	assert.Equal(t, search.DomainStandards, payloads[0].Domain())
	assert.Contains(t, payloads[0].Text(), "Имена переменных образуются")
	assert.NotContains(t, payloads[0].Text(), "Дальше по тексту",
		"only the first paragraph is stored")
}

func TestStandardsLoaderTitleFallsBackToStem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query-style.txt"),
		[]byte("Текст без заголовка.\n"), 0o644))

	loader, store := newTestStandardsLoader(t)
	_, err := loader.LoadDir(context.Background(), dir)
	require.NoError(t, err)

	payloads := store.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "query-style", payloads[0].Title())
}

func TestStandardsLoaderDeduplicates(t *testing.T) {
	dir := t.TempDir()
	doc := "# Стандарт\n\nОдин и тот же текст.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(doc), 0o644))

	loader, store := newTestStandardsLoader(t)
	report, err := loader.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, store.payloads(), 1)
}

func TestSummarizeStandard(t *testing.T) {
	title, summary := summarizeStandard("# Заголовок\n\nПервый абзац\nпродолжение.\n\nВторой абзац.\n")
	assert.Equal(t, "Заголовок", title)
	assert.Equal(t, "Первый абзац продолжение.", summary)

	title, summary = summarizeStandard("без заголовка вовсе")
	assert.Empty(t, title)
	assert.Empty(t, summary)

	_, summary = summarizeStandard("# T\n\n" + strings.Repeat("а", 400))
	assert.Len(t, summary, maxStandardSummaryChars)

	// An odd byte boundary backs up to the previous rune.
	_, summary = summarizeStandard("# T\n\nb" + strings.Repeat("а", 400))
	assert.True(t, utf8.ValidString(summary))
	assert.LessOrEqual(t, len(summary), maxStandardSummaryChars)
	assert.True(t, strings.HasSuffix(summary, "а"))
}

func TestSummarizeStandardStopsAtNextHeading(t *testing.T) {
	title, summary := summarizeStandard("# Главный\n## Подраздел\nТекст подраздела.")
	assert.Equal(t, "Главный", title)
	assert.Empty(t, summary, "a heading right after the title ends the summary scan")
}
