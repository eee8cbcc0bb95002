package pipeline

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdex/helpdex/domain/doc"
	"github.com/helpdex/helpdex/infrastructure/archive"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeBundle builds a zip-container help bundle at path. Real .hbk
// files are containers the zip strategy can open, so a plain zip
// exercises the same code path.
func writeBundle(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestPipelineRunEmitsTopics(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "help")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "8.3.24"), 0o755))

	bundle := filepath.Join(root, "8.3.24", "shcntx_ru.hbk")
	writeBundle(t, bundle, map[string]string{
		"objects/catalog.html": "<h1>Справочники</h1><p>Работа со справочниками.</p>",
		"funcs/strfind.htm":    "<h2>СтрНайти</h2><p>Поиск подстроки.</p>",
		"readme.txt":           "not a help document",
		"logo.png":             "\x89PNG",
	})

	p := New(archive.NewExtractor(testLogger()), filepath.Join(dir, "tmp"), testLogger())
	a := doc.NewArchive(bundle, root)

	var topics []doc.Topic
	count, err := p.Run(context.Background(), a, func(topic doc.Topic) error {
		topics = append(topics, topic)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only document extensions convert")
	require.Len(t, topics, 2)

	byPath := map[string]doc.Topic{}
	for _, topic := range topics {
		byPath[topic.Path()] = topic
	}

	catalog, ok := byPath["objects/catalog.html"]
	require.True(t, ok, "paths are scratch-relative with forward slashes")
	assert.Equal(t, "Справочники", catalog.Title())
	assert.Contains(t, catalog.Body(), "Работа со справочниками.")
	assert.Equal(t, "8.3.24", catalog.Version())
	assert.Equal(t, "ru", catalog.Language())

	strfind, ok := byPath["funcs/strfind.htm"]
	require.True(t, ok)
	assert.Equal(t, "СтрНайти", strfind.Title())
}

func TestPipelineRunExtensionlessHTMLSniffed(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "shcntx_en.hbk")
	writeBundle(t, bundle, map[string]string{
		"topic":  "<html><body><h1>Catalogs</h1><p>Body.</p></body></html>",
		"binary": "\x00\x01\x02 not html",
	})

	p := New(archive.NewExtractor(testLogger()), filepath.Join(dir, "tmp"), testLogger())
	a := doc.NewArchive(bundle, dir)

	count, err := p.Run(context.Background(), a, func(doc.Topic) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, count, "extensionless files convert only when they sniff as HTML")
}

func TestPipelineRunTitleFallsBackToStem(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "shcntx_ru.hbk")
	writeBundle(t, bundle, map[string]string{
		"notes/untitled.html": "<p>Текст без заголовка.</p>",
	})

	p := New(archive.NewExtractor(testLogger()), filepath.Join(dir, "tmp"), testLogger())
	a := doc.NewArchive(bundle, dir)

	var got doc.Topic
	_, err := p.Run(context.Background(), a, func(topic doc.Topic) error {
		got = topic
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "untitled", got.Title())
}

func TestPipelineRunUnextractableArchive(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.hbk")
	require.NoError(t, os.WriteFile(bad, []byte("not an archive at all"), 0o644))

	p := New(archive.NewExtractor(testLogger()), filepath.Join(dir, "tmp"), testLogger())
	a := doc.NewArchive(bad, dir)

	_, err := p.Run(context.Background(), a, func(doc.Topic) error { return nil })
	require.ErrorIs(t, err, archive.ErrExtractFailed)
}

func TestPipelineCleansScratchDir(t *testing.T) {
	dir := t.TempDir()
	tempRoot := filepath.Join(dir, "tmp")
	bundle := filepath.Join(dir, "shcntx_ru.hbk")
	writeBundle(t, bundle, map[string]string{
		"a.html": "<h1>Тема</h1><p>Текст.</p>",
	})

	p := New(archive.NewExtractor(testLogger()), tempRoot, testLogger())
	_, err := p.Run(context.Background(), doc.NewArchive(bundle, dir), func(doc.Topic) error { return nil })
	require.NoError(t, err)

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories are removed after the run")
}
