package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertHeadingsAndParagraphs(t *testing.T) {
	html := `<html><body>
<h1>СтрНайти</h1>
<p>Ищет вхождение подстроки в строку.</p>
<h2>Параметры</h2>
<p>Строка, Подстрока.</p>
</body></html>`

	md, err := Convert(html)
	require.NoError(t, err)
	assert.Contains(t, md, "# СтрНайти")
	assert.Contains(t, md, "Ищет вхождение подстроки в строку.")
	assert.Contains(t, md, "## Параметры")
	assert.False(t, strings.HasPrefix(md, "\n"), "output is trimmed")
	assert.NotContains(t, md, "\n\n\n", "blank-line runs are collapsed")
}

func TestConvertPreservesCodeBlocks(t *testing.T) {
	html := `<p>Пример:</p><pre><code>Результат = СтрНайти(Строка, "а");</code></pre>`
	md, err := Convert(html)
	require.NoError(t, err)
	assert.Contains(t, md, "СтрНайти(Строка, \"а\");")
	assert.Contains(t, md, "```")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "СтрНайти", Title(`<h1 class="topic">СтрНайти</h1><p>x</p>`))
	assert.Equal(t, "Обзор", Title(`<h2> Обзор </h2>`))
	assert.Equal(t, "Вложенный заголовок", Title(`<h1><span>Вложенный</span> заголовок</h1>`))
	assert.Equal(t, "", Title(`<p>нет заголовка</p>`))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML([]byte("<!DOCTYPE html><html>")))
	assert.True(t, LooksLikeHTML([]byte("  <html lang=\"ru\">")))
	assert.True(t, LooksLikeHTML([]byte("<?xml version=\"1.0\"?>")))
	assert.False(t, LooksLikeHTML([]byte("PK\x03\x04")))
	assert.False(t, LooksLikeHTML([]byte("plain text")))
}
