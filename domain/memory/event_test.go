package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventSummaryFormat(t *testing.T) {
	event := NewEvent(KindTopicView, "sessions", map[string]string{
		"title": "СтрНайти",
		"query": "поиск подстроки",
		"tags":  "строки",
	})
	assert.Equal(t, "1C Help: СтрНайти | поиск подстроки | строки", event.Summary())

	partial := NewEvent(KindExchange, "sessions", map[string]string{"query": "regex"})
	assert.Equal(t, "1C Help: regex", partial.Summary())

	empty := NewEvent(KindExchange, "sessions", nil)
	assert.Equal(t, "1C Help: exchange", empty.Summary(),
		"kind stands in when the payload carries no text")
}

func TestEventPayloadCopied(t *testing.T) {
	payload := map[string]string{"title": "a"}
	event := NewEvent(KindTopicView, "sessions", payload)
	payload["title"] = "mutated"
	assert.Equal(t, "a", event.Field("title"))

	out := event.Payload()
	out["title"] = "mutated again"
	assert.Equal(t, "a", event.Field("title"))
}

func TestEventPointIDStable(t *testing.T) {
	event := ReconstructEvent("id-1", KindExchange, time.Now(), "sessions", nil)
	same := ReconstructEvent("id-1", KindExchange, time.Now(), "sessions", nil)
	other := ReconstructEvent("id-2", KindExchange, time.Now(), "sessions", nil)

	assert.Equal(t, event.PointID(), same.PointID())
	assert.NotEqual(t, event.PointID(), other.PointID())
	assert.Less(t, event.PointID(), uint64(1)<<63)
}

func TestSnippetKeyContentAddressed(t *testing.T) {
	a := NewSnippet("Открыть форму", "desc", "Форма.Открыть();", "snippets", ClassSnippet)
	b := NewSnippet("Открыть форму", "other description", "Форма.Открыть();", "snippets", ClassSnippet)
	c := NewSnippet("Открыть форму", "desc", "Форма.Закрыть();", "snippets", ClassSnippet)

	assert.Equal(t, a.Key(), b.Key(), "description does not affect the key")
	assert.NotEqual(t, a.Key(), c.Key(), "code changes the key")
	assert.True(t, strings.HasPrefix(a.Key(), "snippets_"))
	assert.Equal(t, a.PointID(), b.PointID())
}

func TestSnippetKeyDomainPrefixTruncated(t *testing.T) {
	s := NewSnippet("t", "", "code", "community_help", ClassReference)
	assert.True(t, strings.HasPrefix(s.Key(), "communit_"),
		"domain prefix is capped at eight characters")
}

func TestSnippetText(t *testing.T) {
	s := NewSnippet("Заголовок", "Описание", "Сообщить(1);", "snippets", ClassSnippet)
	text := s.Text()
	assert.Contains(t, text, "Заголовок")
	assert.Contains(t, text, "Описание")
	assert.Contains(t, text, "```bsl\nСообщить(1);\n```")

	bare := NewSnippet("Только заголовок", "", "", "snippets", ClassReference)
	assert.Equal(t, "Только заголовок", bare.Text())
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindTopicView.Valid())
	assert.True(t, KindSnippetSave.Valid())
	assert.True(t, KindExchange.Valid())
	assert.False(t, Kind("bogus").Valid())
}
