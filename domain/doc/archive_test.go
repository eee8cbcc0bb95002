package doc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLanguageFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/help/8.3.24/shcntx_ru.hbk", "ru"},
		{"/help/8.3.24/shcntx_en.hbk", "en"},
		{"/help/8.3.24/SHCNTX_RU.HBK", "ru"},
		{"/help/8.3.24/shlang.hbk", ""},
		{"/help/8.3.24/readme.txt", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LanguageFromFilename(tt.path), tt.path)
	}
}

func TestArchiveVersionFromDirectory(t *testing.T) {
	root := filepath.Join("/srv", "help")

	nested := NewArchive(filepath.Join(root, "8.3.24", "shcntx_ru.hbk"), root)
	assert.Equal(t, "8.3.24", nested.Version())
	assert.Equal(t, "ru", nested.Language())

	deep := NewArchive(filepath.Join(root, "8.3.25", "extra", "shcntx_en.hbk"), root)
	assert.Equal(t, "8.3.25", deep.Version(),
		"first directory under root names the version")

	flat := NewArchive(filepath.Join(root, "shcntx_ru.hbk"), root)
	assert.Equal(t, "help", flat.Version(),
		"archives directly under root carry the root's base name")
}

func TestArchiveMatchesLanguage(t *testing.T) {
	ru := NewArchive("/srv/help/8.3.24/shcntx_ru.hbk", "/srv/help")
	untagged := NewArchive("/srv/help/8.3.24/shlang.hbk", "/srv/help")

	assert.True(t, ru.MatchesLanguage(nil))
	assert.True(t, ru.MatchesLanguage([]string{"ru", "en"}))
	assert.False(t, ru.MatchesLanguage([]string{"en"}))

	assert.True(t, untagged.MatchesLanguage(nil))
	assert.False(t, untagged.MatchesLanguage([]string{"ru"}),
		"untagged archives pass only the empty filter")
}

func TestRecordIndexed(t *testing.T) {
	r := ReconstructRecord("hash", "/p", StatusIndexed, time.Now(), 3, "8.3.24", "ru")
	assert.True(t, r.Indexed())

	stale := ReconstructRecord("hash", "/p", RecordStatus("pending"), time.Time{}, 0, "", "")
	assert.False(t, stale.Indexed())
}
