package doc

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// langSuffix matches the language code encoded in archive filenames,
// e.g. shcntx_ru.hbk.
var langSuffix = regexp.MustCompile(`_([a-z]{2})\.hbk$`)

// Archive identifies a single help-bundle file discovered under a
// source root, with its derived version and language tags.
type Archive struct {
	path     string
	version  string
	language string
}

// NewArchive creates an Archive for the given absolute path. The
// version is the name of the leaf directory between root and the file;
// archives sitting directly under root carry the root's base name.
func NewArchive(path, root string) Archive {
	return Archive{
		path:     path,
		version:  versionTag(path, root),
		language: LanguageFromFilename(path),
	}
}

// Path returns the absolute archive path.
func (a Archive) Path() string { return a.path }

// Version returns the derived version tag.
func (a Archive) Version() string { return a.version }

// Language returns the derived language tag, or empty.
func (a Archive) Language() string { return a.language }

// MatchesLanguage reports whether the archive passes the language
// filter. An empty filter admits everything; an archive without a
// language tag is admitted only by the empty filter.
func (a Archive) MatchesLanguage(languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	for _, l := range languages {
		if a.language == l {
			return true
		}
	}
	return false
}

// LanguageFromFilename extracts the two-letter language code from an
// archive filename, or empty when the name carries none.
func LanguageFromFilename(path string) string {
	m := langSuffix.FindStringSubmatch(strings.ToLower(filepath.Base(path)))
	if m == nil {
		return ""
	}
	return m[1]
}

func versionTag(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(filepath.Dir(path))
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return filepath.Base(root)
	}
	parts := strings.Split(dir, string(filepath.Separator))
	return parts[0]
}

// RecordStatus enumerates ingest-cache record states.
type RecordStatus string

// Cache record states.
const (
	StatusIndexed RecordStatus = "indexed"
)

// Record is an ingest-cache entry keyed by archive content hash.
type Record struct {
	hash       string
	path       string
	status     RecordStatus
	indexedAt  time.Time
	topicCount int
	version    string
	language   string
}

// NewRecord creates a cache record for a successfully indexed archive.
func NewRecord(hash, path string, indexedAt time.Time, topicCount int, version, language string) Record {
	return Record{
		hash:       hash,
		path:       path,
		status:     StatusIndexed,
		indexedAt:  indexedAt,
		topicCount: topicCount,
		version:    version,
		language:   language,
	}
}

// ReconstructRecord rebuilds a Record from persisted fields.
func ReconstructRecord(hash, path string, status RecordStatus, indexedAt time.Time, topicCount int, version, language string) Record {
	return Record{
		hash:       hash,
		path:       path,
		status:     status,
		indexedAt:  indexedAt,
		topicCount: topicCount,
		version:    version,
		language:   language,
	}
}

// Hash returns the archive content hash.
func (r Record) Hash() string { return r.hash }

// Path returns the source path recorded at ingest time.
func (r Record) Path() string { return r.path }

// Status returns the record status.
func (r Record) Status() RecordStatus { return r.status }

// IndexedAt returns the last successful ingest timestamp.
func (r Record) IndexedAt() time.Time { return r.indexedAt }

// TopicCount returns the number of topics produced at ingest time.
func (r Record) TopicCount() int { return r.topicCount }

// Version returns the recorded version tag.
func (r Record) Version() string { return r.version }

// Language returns the recorded language tag.
func (r Record) Language() string { return r.language }

// Indexed reports whether the record marks a completed ingest.
func (r Record) Indexed() bool { return r.status == StatusIndexed }
