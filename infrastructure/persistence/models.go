package persistence

import "time"

// ArchiveRecordModel is the GORM model for the ingest cache. The
// content hash is the primary key; the source path carries a unique
// index so a re-versioned archive at the same path replaces its old
// record instead of accumulating one per content revision.
type ArchiveRecordModel struct {
	ContentHash string    `gorm:"column:content_hash;primaryKey"`
	SourcePath  string    `gorm:"column:source_path;uniqueIndex;not null"`
	Status      string    `gorm:"column:status;not null"`
	IndexedAt   time.Time `gorm:"column:indexed_at;not null"`
	TopicCount  int       `gorm:"column:topic_count;not null"`
	Version     string    `gorm:"column:version"`
	Language    string    `gorm:"column:language"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName returns the database table name.
func (ArchiveRecordModel) TableName() string {
	return "archive_records"
}
