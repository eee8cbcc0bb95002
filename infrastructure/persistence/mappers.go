package persistence

import (
	"github.com/helpdex/helpdex/domain/doc"
)

// ArchiveRecordMapper maps between domain Record and persistence
// ArchiveRecordModel.
type ArchiveRecordMapper struct{}

// ToDomain converts an ArchiveRecordModel to a domain Record.
func (m ArchiveRecordMapper) ToDomain(e ArchiveRecordModel) doc.Record {
	return doc.ReconstructRecord(
		e.ContentHash,
		e.SourcePath,
		doc.RecordStatus(e.Status),
		e.IndexedAt,
		e.TopicCount,
		e.Version,
		e.Language,
	)
}

// ToModel converts a domain Record to an ArchiveRecordModel.
func (m ArchiveRecordMapper) ToModel(r doc.Record) ArchiveRecordModel {
	return ArchiveRecordModel{
		ContentHash: r.Hash(),
		SourcePath:  r.Path(),
		Status:      string(r.Status()),
		IndexedAt:   r.IndexedAt(),
		TopicCount:  r.TopicCount(),
		Version:     r.Version(),
		Language:    r.Language(),
	}
}
