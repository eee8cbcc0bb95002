package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/helpdex/helpdex/domain/doc"
	"github.com/helpdex/helpdex/internal/database"
)

// ArchiveRecordStore implements doc.Cache using GORM.
type ArchiveRecordStore struct {
	db     database.Database
	mapper ArchiveRecordMapper
}

// NewArchiveRecordStore creates a new ArchiveRecordStore.
func NewArchiveRecordStore(db database.Database) ArchiveRecordStore {
	return ArchiveRecordStore{db: db, mapper: ArchiveRecordMapper{}}
}

// Lookup returns the record for a content hash.
func (s ArchiveRecordStore) Lookup(ctx context.Context, hash string) (doc.Record, bool, error) {
	var model ArchiveRecordModel
	result := s.db.Session(ctx).Where("content_hash = ?", hash).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return doc.Record{}, false, nil
		}
		return doc.Record{}, false, fmt.Errorf("lookup archive record: %w", result.Error)
	}
	return s.mapper.ToDomain(model), true, nil
}

// MarkIndexed records a completed ingest. Any earlier record for the
// same source path is removed in the same transaction, so a changed
// archive never leaves a stale hash behind.
func (s ArchiveRecordStore) MarkIndexed(ctx context.Context, record doc.Record) error {
	model := s.mapper.ToModel(record)
	model.UpdatedAt = time.Now()

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.
			Where("source_path = ? AND content_hash != ?", model.SourcePath, model.ContentHash).
			Delete(&ArchiveRecordModel{}).Error; err != nil {
			return err
		}
		return tx.Save(&model).Error
	})
	if err != nil {
		return fmt.Errorf("mark archive indexed: %w", err)
	}
	return nil
}

// Records returns every cache record ordered by source path.
func (s ArchiveRecordStore) Records(ctx context.Context) ([]doc.Record, error) {
	var models []ArchiveRecordModel
	result := s.db.Session(ctx).Order("source_path").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("list archive records: %w", result.Error)
	}
	records := make([]doc.Record, len(models))
	for i, m := range models {
		records[i] = s.mapper.ToDomain(m)
	}
	return records, nil
}

// EraseAll drops all cache records.
func (s ArchiveRecordStore) EraseAll(ctx context.Context) error {
	result := s.db.Session(ctx).Where("1 = 1").Delete(&ArchiveRecordModel{})
	if result.Error != nil {
		return fmt.Errorf("erase archive records: %w", result.Error)
	}
	return nil
}
