package database

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type txRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

func newTestDatabase(t *testing.T) Database {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "tx.db")
	db, err := NewDatabase(context.Background(), url, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.GORM().AutoMigrate(&txRow{}))
	return db
}

func countRows(t *testing.T, db Database) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Session(context.Background()).Model(&txRow{}).Count(&n).Error)
	return n
}

func TestNewDatabaseUnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(context.Background(), "mysql://user@host/db", slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestWithTransactionCommits(t *testing.T) {
	db := newTestDatabase(t)

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		return tx.Create(&txRow{Name: "committed"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDatabase(t)
	boom := errors.New("boom")

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Create(&txRow{Name: "doomed"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countRows(t, db), "failed transaction leaves no rows")
}

func TestWithTransactionResult(t *testing.T) {
	db := newTestDatabase(t)

	id, err := WithTransactionResult(context.Background(), db, func(tx *gorm.DB) (uint, error) {
		row := txRow{Name: "with-result"}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, int64(1), countRows(t, db))
}

func TestTransactionDoubleFinishIsNoop(t *testing.T) {
	db := newTestDatabase(t)

	txn, err := NewTransaction(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, txn.Session().Create(&txRow{Name: "x"}).Error)
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Commit(), "second commit is a no-op")
	require.NoError(t, txn.Rollback(), "rollback after commit is a no-op")
	assert.Equal(t, int64(1), countRows(t, db))
}
