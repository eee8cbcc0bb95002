package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger routes GORM's logging through the client's slog.Logger so
// ingest cache queries land in the same stream as the rest of helpdex.
// Every SQL statement is a Debug message; level filtering belongs to
// slog, and when Debug is off the SQL string is never formatted.
type gormLogger struct {
	log *slog.Logger
}

func newGormLogger(log *slog.Logger) gormLogger {
	if log == nil {
		log = slog.Default()
	}
	return gormLogger{log: log}
}

// LogMode is a no-op; the slog level decides what gets emitted.
func (l gormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

// maxSQLLength bounds SQL strings in debug output. Topic upsert batches
// produce statements far longer than anyone wants in a terminal.
const maxSQLLength = 200

// truncateSQL keeps the head and tail of an over-long SQL string.
func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace is called by GORM after every SQL operation. ErrRecordNotFound is
// the normal cache-miss result of Lookup, so it logs at Debug alongside
// successful queries; everything else logs at Error.
func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		l.log.ErrorContext(ctx, "ingest cache query error",
			"sql", truncateSQL(sql),
			"rows", rows,
			"duration", elapsed,
			"error", err,
		)
		return
	}

	if !l.log.Enabled(ctx, slog.LevelDebug) {
		return
	}

	sql, rows := fc()
	l.log.DebugContext(ctx, "ingest cache query",
		"sql", truncateSQL(sql),
		"rows", rows,
		"duration", elapsed,
	)
}
