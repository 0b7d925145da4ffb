// Package db pkg/db/db.go provides the SQLite store for the activity log and
// action idempotency keys.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"go.uber.org/zap"
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- Append-only audit log
	CREATE TABLE IF NOT EXISTS activity_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		actor_kind TEXT NOT NULL,
		action TEXT NOT NULL,
		target_id TEXT NOT NULL,
		outcome TEXT NOT NULL
	);

	-- Write actions keyed by idempotency token
	CREATE TABLE IF NOT EXISTS action_keys (
		idempotency_key TEXT PRIMARY KEY,
		panel_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_events_time
		ON activity_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action_keys_at
		ON action_keys(at);
	`

	defaultActivityLimit = 500
)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ Service = (*DB)(nil)

// New creates a new database connection and initializes the schema.
func New(ctx context.Context, dbPath string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// one writer; sqlite serialises writes anyway
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedToEnableWAL, err)
	}

	db := &DB{DB: sqlDB, logger: logger.Named("db"), now: time.Now}
	if err := db.initSchema(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, createTablesSQL)

	return err
}

func (db *DB) Begin(ctx context.Context) (Transaction, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}

	return ToTransaction(tx), nil
}

func (db *DB) rollbackOnError(tx Transaction, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error("Error rolling back transaction", zap.Error(rbErr))
		}
	}
}

func (db *DB) closeRows(rows Rows) {
	if err := rows.Close(); err != nil {
		db.logger.Warn("failed to close rows", zap.Error(err))
	}
}

// CleanOldData removes data older than the retention period.
func (db *DB) CleanOldData(ctx context.Context, retentionPeriod time.Duration) (err error) {
	cutoff := db.now().Add(-retentionPeriod).UnixNano()

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			db.rollbackOnError(tx, err)

			return
		}

		err = tx.Commit()
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM activity_events WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("%w activity events: %w", ErrFailedToClean, err)
	}

	if _, err = tx.Exec(ctx, "DELETE FROM action_keys WHERE at < ?", cutoff); err != nil {
		return fmt.Errorf("%w action keys: %w", ErrFailedToClean, err)
	}

	return nil
}
