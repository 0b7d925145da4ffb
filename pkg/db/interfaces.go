// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// Row represents a database row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result represents the result of a database operation.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Rows represents multiple database rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Transaction represents operations that can be performed within a database transaction.
type Transaction interface {
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Commit() error
	Rollback() error
}

// ActivityStore is the append-only audit log.
type ActivityStore interface {
	RecordActivity(ctx context.Context, event models.ActivityEvent) error
	RecentActivity(ctx context.Context, since time.Time, limit int) ([]models.ActivityEvent, error)
}

// ActionStore deduplicates write actions by idempotency key.
type ActionStore interface {
	// ReserveAction stores rec as pending. When the key already exists the
	// stored record is returned and reserved is false.
	ReserveAction(ctx context.Context, rec *models.ActionRecord) (existing *models.ActionRecord, reserved bool, err error)
	GetAction(ctx context.Context, key string) (*models.ActionRecord, error)
	CompleteAction(ctx context.Context, key, outcome, errMsg string) error
}

// Service represents all database operations.
type Service interface {
	ActivityStore
	ActionStore

	Begin(ctx context.Context) (Transaction, error)
	Close() error

	// CleanOldData removes activity and action records older than the retention period.
	CleanOldData(ctx context.Context, retentionPeriod time.Duration) error
}
