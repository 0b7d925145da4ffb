package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// OutcomePending marks a reserved action whose write has not finished.
const OutcomePending = "pending"

const selectActionSQL = `
        SELECT idempotency_key, panel_id, kind, target_id, outcome, error, at
        FROM action_keys
        WHERE idempotency_key = ?`

func (db *DB) ReserveAction(ctx context.Context, rec *models.ActionRecord) (existing *models.ActionRecord, reserved bool, err error) {
	if rec.At.IsZero() {
		rec.At = db.now()
	}

	if rec.Outcome == "" {
		rec.Outcome = OutcomePending
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { db.rollbackOnError(tx, err) }()

	result, err := tx.Exec(ctx, `
        INSERT OR IGNORE INTO action_keys (idempotency_key, panel_id, kind, target_id, outcome, error, at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.IdempotencyKey, rec.PanelID, rec.Kind, rec.TargetID, rec.Outcome, rec.Error, rec.At.UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("%w action: %w", ErrFailedToInsert, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("%w action: %w", ErrFailedToInsert, err)
	}

	if affected == 0 {
		existing, err = scanAction(tx.QueryRow(ctx, selectActionSQL, rec.IdempotencyKey))
		if err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return existing, affected > 0, nil
}

func (db *DB) GetAction(ctx context.Context, key string) (*models.ActionRecord, error) {
	return scanAction(&SQLRow{db.QueryRowContext(ctx, selectActionSQL, key)})
}

// CompleteAction stores the final outcome of a reserved action.
func (db *DB) CompleteAction(ctx context.Context, key, outcome, errMsg string) error {
	result, err := db.ExecContext(ctx, `
        UPDATE action_keys
        SET outcome = ?, error = ?, at = ?
        WHERE idempotency_key = ?`,
		outcome, errMsg, db.now().UnixNano(), key,
	)
	if err != nil {
		return fmt.Errorf("%w action: %w", ErrFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w action: %w", ErrFailedToUpdate, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrActionNotFound, key)
	}

	return nil
}

func scanAction(row Row) (*models.ActionRecord, error) {
	var (
		rec models.ActionRecord
		at  int64
	)

	err := row.Scan(&rec.IdempotencyKey, &rec.PanelID, &rec.Kind, &rec.TargetID, &rec.Outcome, &rec.Error, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w action: %w", ErrFailedToScan, err)
	}

	rec.At = time.Unix(0, at).UTC()

	return &rec, nil
}
