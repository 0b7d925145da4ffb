package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// RecordActivity appends one event to the audit log.
func (db *DB) RecordActivity(ctx context.Context, event models.ActivityEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = db.now()
	}

	_, err := db.ExecContext(ctx, `
        INSERT INTO activity_events (timestamp, actor_kind, action, target_id, outcome)
        VALUES (?, ?, ?, ?, ?)`,
		event.Timestamp.UnixNano(),
		event.ActorKind,
		event.Action,
		event.TargetID,
		event.Outcome,
	)
	if err != nil {
		return fmt.Errorf("%w activity event: %w", ErrFailedToInsert, err)
	}

	return nil
}

// RecentActivity returns events at or after since, most recent first.
func (db *DB) RecentActivity(ctx context.Context, since time.Time, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	rows, err := db.QueryContext(ctx, `
        SELECT timestamp, actor_kind, action, target_id, outcome
        FROM activity_events
        WHERE timestamp >= ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`,
		unixNanos(since),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w activity: %w", ErrFailedToQuery, err)
	}
	defer db.closeRows(&SQLRows{rows})

	events := []models.ActivityEvent{}

	for rows.Next() {
		var (
			e  models.ActivityEvent
			ts int64
		)

		if err := rows.Scan(&ts, &e.ActorKind, &e.Action, &e.TargetID, &e.Outcome); err != nil {
			return nil, fmt.Errorf("%w activity row: %w", ErrFailedToScan, err)
		}

		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w activity rows: %w", ErrFailedToQuery, err)
	}

	return events, nil
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}
