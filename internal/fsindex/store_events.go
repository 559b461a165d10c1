package fsindex

import (
	"context"
	"fmt"
	"time"
)

// RecordEvent appends a change event to the feed. When backlog is positive
// the oldest events beyond the cap are dropped.
func (s *Store) RecordEvent(ctx context.Context, eventType EventType, relPath string, isDir bool, backlog int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (type, path, is_dir, recorded_at) VALUES (?, ?, ?, ?)`,
		eventType, relPath, boolToInt(isDir), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	if backlog > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM events WHERE id <= (SELECT MAX(id) FROM events) - ?`, backlog)
		if err != nil {
			return fmt.Errorf("trim event backlog: %w", err)
		}
	}
	return nil
}

// Events returns up to limit unconfirmed events in arrival order.
func (s *Store) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, path, is_dir, recorded_at FROM events ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event       Event
			isDir       int
			recordedRaw string
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Path, &isDir, &recordedRaw); err != nil {
			return nil, err
		}
		event.IsDir = isDir != 0
		if recorded, err := parseTimeString(recordedRaw); err == nil {
			event.RecordedAt = recorded
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ConfirmEvents removes the oldest limit events from the feed, acknowledging
// that a consumer has processed them.
func (s *Store) ConfirmEvents(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id IN (SELECT id FROM events ORDER BY id LIMIT ?)`, limit)
	if err != nil {
		return 0, fmt.Errorf("confirm events: %w", err)
	}
	return res.RowsAffected()
}
