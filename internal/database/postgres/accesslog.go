package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facegate/internal/database"
)

// CreateAccessLog appends one audit record.
func (r *Repository) CreateAccessLog(ctx context.Context, entry database.AccessLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_log (subject_id, access_type, result, confidence)
		VALUES ($1, $2, $3, $4)
	`, entry.SubjectID, string(entry.AccessType), string(entry.Result), entry.Confidence)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// RecentAccessLogs returns the newest entries, newest first.
func (r *Repository) RecentAccessLogs(ctx context.Context, limit int) ([]database.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, access_type, result, confidence, ts
		FROM access_log
		ORDER BY ts DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}
	defer rows.Close()

	var entries []database.AccessLogEntry
	for rows.Next() {
		var e database.AccessLogEntry
		var accessType, result string
		if err := rows.Scan(&e.ID, &e.SubjectID, &accessType, &result, &e.Confidence, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan access log entry: %w", err)
		}
		e.AccessType = database.AccessType(accessType)
		e.Result = database.AccessResult(result)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access log: %w", err)
	}
	return entries, nil
}
