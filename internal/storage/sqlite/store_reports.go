package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/storage"
)

// UpsertReport creates the report row or fully overwrites an existing one.
// This is the idempotency point of the report pipeline: replays converge to
// the same stored report for the same underlying session state.
func (s *Store) UpsertReport(ctx context.Context, record storage.ReportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.SessionID = strings.TrimSpace(record.SessionID)
	if record.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	scoresJSON, err := json.Marshal(record.Scores)
	if err != nil {
		return fmt.Errorf("marshal report scores: %w", err)
	}
	payloadJSON, err := marshalJSONObject(record.Payload)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO reports (session_id, summary, scores_json, payload_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	summary = excluded.summary,
	scores_json = excluded.scores_json,
	payload_json = excluded.payload_json,
	updated_at = excluded.updated_at
`,
		record.SessionID,
		record.Summary,
		string(scoresJSON),
		payloadJSON,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// GetReport returns the report for one session.
func (s *Store) GetReport(ctx context.Context, sessionID string) (storage.ReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ReportRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ReportRecord{}, fmt.Errorf("storage is not configured")
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.ReportRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, summary, scores_json, payload_json, created_at, updated_at
FROM reports
WHERE session_id = ?
`, sessionID)

	var record storage.ReportRecord
	var scoresJSON, payloadJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&record.SessionID,
		&record.Summary,
		&scoresJSON,
		&payloadJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ReportRecord{}, storage.ErrNotFound
		}
		return storage.ReportRecord{}, fmt.Errorf("get report: %w", err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &record.Scores); err != nil {
		return storage.ReportRecord{}, fmt.Errorf("unmarshal report scores: %w", err)
	}
	record.Payload = unmarshalJSONObject(payloadJSON)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
