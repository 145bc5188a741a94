package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/storage"
)

const sessionColumns = `
	id,
	user_id,
	case_id,
	number,
	status,
	started_at,
	ended_at,
	current_stage_id,
	completed_stage_ids_json,
	case_state_before_json,
	case_state_after_json
`

// CreateSession persists a new session row.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.ID = strings.TrimSpace(record.ID)
	record.UserID = strings.TrimSpace(record.UserID)
	record.CaseID = strings.TrimSpace(record.CaseID)
	if record.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.CaseID == "" {
		return fmt.Errorf("case id is required")
	}
	if record.Number <= 0 {
		return fmt.Errorf("session number must be positive")
	}
	if record.Status == "" {
		record.Status = storage.SessionStatusActive
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}

	completedJSON, err := marshalStringList(record.CompletedStageIDs)
	if err != nil {
		return err
	}
	beforeJSON, err := marshalJSONObject(record.CaseStateBefore)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (
	id,
	user_id,
	case_id,
	number,
	status,
	started_at,
	ended_at,
	current_stage_id,
	completed_stage_ids_json,
	case_state_before_json,
	case_state_after_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
`,
		record.ID,
		record.UserID,
		record.CaseID,
		record.Number,
		record.Status,
		toMillis(record.StartedAt),
		toNullMillis(record.EndedAt),
		toNullString(record.CurrentStageID),
		completedJSON,
		beforeJSON,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE id = ?
`, id)
	record, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// FindActiveSession returns the most recently started active session for the
// user and case.
func (s *Store) FindActiveSession(ctx context.Context, userID, caseID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)
	if userID == "" {
		return storage.SessionRecord{}, fmt.Errorf("user id is required")
	}
	if caseID == "" {
		return storage.SessionRecord{}, fmt.Errorf("case id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE user_id = ? AND case_id = ? AND status = ?
ORDER BY started_at DESC
LIMIT 1
`, userID, caseID, storage.SessionStatusActive)
	record, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("find active session: %w", err)
	}
	return record, nil
}

// LastSessionNumber returns the highest session number for the user and case.
func (s *Store) LastSessionNumber(ctx context.Context, userID, caseID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	if caseID == "" {
		return 0, fmt.Errorf("case id is required")
	}

	var number int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COALESCE(MAX(number), 0)
FROM sessions
WHERE user_id = ? AND case_id = ?
`, userID, caseID)
	if err := row.Scan(&number); err != nil {
		return 0, fmt.Errorf("last session number: %w", err)
	}
	return number, nil
}

// ListSessions returns the user's sessions ordered by startedAt descending.
func (s *Store) ListSessions(ctx context.Context, userID, caseID string) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = ?
`
	args := []any{userID}
	if caseID != "" {
		query += "AND case_id = ?\n"
		args = append(args, caseID)
	}
	query += "ORDER BY started_at DESC, id DESC\n"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// UpdateSessionProgress persists stage progress. A nil currentStageID leaves
// the current stage untouched; an empty value clears it.
func (s *Store) UpdateSessionProgress(ctx context.Context, id string, currentStageID *string, completedStageIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	completedJSON, err := marshalStringList(completedStageIDs)
	if err != nil {
		return err
	}

	var result sql.Result
	if currentStageID != nil {
		result, err = s.sqlDB.ExecContext(ctx, `
UPDATE sessions
SET current_stage_id = ?, completed_stage_ids_json = ?
WHERE id = ?
`, toNullString(*currentStageID), completedJSON, id)
	} else {
		result, err = s.sqlDB.ExecContext(ctx, `
UPDATE sessions
SET completed_stage_ids_json = ?
WHERE id = ?
`, completedJSON, id)
	}
	if err != nil {
		return fmt.Errorf("update session progress: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session progress rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompleteSession flips the session to completed exactly once.
func (s *Store) CompleteSession(ctx context.Context, id string, endedAt time.Time, caseStateAfter map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	afterJSON, err := marshalJSONObject(caseStateAfter)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
SET status = ?, ended_at = ?, case_state_after_json = ?
WHERE id = ? AND status = ?
`,
		storage.SessionStatusCompleted,
		toMillis(endedAt),
		afterJSON,
		id,
		storage.SessionStatusActive,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete session rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListCompletedWithoutReport returns ids of completed sessions missing a
// report, oldest first.
func (s *Store) ListCompletedWithoutReport(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT s.id
FROM sessions s
LEFT JOIN reports r ON r.session_id = s.id
WHERE s.status = ?
AND s.ended_at IS NOT NULL
AND s.ended_at <= ?
AND r.session_id IS NULL
ORDER BY s.ended_at ASC, s.id ASC
LIMIT ?
`, storage.SessionStatusCompleted, toMillis(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("list completed without report: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}
	return ids, nil
}

func scanSession(scan func(dest ...any) error) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var startedAt int64
	var endedAt sql.NullInt64
	var currentStageID sql.NullString
	var completedJSON, beforeJSON string
	var afterJSON sql.NullString
	if err := scan(
		&record.ID,
		&record.UserID,
		&record.CaseID,
		&record.Number,
		&record.Status,
		&startedAt,
		&endedAt,
		&currentStageID,
		&completedJSON,
		&beforeJSON,
		&afterJSON,
	); err != nil {
		return storage.SessionRecord{}, err
	}
	record.StartedAt = fromMillis(startedAt)
	record.EndedAt = fromNullMillis(endedAt)
	record.CurrentStageID = currentStageID.String
	record.CompletedStageIDs = unmarshalStringList(completedJSON)
	record.CaseStateBefore = unmarshalJSONObject(beforeJSON)
	if afterJSON.Valid {
		record.CaseStateAfter = unmarshalJSONObject(afterJSON.String)
	}
	return record, nil
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
