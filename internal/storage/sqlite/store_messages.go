package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/storage"
)

// AppendMessage persists one message and returns it with its assigned
// sequence number.
func (s *Store) AppendMessage(ctx context.Context, record storage.MessageRecord) (storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MessageRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MessageRecord{}, fmt.Errorf("storage is not configured")
	}

	record.ID = strings.TrimSpace(record.ID)
	record.SessionID = strings.TrimSpace(record.SessionID)
	record.Role = strings.TrimSpace(record.Role)
	if record.ID == "" {
		return storage.MessageRecord{}, fmt.Errorf("message id is required")
	}
	if record.SessionID == "" {
		return storage.MessageRecord{}, fmt.Errorf("session id is required")
	}
	if record.Role == "" {
		return storage.MessageRecord{}, fmt.Errorf("message role is required")
	}
	if record.Content == "" {
		return storage.MessageRecord{}, fmt.Errorf("message content is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (id, session_id, role, content, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		record.ID,
		record.SessionID,
		record.Role,
		record.Content,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("append message: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("append message sequence: %w", err)
	}
	record.Seq = seq
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// ListMessages returns a session's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, id, session_id, role, content, created_at
FROM messages
WHERE session_id = ?
ORDER BY created_at ASC, seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []storage.MessageRecord
	for rows.Next() {
		var record storage.MessageRecord
		var createdAt int64
		if err := rows.Scan(
			&record.Seq,
			&record.ID,
			&record.SessionID,
			&record.Role,
			&record.Content,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}
