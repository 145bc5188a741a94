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

// UpsertCase creates or replaces one catalog entry.
func (s *Store) UpsertCase(ctx context.Context, record storage.CaseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return fmt.Errorf("case id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	tagsJSON, err := marshalStringList(record.Tags)
	if err != nil {
		return err
	}
	payloadJSON, err := marshalJSONObject(record.Payload)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO cases (
	id,
	title,
	method,
	difficulty,
	tags_json,
	payload_json,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	title = excluded.title,
	method = excluded.method,
	difficulty = excluded.difficulty,
	tags_json = excluded.tags_json,
	payload_json = excluded.payload_json,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.Title,
		record.Method,
		record.Difficulty,
		tagsJSON,
		payloadJSON,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert case: %w", err)
	}
	return nil
}

// GetCase returns one catalog entry by id.
func (s *Store) GetCase(ctx context.Context, id string) (storage.CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CaseRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CaseRecord{}, fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.CaseRecord{}, fmt.Errorf("case id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, title, method, difficulty, tags_json, payload_json, created_at, updated_at
FROM cases
WHERE id = ?
`, id)
	record, err := scanCase(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CaseRecord{}, storage.ErrNotFound
		}
		return storage.CaseRecord{}, fmt.Errorf("get case: %w", err)
	}
	return record, nil
}

// ListCases returns all catalog entries ordered by id.
func (s *Store) ListCases(ctx context.Context) ([]storage.CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, method, difficulty, tags_json, payload_json, created_at, updated_at
FROM cases
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var records []storage.CaseRecord
	for rows.Next() {
		record, err := scanCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return records, nil
}

func scanCase(scan func(dest ...any) error) (storage.CaseRecord, error) {
	var record storage.CaseRecord
	var tagsJSON, payloadJSON string
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.Title,
		&record.Method,
		&record.Difficulty,
		&tagsJSON,
		&payloadJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.CaseRecord{}, err
	}
	record.Tags = unmarshalStringList(tagsJSON)
	record.Payload = unmarshalJSONObject(payloadJSON)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
