package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/platform/id"
	"github.com/mdc-engine/ramka/internal/queue"
	"github.com/mdc-engine/ramka/internal/storage"
)

const jobColumns = `
	id,
	job_type,
	payload_json,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at
`

// Enqueue stores a pending report job. Jobs whose dedupe key collides with a
// live (pending or leased) job are dropped silently.
func (s *Store) Enqueue(ctx context.Context, job queue.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	job.ID = strings.TrimSpace(job.ID)
	job.Type = strings.TrimSpace(job.Type)
	job.DedupeKey = strings.TrimSpace(job.DedupeKey)
	if job.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate job id: %w", err)
		}
		job.ID = generated
	}
	if job.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if len(job.Payload) == 0 {
		return fmt.Errorf("job payload is required")
	}
	if job.DedupeKey == "" {
		return fmt.Errorf("job dedupe key is required")
	}
	now := time.Now().UTC()
	nextAttemptAt := job.NextAttemptAt
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO report_jobs (
	id,
	job_type,
	payload_json,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
ON CONFLICT (dedupe_key) WHERE status IN ('pending', 'leased') DO NOTHING
`,
		job.ID,
		job.Type,
		string(job.Payload),
		job.DedupeKey,
		queue.StatusPending,
		toMillis(nextAttemptAt),
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Lease claims due jobs for one consumer. Pending jobs whose attempt time
// has arrived and leased jobs whose lease expired are both candidates.
func (s *Store) Lease(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()
	leaseExpiresAt := now.Add(leaseTTL)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start lease transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
SELECT id
FROM report_jobs
WHERE (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
ORDER BY next_attempt_at ASC, created_at ASC, id ASC
LIMIT ?
`,
		queue.StatusPending,
		toMillis(now),
		queue.StatusLeased,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select lease candidates: %w", err)
	}
	candidateIDs := make([]string, 0, limit)
	for rows.Next() {
		var jobID string
		if scanErr := rows.Scan(&jobID); scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan lease candidate: %w", scanErr)
		}
		candidateIDs = append(candidateIDs, jobID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate lease candidates: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close lease candidates: %w", err)
	}
	if len(candidateIDs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit empty lease transaction: %w", err)
		}
		return []queue.Job{}, nil
	}

	leased := make([]queue.Job, 0, len(candidateIDs))
	for _, jobID := range candidateIDs {
		result, updateErr := tx.ExecContext(ctx, `
UPDATE report_jobs
SET
	status = ?,
	lease_owner = ?,
	lease_expires_at = ?,
	updated_at = ?
WHERE id = ?
AND (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
`,
			queue.StatusLeased,
			consumer,
			toMillis(leaseExpiresAt),
			toMillis(now),
			jobID,
			queue.StatusPending,
			toMillis(now),
			queue.StatusLeased,
			toMillis(now),
		)
		if updateErr != nil {
			return nil, fmt.Errorf("lease job %s: %w", jobID, updateErr)
		}
		rowsAffected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return nil, fmt.Errorf("lease rows affected for %s: %w", jobID, rowsErr)
		}
		if rowsAffected == 0 {
			continue
		}

		row := tx.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM report_jobs
WHERE id = ?
`, jobID)
		job, scanErr := scanJob(row.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan leased job %s: %w", jobID, scanErr)
		}
		leased = append(leased, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease transaction: %w", err)
	}
	return leased, nil
}

// MarkSucceeded finishes one leased job.
func (s *Store) MarkSucceeded(ctx context.Context, jobID, consumer string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	jobID = strings.TrimSpace(jobID)
	consumer = strings.TrimSpace(consumer)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE report_jobs
SET
	status = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = '',
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		queue.StatusSucceeded,
		toMillis(processedAt),
		toMillis(processedAt),
		jobID,
		queue.StatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job succeeded rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkRetry returns one leased job to pending with a future attempt time.
func (s *Store) MarkRetry(ctx context.Context, jobID, consumer string, nextAttemptAt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	jobID = strings.TrimSpace(jobID)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if nextAttemptAt.IsZero() {
		return fmt.Errorf("next attempt at is required")
	}
	now := time.Now().UTC()
	nextAttemptAt = nextAttemptAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE report_jobs
SET
	status = ?,
	attempt_count = attempt_count + 1,
	next_attempt_at = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = NULL,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		queue.StatusPending,
		toMillis(nextAttemptAt),
		lastError,
		toMillis(now),
		jobID,
		queue.StatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark job retry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job retry rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkDead parks one leased job permanently.
func (s *Store) MarkDead(ctx context.Context, jobID, consumer string, lastError string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	jobID = strings.TrimSpace(jobID)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE report_jobs
SET
	status = ?,
	attempt_count = attempt_count + 1,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		queue.StatusDead,
		lastError,
		toMillis(processedAt),
		toMillis(processedAt),
		jobID,
		queue.StatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark job dead: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job dead rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetJob returns one job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return queue.Job{}, err
	}
	if s == nil || s.sqlDB == nil {
		return queue.Job{}, fmt.Errorf("storage is not configured")
	}

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return queue.Job{}, fmt.Errorf("job id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM report_jobs
WHERE id = ?
`, jobID)
	job, err := scanJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return queue.Job{}, storage.ErrNotFound
		}
		return queue.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func scanJob(scan func(dest ...any) error) (queue.Job, error) {
	var job queue.Job
	var payloadJSON string
	var nextAttemptAt, createdAt, updatedAt int64
	var leaseExpiresAt, processedAt sql.NullInt64
	if err := scan(
		&job.ID,
		&job.Type,
		&payloadJSON,
		&job.DedupeKey,
		&job.Status,
		&job.AttemptCount,
		&nextAttemptAt,
		&job.LeaseOwner,
		&leaseExpiresAt,
		&job.LastError,
		&processedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return queue.Job{}, err
	}
	job.Payload = []byte(payloadJSON)
	job.NextAttemptAt = fromMillis(nextAttemptAt)
	job.LeaseExpires = fromNullMillis(leaseExpiresAt)
	job.ProcessedAt = fromNullMillis(processedAt)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	return job, nil
}

var _ queue.Queue = (*Store)(nil)
