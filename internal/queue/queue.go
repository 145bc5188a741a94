// Package queue defines the durable job queue contract decoupling session
// completion from report generation.
//
// Delivery is at-least-once: a leased job whose lease expires is handed to
// the next consumer, so handlers must be idempotent. There is no ordering
// guarantee across producers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusLeased    = "leased"
	StatusSucceeded = "succeeded"
	StatusDead      = "dead"
)

// TypeGenerateReport is the job type for report generation.
const TypeGenerateReport = "reports.generate"

// Job is one unit of queued work.
type Job struct {
	ID            string
	Type          string
	Payload       []byte
	DedupeKey     string // at most one live (pending/leased) job per key
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	LeaseOwner    string
	LeaseExpires  *time.Time
	LastError     string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReportJobPayload is the payload carried by report generation jobs.
type ReportJobPayload struct {
	SessionID string `json:"sessionId"`
}

// NewReportJob builds a report generation job for one session. The dedupe
// key keeps at most one live job per session.
func NewReportJob(id, sessionID string) (Job, error) {
	payload, err := json.Marshal(ReportJobPayload{SessionID: sessionID})
	if err != nil {
		return Job{}, fmt.Errorf("marshal report job payload: %w", err)
	}
	return Job{
		ID:        id,
		Type:      TypeGenerateReport,
		Payload:   payload,
		DedupeKey: sessionID,
	}, nil
}

// Queue is the durable at-least-once job queue.
type Queue interface {
	// Enqueue stores a pending job. A job whose dedupe key matches a live
	// job is dropped silently; completion therefore enqueues exactly one
	// job per session even under replays.
	Enqueue(ctx context.Context, job Job) error
	// Lease claims up to limit due jobs for the consumer, extending each
	// lease by ttl. Expired leases are reclaimed.
	Lease(ctx context.Context, consumer string, limit int, now time.Time, ttl time.Duration) ([]Job, error)
	// MarkSucceeded finishes a leased job.
	MarkSucceeded(ctx context.Context, id, consumer string, processedAt time.Time) error
	// MarkRetry returns a leased job to pending with a future attempt time.
	MarkRetry(ctx context.Context, id, consumer string, nextAttemptAt time.Time, lastError string) error
	// MarkDead parks a leased job permanently after exhausted retries.
	MarkDead(ctx context.Context, id, consumer string, lastError string, processedAt time.Time) error
}
