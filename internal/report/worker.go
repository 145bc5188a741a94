package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/platform/id"
	"github.com/mdc-engine/ramka/internal/queue"
	"github.com/mdc-engine/ramka/internal/storage"
)

// Config controls the worker loop behavior.
type Config struct {
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	// Reconciliation sweep: completed sessions older than SweepAge without
	// a report get a fresh job. Covers crashes between completion commit
	// and enqueue.
	SweepInterval time.Duration
	SweepAge      time.Duration
	SweepLimit    int
}

const (
	defaultConsumer      = "report-worker"
	defaultPollInterval  = 2 * time.Second
	defaultLeaseTTL      = 30 * time.Second
	defaultBatchSize     = 10
	defaultMaxAttempts   = 5
	defaultRetryBackoff  = 5 * time.Second
	defaultRetryMaxDelay = 5 * time.Minute
	defaultSweepInterval = time.Minute
	defaultSweepAge      = 2 * time.Minute
	defaultSweepLimit    = 50
)

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Consumer) == "" {
		c.Consumer = defaultConsumer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.SweepAge <= 0 {
		c.SweepAge = defaultSweepAge
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = defaultSweepLimit
	}
	return c
}

// Stores groups the storage interfaces the worker reads and writes.
type Stores struct {
	Session storage.SessionStore
	Case    storage.CaseStore
	Message storage.MessageStore
	Report  storage.ReportStore
}

// Worker leases report jobs, synthesizes reports, and reconciles sessions
// whose enqueue was lost.
type Worker struct {
	jobs        queue.Queue
	stores      Stores
	cfg         Config
	clock       func() time.Time
	idGenerator func() (string, error)
	logf        func(format string, args ...any)
}

// NewWorker creates a report worker with default clock and logging.
func NewWorker(jobs queue.Queue, stores Stores, cfg Config) (*Worker, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job queue is required")
	}
	if stores.Session == nil || stores.Case == nil || stores.Message == nil || stores.Report == nil {
		return nil, fmt.Errorf("worker stores are required")
	}
	return &Worker{
		jobs:        jobs,
		stores:      stores,
		cfg:         cfg.normalized(),
		clock:       time.Now,
		idGenerator: id.NewID,
		logf:        log.Printf,
	}, nil
}

// Run polls for jobs and runs the reconciliation sweep until the context is
// canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("worker is not configured")
	}

	pollTicker := time.NewTicker(w.cfg.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(w.cfg.SweepInterval)
	defer sweepTicker.Stop()

	w.logf("report worker started consumer=%s poll=%s", w.cfg.Consumer, w.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			w.logf("report worker stopped: %v", ctx.Err())
			return ctx.Err()
		case <-pollTicker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logf("report worker poll: %v", err)
			}
		case <-sweepTicker.C:
			if _, err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logf("report worker sweep: %v", err)
			}
		}
	}
}

// RunOnce leases and processes one batch of due jobs. It returns the number
// of jobs handled, counting failures routed to retry or dead.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock().UTC()
	jobs, err := w.jobs.Lease(ctx, w.cfg.Consumer, w.cfg.BatchSize, now, w.cfg.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("lease jobs: %w", err)
	}

	handled := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		if err := w.process(ctx, job); err != nil {
			w.fail(ctx, job, err)
		} else if err := w.jobs.MarkSucceeded(ctx, job.ID, w.cfg.Consumer, w.clock().UTC()); err != nil {
			w.logf("mark job %s succeeded: %v", job.ID, err)
		}
		handled++
	}
	return handled, nil
}

// Sweep re-enqueues completed sessions older than SweepAge that still have
// no report. Dedupe keys keep at most one live job per session, so sweeping
// never duplicates in-flight work.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.clock().UTC().Add(-w.cfg.SweepAge)
	sessionIDs, err := w.stores.Session.ListCompletedWithoutReport(ctx, cutoff, w.cfg.SweepLimit)
	if err != nil {
		return 0, fmt.Errorf("list sessions without report: %w", err)
	}

	enqueued := 0
	for _, sessionID := range sessionIDs {
		jobID, err := w.idGenerator()
		if err != nil {
			return enqueued, fmt.Errorf("generate job id: %w", err)
		}
		job, err := queue.NewReportJob(jobID, sessionID)
		if err != nil {
			return enqueued, fmt.Errorf("build report job: %w", err)
		}
		if err := w.jobs.Enqueue(ctx, job); err != nil {
			return enqueued, fmt.Errorf("enqueue report job for %s: %w", sessionID, err)
		}
		enqueued++
	}
	if enqueued > 0 {
		w.logf("report sweep re-enqueued %d session(s)", enqueued)
	}
	return enqueued, nil
}

func (w *Worker) process(ctx context.Context, job queue.Job) error {
	var payload queue.ReportJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		return fmt.Errorf("job payload has no session id")
	}

	session, err := w.stores.Session.GetSession(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", payload.SessionID, err)
	}
	caseRecord, err := w.stores.Case.GetCase(ctx, session.CaseID)
	if err != nil {
		return fmt.Errorf("load case %s: %w", session.CaseID, err)
	}
	messages, err := w.stores.Message.ListMessages(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list messages for %s: %w", session.ID, err)
	}

	record := Synthesize(Input{
		Session:  session,
		Case:     caseRecord,
		Messages: messages,
		Now:      w.clock(),
	})
	if err := w.stores.Report.UpsertReport(ctx, record); err != nil {
		return fmt.Errorf("upsert report for %s: %w", session.ID, err)
	}
	return nil
}

// fail routes a processing failure to retry with exponential backoff or, on
// the final attempt, to the dead state.
func (w *Worker) fail(ctx context.Context, job queue.Job, cause error) {
	now := w.clock().UTC()
	if job.AttemptCount+1 >= w.cfg.MaxAttempts {
		w.logf("job %s dead after %d attempts: %v", job.ID, job.AttemptCount+1, cause)
		if err := w.jobs.MarkDead(ctx, job.ID, w.cfg.Consumer, cause.Error(), now); err != nil {
			w.logf("mark job %s dead: %v", job.ID, err)
		}
		return
	}

	delay := w.cfg.RetryBackoff << uint(job.AttemptCount)
	if delay > w.cfg.RetryMaxDelay || delay <= 0 {
		delay = w.cfg.RetryMaxDelay
	}
	w.logf("job %s retry in %s: %v", job.ID, delay, cause)
	if err := w.jobs.MarkRetry(ctx, job.ID, w.cfg.Consumer, now.Add(delay), cause.Error()); err != nil {
		w.logf("mark job %s retry: %v", job.ID, err)
	}
}
