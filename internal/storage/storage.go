// Package storage defines persistence records and store interfaces for the
// case catalog, practice sessions, messages, and generated reports.
//
// No business rules live here: invariants such as ownership checks, stage
// ordering, and active-session reuse are enforced by the session service
// before it calls into a store.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("not found")

// Session lifecycle statuses as stored.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// CaseRecord is one catalog entry a session can be run against.
type CaseRecord struct {
	ID         string
	Title      string
	Method     string
	Difficulty int
	Tags       []string
	Payload    map[string]any // decoded scripted case document
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionRecord is one user's run through a case.
type SessionRecord struct {
	ID                string
	UserID            string
	CaseID            string
	Number            int
	Status            string
	StartedAt         time.Time
	EndedAt           *time.Time // nil until completed
	CurrentStageID    string     // empty when no current stage
	CompletedStageIDs []string
	CaseStateBefore   map[string]any
	CaseStateAfter    map[string]any // nil until completed
}

// MessageRecord is one utterance within a session. Seq is assigned by the
// store and breaks createdAt ties in insertion order.
type MessageRecord struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Seq       int64
	CreatedAt time.Time
}

// ReportScores is the fixed-shape heuristic score record.
type ReportScores struct {
	Structure  int `json:"structure"`
	Engagement int `json:"engagement"`
	Clarity    int `json:"clarity"`
}

// ReportRecord is the derived end-of-session artifact, unique per session.
type ReportRecord struct {
	SessionID string
	Summary   string
	Scores    ReportScores
	Payload   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CaseStore persists catalog entries.
type CaseStore interface {
	UpsertCase(ctx context.Context, record CaseRecord) error
	GetCase(ctx context.Context, id string) (CaseRecord, error)
	ListCases(ctx context.Context) ([]CaseRecord, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	// FindActiveSession returns the most recently started active session
	// for the user and case, or ErrNotFound.
	FindActiveSession(ctx context.Context, userID, caseID string) (SessionRecord, error)
	// LastSessionNumber returns the highest session number assigned for the
	// user and case, or zero when none exist.
	LastSessionNumber(ctx context.Context, userID, caseID string) (int, error)
	// ListSessions returns the user's sessions ordered by startedAt
	// descending. caseID narrows the listing when non-empty.
	ListSessions(ctx context.Context, userID, caseID string) ([]SessionRecord, error)
	// UpdateSessionProgress persists stage progress. currentStageID is
	// applied only when set (nil leaves the column untouched).
	UpdateSessionProgress(ctx context.Context, id string, currentStageID *string, completedStageIDs []string) error
	// CompleteSession flips the session to completed, recording endedAt and
	// the merged caseStateAfter snapshot.
	CompleteSession(ctx context.Context, id string, endedAt time.Time, caseStateAfter map[string]any) error
	// ListCompletedWithoutReport returns ids of sessions completed before
	// the cutoff that have no stored report. Used by the reconciliation
	// sweep.
	ListCompletedWithoutReport(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// MessageStore persists session messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, record MessageRecord) (MessageRecord, error)
	// ListMessages returns messages ordered by createdAt ascending, ties
	// broken by insertion order.
	ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error)
}

// ReportStore persists generated reports keyed by session id.
type ReportStore interface {
	// UpsertReport creates the report or fully overwrites summary, scores,
	// and payload of an existing one.
	UpsertReport(ctx context.Context, record ReportRecord) error
	GetReport(ctx context.Context, sessionID string) (ReportRecord, error)
}
