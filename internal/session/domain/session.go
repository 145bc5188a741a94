package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/platform/id"
)

// Status describes the lifecycle state of a practice session.
type Status string

const (
	// StatusActive indicates the session accepts messages and progress.
	StatusActive Status = "active"
	// StatusCompleted indicates the session has been finished.
	StatusCompleted Status = "completed"
)

var (
	// ErrEmptyUserID indicates a missing user ID.
	ErrEmptyUserID = errors.New("user id is required")
	// ErrEmptyCaseID indicates a missing case ID.
	ErrEmptyCaseID = errors.New("case id is required")
	// ErrInvalidNumber indicates a non-positive session number.
	ErrInvalidNumber = errors.New("session number must be positive")
)

// Session represents one user's run through a scripted case.
type Session struct {
	ID                string
	UserID            string
	CaseID            string
	Number            int
	Status            Status
	StartedAt         time.Time
	EndedAt           *time.Time // nil while active
	CurrentStageID    string     // empty when no current stage
	CompletedStageIDs []string
	CaseStateBefore   map[string]any
	CaseStateAfter    map[string]any // nil while active
}

// CreateSessionInput describes the data needed to start a session. The case
// payload snapshot and the initial stage are resolved by the caller from the
// case document.
type CreateSessionInput struct {
	UserID          string
	CaseID          string
	Number          int
	CurrentStageID  string
	CaseStateBefore map[string]any
}

// CreateSession creates a new active session with a generated ID and start
// timestamp.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.UserID = strings.TrimSpace(input.UserID)
	input.CaseID = strings.TrimSpace(input.CaseID)
	if input.UserID == "" {
		return Session{}, ErrEmptyUserID
	}
	if input.CaseID == "" {
		return Session{}, ErrEmptyCaseID
	}
	if input.Number <= 0 {
		return Session{}, ErrInvalidNumber
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	stateBefore := input.CaseStateBefore
	if stateBefore == nil {
		stateBefore = map[string]any{}
	}
	return Session{
		ID:                sessionID,
		UserID:            input.UserID,
		CaseID:            input.CaseID,
		Number:            input.Number,
		Status:            StatusActive,
		StartedAt:         now().UTC(),
		CurrentStageID:    strings.TrimSpace(input.CurrentStageID),
		CompletedStageIDs: []string{},
		CaseStateBefore:   stateBefore,
	}, nil
}
