// Package service orchestrates the practice session lifecycle: create or
// reuse, messaging with the scripted client reply, stage progress, and
// completion with report job enqueue.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mdc-engine/ramka/internal/arc"
	platformerrors "github.com/mdc-engine/ramka/internal/platform/errors"
	"github.com/mdc-engine/ramka/internal/platform/id"
	"github.com/mdc-engine/ramka/internal/queue"
	sessiondomain "github.com/mdc-engine/ramka/internal/session/domain"
	"github.com/mdc-engine/ramka/internal/storage"
)

// autoReplyContent is the scripted client reply sent after every therapist
// message.
const autoReplyContent = "Понял. Расскажи, пожалуйста, подробнее: когда это происходит чаще всего?"

// Stores groups all session-related storage interfaces.
type Stores struct {
	Case    storage.CaseStore
	Session storage.SessionStore
	Message storage.MessageStore
	Report  storage.ReportStore
}

// Service implements the session lifecycle operations.
type Service struct {
	stores      Stores
	jobs        queue.Queue
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New creates a Service with default clock and id generation.
func New(stores Stores, jobs queue.Queue) *Service {
	return &Service{
		stores:      stores,
		jobs:        jobs,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// CaseSummary is the case projection attached to session reads.
type CaseSummary struct {
	ID         string
	Title      string
	Method     string
	Difficulty int
	Tags       []string
	Payload    map[string]any
}

// Detail is one session with its case document.
type Detail struct {
	Session sessiondomain.Session
	Case    CaseSummary
}

// ListItem is one row of a session listing.
type ListItem struct {
	Session         sessiondomain.Session
	Case            CaseSummary
	ReportCreatedAt *time.Time // nil until a report exists
}

// ProgressUpdate is a stage progress change. A nil CurrentStageID leaves the
// current stage to the auto-advance rule; a set value overrides it.
type ProgressUpdate struct {
	CurrentStageID  *string
	CompleteStageID string
}

// Progress is the stage progress state after an update.
type Progress struct {
	SessionID         string
	CurrentStageID    string
	CompletedStageIDs []string
}

// Create starts a session for the case or returns the user's existing active
// one. Session numbers per user and case grow monotonically.
func (s *Service) Create(ctx context.Context, userID, caseID string) (sessiondomain.Session, error) {
	if err := s.ready(); err != nil {
		return sessiondomain.Session{}, err
	}

	userID = strings.TrimSpace(userID)
	caseID = strings.TrimSpace(caseID)
	if userID == "" {
		return sessiondomain.Session{}, platformerrors.New(platformerrors.CodeUnauthenticated, "user id is required")
	}
	if caseID == "" {
		return sessiondomain.Session{}, platformerrors.New(platformerrors.CodeCaseIDEmpty, "caseId is required")
	}

	caseRecord, err := s.stores.Case.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return sessiondomain.Session{}, platformerrors.New(platformerrors.CodeCaseNotFound, "case not found")
		}
		return sessiondomain.Session{}, platformerrors.Wrap(platformerrors.CodeInternal, "check case", err)
	}

	active, err := s.stores.Session.FindActiveSession(ctx, userID, caseID)
	if err == nil {
		return toDomainSession(active), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return sessiondomain.Session{}, platformerrors.Wrap(platformerrors.CodeInternal, "check active session", err)
	}

	lastNumber, err := s.stores.Session.LastSessionNumber(ctx, userID, caseID)
	if err != nil {
		return sessiondomain.Session{}, platformerrors.Wrap(platformerrors.CodeInternal, "last session number", err)
	}

	// The session snapshots the full case document at start time.
	stateBefore := caseRecord.Payload
	if stateBefore == nil {
		stateBefore = map[string]any{}
	}

	session, err := sessiondomain.CreateSession(sessiondomain.CreateSessionInput{
		UserID:          userID,
		CaseID:          caseID,
		Number:          lastNumber + 1,
		CurrentStageID:  arc.PickInitialStageID(caseRecord.Payload),
		CaseStateBefore: stateBefore,
	}, s.clock, s.idGenerator)
	if err != nil {
		return sessiondomain.Session{}, platformerrors.Wrap(platformerrors.CodeInternal, "create session", err)
	}

	if err := s.stores.Session.CreateSession(ctx, toRecord(session)); err != nil {
		return sessiondomain.Session{}, platformerrors.Wrap(platformerrors.CodeInternal, "persist session", err)
	}
	return session, nil
}

// Get returns one owned session with its case document.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (Detail, error) {
	if err := s.ready(); err != nil {
		return Detail{}, err
	}

	record, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return Detail{}, err
	}
	caseRecord, err := s.stores.Case.GetCase(ctx, record.CaseID)
	if err != nil {
		return Detail{}, platformerrors.Wrap(platformerrors.CodeInternal, "load session case", err)
	}
	return Detail{
		Session: toDomainSession(record),
		Case:    toCaseSummary(caseRecord),
	}, nil
}

// List returns the user's sessions newest first, optionally narrowed to one
// case, each with its case summary and report availability.
func (s *Service) List(ctx context.Context, userID, caseID string) ([]ListItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, platformerrors.New(platformerrors.CodeUnauthenticated, "user id is required")
	}

	records, err := s.stores.Session.ListSessions(ctx, userID, strings.TrimSpace(caseID))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeInternal, "list sessions", err)
	}

	cases := make(map[string]CaseSummary)
	items := make([]ListItem, 0, len(records))
	for _, record := range records {
		summary, ok := cases[record.CaseID]
		if !ok {
			caseRecord, err := s.stores.Case.GetCase(ctx, record.CaseID)
			if err != nil {
				return nil, platformerrors.Wrap(platformerrors.CodeInternal, "load session case", err)
			}
			summary = toCaseSummary(caseRecord)
			summary.Payload = nil // listings omit the case document
			cases[record.CaseID] = summary
		}

		item := ListItem{Session: toDomainSession(record), Case: summary}
		report, err := s.stores.Report.GetReport(ctx, record.ID)
		if err == nil {
			createdAt := report.CreatedAt
			item.ReportCreatedAt = &createdAt
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, platformerrors.Wrap(platformerrors.CodeInternal, "load session report", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Messages returns the session transcript oldest first.
func (s *Service) Messages(ctx context.Context, userID, sessionID string) ([]sessiondomain.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	record, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	stored, err := s.stores.Message.ListMessages(ctx, record.ID)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeInternal, "list messages", err)
	}
	messages := make([]sessiondomain.Message, 0, len(stored))
	for _, message := range stored {
		messages = append(messages, toDomainMessage(message))
	}
	return messages, nil
}

// AddMessage appends one message to an owned session. A therapist message
// triggers the scripted client auto-reply; only the caller's message is
// returned.
func (s *Service) AddMessage(ctx context.Context, userID, sessionID, role, content string) (sessiondomain.Message, error) {
	if err := s.ready(); err != nil {
		return sessiondomain.Message{}, err
	}

	record, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return sessiondomain.Message{}, err
	}

	message, err := sessiondomain.NewMessage(record.ID, sessiondomain.Role(role), content, s.clock, s.idGenerator)
	if err != nil {
		return sessiondomain.Message{}, mapMessageError(err)
	}
	created, err := s.stores.Message.AppendMessage(ctx, toMessageRecord(message))
	if err != nil {
		return sessiondomain.Message{}, platformerrors.Wrap(platformerrors.CodeInternal, "persist message", err)
	}

	if message.Role == sessiondomain.RoleTherapist {
		reply, err := sessiondomain.NewMessage(record.ID, sessiondomain.RoleClient, autoReplyContent, s.clock, s.idGenerator)
		if err != nil {
			return sessiondomain.Message{}, platformerrors.Wrap(platformerrors.CodeInternal, "build auto reply", err)
		}
		if _, err := s.stores.Message.AppendMessage(ctx, toMessageRecord(reply)); err != nil {
			return sessiondomain.Message{}, platformerrors.Wrap(platformerrors.CodeInternal, "persist auto reply", err)
		}
	}
	return toDomainMessage(created), nil
}

// UpdateProgress applies a stage progress change to an owned session.
//
// Completing the current stage auto-advances to the next stage of the case
// arc, or clears the current stage on the last one. An explicit
// CurrentStageID wins over the auto-advance. Completed stage ids keep set
// semantics in first-completion order. Progress on completed sessions is
// allowed; the last writer wins.
func (s *Service) UpdateProgress(ctx context.Context, userID, sessionID string, update ProgressUpdate) (Progress, error) {
	if err := s.ready(); err != nil {
		return Progress{}, err
	}

	record, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return Progress{}, err
	}

	explicit := update.CurrentStageID
	if explicit != nil && strings.TrimSpace(*explicit) == "" {
		explicit = nil
	}
	completeStageID := strings.TrimSpace(update.CompleteStageID)
	if explicit == nil && completeStageID == "" {
		return Progress{}, platformerrors.New(platformerrors.CodeProgressNothingToUpdate, "nothing to update")
	}

	completed := record.CompletedStageIDs
	var newCurrent *string
	if completeStageID != "" {
		completed = appendMissing(completed, completeStageID)
		if record.CurrentStageID == completeStageID {
			caseRecord, err := s.stores.Case.GetCase(ctx, record.CaseID)
			if err != nil {
				return Progress{}, platformerrors.Wrap(platformerrors.CodeInternal, "load session case", err)
			}
			next := arc.NextStageID(caseRecord.Payload, completeStageID)
			newCurrent = &next
		}
	}
	if explicit != nil {
		trimmed := strings.TrimSpace(*explicit)
		newCurrent = &trimmed
	}

	if err := s.stores.Session.UpdateSessionProgress(ctx, record.ID, newCurrent, completed); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Progress{}, platformerrors.New(platformerrors.CodeSessionNotFound, "session not found")
		}
		return Progress{}, platformerrors.Wrap(platformerrors.CodeInternal, "update progress", err)
	}

	current := record.CurrentStageID
	if newCurrent != nil {
		current = *newCurrent
	}
	return Progress{
		SessionID:         record.ID,
		CurrentStageID:    current,
		CompletedStageIDs: completed,
	}, nil
}

// Complete finishes an owned session and enqueues report generation.
// Completing an already completed session is a no-op.
func (s *Service) Complete(ctx context.Context, userID, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	record, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if record.Status == storage.SessionStatusCompleted {
		return nil
	}

	// The after snapshot is the before state plus the final stage progress.
	after := make(map[string]any, len(record.CaseStateBefore)+1)
	for key, value := range record.CaseStateBefore {
		after[key] = value
	}
	completed := record.CompletedStageIDs
	if completed == nil {
		completed = []string{}
	}
	var currentStageID any
	if record.CurrentStageID != "" {
		currentStageID = record.CurrentStageID
	}
	after["progress"] = map[string]any{
		"currentStageId":    currentStageID,
		"completedStageIds": completed,
	}

	if err := s.stores.Session.CompleteSession(ctx, record.ID, s.clock().UTC(), after); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Lost the race to another completion; the winner enqueued.
			return nil
		}
		return platformerrors.Wrap(platformerrors.CodeInternal, "complete session", err)
	}

	jobID, err := s.idGenerator()
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodeInternal, "generate job id", err)
	}
	job, err := queue.NewReportJob(jobID, record.ID)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodeInternal, "build report job", err)
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		// The reconciliation sweep picks up sessions whose enqueue failed.
		return platformerrors.Wrap(platformerrors.CodeInternal, "enqueue report job", err)
	}
	return nil
}

func (s *Service) ready() error {
	if s == nil || s.stores.Case == nil || s.stores.Session == nil || s.stores.Message == nil || s.stores.Report == nil || s.jobs == nil {
		return platformerrors.New(platformerrors.CodeInternal, "session service is not configured")
	}
	return nil
}

// ownedSession loads a session and enforces ownership. Unknown sessions and
// foreign sessions surface as distinct errors.
func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (storage.SessionRecord, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" {
		return storage.SessionRecord{}, platformerrors.New(platformerrors.CodeUnauthenticated, "user id is required")
	}
	if sessionID == "" {
		return storage.SessionRecord{}, platformerrors.New(platformerrors.CodeSessionNotFound, "session not found")
	}

	record, err := s.stores.Session.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.SessionRecord{}, platformerrors.New(platformerrors.CodeSessionNotFound, "session not found")
		}
		return storage.SessionRecord{}, platformerrors.Wrap(platformerrors.CodeInternal, "load session", err)
	}
	if record.UserID != userID {
		return storage.SessionRecord{}, platformerrors.New(platformerrors.CodeSessionForbidden, "not your session")
	}
	return record, nil
}

func mapMessageError(err error) error {
	switch {
	case errors.Is(err, sessiondomain.ErrInvalidRole):
		return platformerrors.New(platformerrors.CodeMessageRoleInvalid, "role must be therapist, client or system")
	case errors.Is(err, sessiondomain.ErrEmptyContent):
		return platformerrors.New(platformerrors.CodeMessageContentEmpty, "content is required")
	case errors.Is(err, sessiondomain.ErrContentTooLong):
		return platformerrors.New(platformerrors.CodeMessageContentTooLong, "content is too long")
	default:
		return platformerrors.Wrap(platformerrors.CodeInternal, "build message", err)
	}
}

func appendMissing(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}

func toDomainSession(record storage.SessionRecord) sessiondomain.Session {
	return sessiondomain.Session{
		ID:                record.ID,
		UserID:            record.UserID,
		CaseID:            record.CaseID,
		Number:            record.Number,
		Status:            sessiondomain.Status(record.Status),
		StartedAt:         record.StartedAt,
		EndedAt:           record.EndedAt,
		CurrentStageID:    record.CurrentStageID,
		CompletedStageIDs: record.CompletedStageIDs,
		CaseStateBefore:   record.CaseStateBefore,
		CaseStateAfter:    record.CaseStateAfter,
	}
}

func toRecord(session sessiondomain.Session) storage.SessionRecord {
	return storage.SessionRecord{
		ID:                session.ID,
		UserID:            session.UserID,
		CaseID:            session.CaseID,
		Number:            session.Number,
		Status:            string(session.Status),
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
		CurrentStageID:    session.CurrentStageID,
		CompletedStageIDs: session.CompletedStageIDs,
		CaseStateBefore:   session.CaseStateBefore,
		CaseStateAfter:    session.CaseStateAfter,
	}
}

func toDomainMessage(record storage.MessageRecord) sessiondomain.Message {
	return sessiondomain.Message{
		ID:        record.ID,
		SessionID: record.SessionID,
		Role:      sessiondomain.Role(record.Role),
		Content:   record.Content,
		Seq:       record.Seq,
		CreatedAt: record.CreatedAt,
	}
}

func toMessageRecord(message sessiondomain.Message) storage.MessageRecord {
	return storage.MessageRecord{
		ID:        message.ID,
		SessionID: message.SessionID,
		Role:      string(message.Role),
		Content:   message.Content,
		Seq:       message.Seq,
		CreatedAt: message.CreatedAt,
	}
}

func toCaseSummary(record storage.CaseRecord) CaseSummary {
	return CaseSummary{
		ID:         record.ID,
		Title:      record.Title,
		Method:     record.Method,
		Difficulty: record.Difficulty,
		Tags:       record.Tags,
		Payload:    record.Payload,
	}
}
