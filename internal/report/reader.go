package report

import (
	"context"
	"errors"
	"strings"

	platformerrors "github.com/mdc-engine/ramka/internal/platform/errors"
	"github.com/mdc-engine/ramka/internal/storage"
)

// Report availability statuses.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
)

// View is the read-side answer for one session's report.
type View struct {
	Status string
	Report *storage.ReportRecord // set only when Status is ready
}

// Reader serves report lookups for owned sessions.
type Reader struct {
	sessions storage.SessionStore
	reports  storage.ReportStore
}

// NewReader wires the reader to its stores.
func NewReader(sessions storage.SessionStore, reports storage.ReportStore) (*Reader, error) {
	if sessions == nil || reports == nil {
		return nil, errors.New("reader stores are required")
	}
	return &Reader{sessions: sessions, reports: reports}, nil
}

// GetBySession returns the session's report, or a pending view while the
// worker has not materialized one yet.
func (r *Reader) GetBySession(ctx context.Context, userID, sessionID string) (View, error) {
	if r == nil || r.sessions == nil || r.reports == nil {
		return View{}, platformerrors.New(platformerrors.CodeInternal, "report reader is not configured")
	}

	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" {
		return View{}, platformerrors.New(platformerrors.CodeUnauthenticated, "user id is required")
	}
	if sessionID == "" {
		return View{}, platformerrors.New(platformerrors.CodeSessionNotFound, "session not found")
	}

	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, platformerrors.New(platformerrors.CodeSessionNotFound, "session not found")
		}
		return View{}, platformerrors.Wrap(platformerrors.CodeInternal, "load session", err)
	}
	if session.UserID != userID {
		return View{}, platformerrors.New(platformerrors.CodeSessionForbidden, "not your session")
	}

	record, err := r.reports.GetReport(ctx, session.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{Status: StatusPending}, nil
		}
		return View{}, platformerrors.Wrap(platformerrors.CodeInternal, "load report", err)
	}
	return View{Status: StatusReady, Report: &record}, nil
}
