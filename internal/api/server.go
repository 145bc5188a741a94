// Package api exposes the practice service over HTTP JSON: the case
// catalog, the session lifecycle, and report lookups. All session routes
// require a bearer access token resolving to a user id.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mdc-engine/ramka/internal/catalog"
	platformerrors "github.com/mdc-engine/ramka/internal/platform/errors"
	"github.com/mdc-engine/ramka/internal/report"
	"github.com/mdc-engine/ramka/internal/session/service"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Server routes HTTP requests to the domain services.
type Server struct {
	catalog  *catalog.Service
	sessions *service.Service
	reports  *report.Reader
	auth     TokenVerifier
	logf     func(format string, args ...any)
}

// NewServer wires the HTTP server to its services.
func NewServer(catalogService *catalog.Service, sessionService *service.Service, reportReader *report.Reader, auth TokenVerifier) (*Server, error) {
	if catalogService == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	if sessionService == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if reportReader == nil {
		return nil, fmt.Errorf("report reader is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	return &Server{
		catalog:  catalogService,
		sessions: sessionService,
		reports:  reportReader,
		auth:     auth,
		logf:     log.Printf,
	}, nil
}

// Handler returns the routed HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/cases", s.requireUser(s.handleListCases))
	mux.HandleFunc("GET /api/cases/{id}", s.requireUser(s.handleGetCase))

	mux.HandleFunc("POST /api/sessions", s.requireUser(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions", s.requireUser(s.handleListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", s.requireUser(s.handleGetSession))
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.requireUser(s.handleListMessages))
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.requireUser(s.handleAddMessage))
	mux.HandleFunc("PATCH /api/sessions/{id}/progress", s.requireUser(s.handleUpdateProgress))
	mux.HandleFunc("POST /api/sessions/{id}/complete", s.requireUser(s.handleCompleteSession))
	mux.HandleFunc("GET /api/sessions/{id}/report", s.requireUser(s.handleGetReport))

	return s.logged(mux)
}

// requireUser resolves the bearer token to a user id before the handler
// runs.
func (s *Server) requireUser(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		userID, err := s.auth.VerifyAccessToken(token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logf("%s %s %d %s", r.Method, r.URL.Path, recorder.status, time.Since(started).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request, _ string) {
	cases, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload := make([]caseSummaryResponse, 0, len(cases))
	for _, entry := range cases {
		payload = append(payload, toCaseSummaryResponse(entry))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request, _ string) {
	entry, err := s.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toCaseResponse(entry))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, userID string) {
	var body createSessionRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	session, err := s.sessions.Create(r.Context(), userID, body.CaseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSessionCreatedResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := s.sessions.List(r.Context(), userID, r.URL.Query().Get("caseId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload := make([]sessionListItemResponse, 0, len(items))
	for _, item := range items {
		payload = append(payload, toSessionListItemResponse(item))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, userID string) {
	detail, err := s.sessions.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSessionDetailResponse(detail))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, userID string) {
	messages, err := s.sessions.Messages(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, toMessageResponse(message))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request, userID string) {
	var body addMessageRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.sessions.AddMessage(r.Context(), userID, r.PathValue("id"), body.Role, body.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toMessageResponse(created))
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request, userID string) {
	var body updateProgressRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	progress, err := s.sessions.UpdateProgress(r.Context(), userID, r.PathValue("id"), service.ProgressUpdate{
		CurrentStageID:  body.CurrentStageID,
		CompleteStageID: body.CompleteStageID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toProgressResponse(progress))
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.sessions.Complete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := s.reports.GetBySession(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toReportViewResponse(view))
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(target); err != nil {
		return platformerrors.Wrap(platformerrors.CodeRequestInvalid, "request body is not valid json", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logf("write response: %v", err)
	}
}

// writeError maps domain error codes to HTTP statuses. Internal causes stay
// in the logs; clients only see the code and message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := platformerrors.GetCode(err)
	status := code.HTTPStatus()

	message := "internal error"
	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) && status < http.StatusInternalServerError {
		message = domainErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logf("internal error: %v", err)
	}

	s.writeJSON(w, status, errorResponse{
		Error: errorBody{Code: string(code), Message: message},
	})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
