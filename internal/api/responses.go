package api

import (
	"time"

	"github.com/mdc-engine/ramka/internal/catalog"
	"github.com/mdc-engine/ramka/internal/report"
	sessiondomain "github.com/mdc-engine/ramka/internal/session/domain"
	"github.com/mdc-engine/ramka/internal/session/service"
	"github.com/mdc-engine/ramka/internal/storage"
)

type createSessionRequest struct {
	CaseID string `json:"caseId"`
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type updateProgressRequest struct {
	CurrentStageID  *string `json:"currentStageId"`
	CompleteStageID string  `json:"completeStageId"`
}

type caseSummaryResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Method     string   `json:"method"`
	Difficulty int      `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type caseResponse struct {
	caseSummaryResponse
	Payload map[string]any `json:"payload"`
}

type sessionCreatedResponse struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId"`
	Number    int       `json:"number"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

type sessionDetailResponse struct {
	ID                string         `json:"id"`
	CaseID            string         `json:"caseId"`
	Number            int            `json:"number"`
	Status            string         `json:"status"`
	StartedAt         time.Time      `json:"startedAt"`
	EndedAt           *time.Time     `json:"endedAt"`
	CurrentStageID    *string        `json:"currentStageId"`
	CompletedStageIDs []string       `json:"completedStageIds"`
	CaseStateBefore   map[string]any `json:"caseStateBefore"`
	CaseStateAfter    map[string]any `json:"caseStateAfter,omitempty"`
	Case              caseResponse   `json:"case"`
}

type sessionListItemResponse struct {
	ID                string              `json:"id"`
	CaseID            string              `json:"caseId"`
	Number            int                 `json:"number"`
	Status            string              `json:"status"`
	StartedAt         time.Time           `json:"startedAt"`
	EndedAt           *time.Time          `json:"endedAt"`
	CurrentStageID    *string             `json:"currentStageId"`
	CompletedStageIDs []string            `json:"completedStageIds"`
	Case              caseSummaryResponse `json:"case"`
	Report            *reportMarker       `json:"report"`
}

type reportMarker struct {
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type progressResponse struct {
	ID                string   `json:"id"`
	CurrentStageID    *string  `json:"currentStageId"`
	CompletedStageIDs []string `json:"completedStageIds"`
}

type reportResponse struct {
	SessionID string               `json:"sessionId"`
	Summary   string               `json:"summary"`
	Scores    storage.ReportScores `json:"scores"`
	Payload   map[string]any       `json:"payload"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type reportViewResponse struct {
	Status string          `json:"status"`
	Report *reportResponse `json:"report,omitempty"`
}

func toCaseSummaryResponse(entry catalog.Case) caseSummaryResponse {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	return caseSummaryResponse{
		ID:         entry.ID,
		Title:      entry.Title,
		Method:     entry.Method,
		Difficulty: entry.Difficulty,
		Tags:       tags,
	}
}

func toCaseResponse(entry catalog.Case) caseResponse {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return caseResponse{
		caseSummaryResponse: toCaseSummaryResponse(entry),
		Payload:             payload,
	}
}

func toSessionCreatedResponse(session sessiondomain.Session) sessionCreatedResponse {
	return sessionCreatedResponse{
		ID:        session.ID,
		CaseID:    session.CaseID,
		Number:    session.Number,
		Status:    string(session.Status),
		StartedAt: session.StartedAt,
	}
}

func toSessionDetailResponse(detail service.Detail) sessionDetailResponse {
	session := detail.Session
	return sessionDetailResponse{
		ID:                session.ID,
		CaseID:            session.CaseID,
		Number:            session.Number,
		Status:            string(session.Status),
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
		CurrentStageID:    nullableStageID(session.CurrentStageID),
		CompletedStageIDs: nonNilStrings(session.CompletedStageIDs),
		CaseStateBefore:   session.CaseStateBefore,
		CaseStateAfter:    session.CaseStateAfter,
		Case: caseResponse{
			caseSummaryResponse: caseSummaryResponse{
				ID:         detail.Case.ID,
				Title:      detail.Case.Title,
				Method:     detail.Case.Method,
				Difficulty: detail.Case.Difficulty,
				Tags:       nonNilStrings(detail.Case.Tags),
			},
			Payload: detail.Case.Payload,
		},
	}
}

func toSessionListItemResponse(item service.ListItem) sessionListItemResponse {
	session := item.Session
	response := sessionListItemResponse{
		ID:                session.ID,
		CaseID:            session.CaseID,
		Number:            session.Number,
		Status:            string(session.Status),
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
		CurrentStageID:    nullableStageID(session.CurrentStageID),
		CompletedStageIDs: nonNilStrings(session.CompletedStageIDs),
		Case: caseSummaryResponse{
			ID:         item.Case.ID,
			Title:      item.Case.Title,
			Method:     item.Case.Method,
			Difficulty: item.Case.Difficulty,
			Tags:       nonNilStrings(item.Case.Tags),
		},
	}
	if item.ReportCreatedAt != nil {
		response.Report = &reportMarker{CreatedAt: *item.ReportCreatedAt}
	}
	return response
}

func toMessageResponse(message sessiondomain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID,
		Role:      string(message.Role),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

func toProgressResponse(progress service.Progress) progressResponse {
	return progressResponse{
		ID:                progress.SessionID,
		CurrentStageID:    nullableStageID(progress.CurrentStageID),
		CompletedStageIDs: nonNilStrings(progress.CompletedStageIDs),
	}
}

func toReportViewResponse(view report.View) reportViewResponse {
	response := reportViewResponse{Status: view.Status}
	if view.Report != nil {
		response.Report = &reportResponse{
			SessionID: view.Report.SessionID,
			Summary:   view.Report.Summary,
			Scores:    view.Report.Scores,
			Payload:   view.Report.Payload,
			CreatedAt: view.Report.CreatedAt,
			UpdatedAt: view.Report.UpdatedAt,
		}
	}
	return response
}

func nullableStageID(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
