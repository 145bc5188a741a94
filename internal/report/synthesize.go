// Package report derives end-of-session reports: a pure synthesizer, the
// queue-driven worker that materializes reports, and the read side serving
// pending/ready lookups.
package report

import (
	"fmt"
	"time"

	"github.com/mdc-engine/ramka/internal/arc"
	"github.com/mdc-engine/ramka/internal/storage"
)

// transcriptPreviewLimit bounds how many opening messages the report embeds.
const transcriptPreviewLimit = 6

// Input is everything Synthesize reads. Messages must be ordered oldest
// first.
type Input struct {
	Session  storage.SessionRecord
	Case     storage.CaseRecord
	Messages []storage.MessageRecord
	Now      time.Time
}

// Synthesize derives a report from the session transcript and stage
// progress. It is deterministic for a fixed input, which makes the whole
// pipeline idempotent under job replays.
func Synthesize(in Input) storage.ReportRecord {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	therapistCount := 0
	clientCount := 0
	for _, message := range in.Messages {
		switch message.Role {
		case "therapist":
			therapistCount++
		case "client":
			clientCount++
		}
	}
	totalCount := len(in.Messages)

	titleByID := arc.TitleByID(in.Case.Payload)
	completedIDs := in.Session.CompletedStageIDs
	if completedIDs == nil {
		completedIDs = []string{}
	}
	completedTitles := make([]string, 0, len(completedIDs))
	for _, stageID := range completedIDs {
		completedTitles = append(completedTitles, titleOrID(titleByID, stageID))
	}

	var currentStageID, currentStageTitle any
	if in.Session.CurrentStageID != "" {
		currentStageID = in.Session.CurrentStageID
		currentStageTitle = titleOrID(titleByID, in.Session.CurrentStageID)
	}

	strengths := "Терапевт активно ведёт диалог"
	if therapistCount == 0 {
		strengths = "Нет сообщений терапевта"
	}
	risks := "—"
	if totalCount < 6 {
		risks = "Сессия очень короткая — мало данных"
	}

	preview := make([]any, 0, transcriptPreviewLimit)
	for _, message := range in.Messages {
		if len(preview) == transcriptPreviewLimit {
			break
		}
		preview = append(preview, map[string]any{
			"role":    message.Role,
			"content": message.Content,
		})
	}

	payload := map[string]any{
		"sessionId": in.Session.ID,
		"caseTitle": in.Case.Title,
		"method":    in.Case.Method,
		"progress": map[string]any{
			"currentStageId":       currentStageID,
			"currentStageTitle":    currentStageTitle,
			"completedStageIds":    completedIDs,
			"completedStageTitles": completedTitles,
			"totalStages":          len(titleByID),
		},
		"stats": map[string]any{
			"totalMessages":     totalCount,
			"therapistMessages": therapistCount,
			"clientMessages":    clientCount,
		},
		"notes": map[string]any{
			"strengths": []any{strengths},
			"risks":     []any{risks},
		},
		"transcriptPreview": preview,
		"createdAt":         now.Format(time.RFC3339),
	}

	scores := storage.ReportScores{
		Structure:  2,
		Engagement: 2,
		Clarity:    3,
	}
	if therapistCount >= 3 {
		scores.Structure = 3
	}
	if clientCount >= 2 {
		scores.Engagement = 3
	}

	return storage.ReportRecord{
		SessionID: in.Session.ID,
		Summary:   fmt.Sprintf("Отчёт (заглушка). Сообщений: %d, терапевт: %d, клиент: %d.", totalCount, therapistCount, clientCount),
		Scores:    scores,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func titleOrID(titleByID map[string]string, stageID string) string {
	if title, ok := titleByID[stageID]; ok {
		return title
	}
	return stageID
}
