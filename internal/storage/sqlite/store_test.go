package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdc-engine/ramka/internal/queue"
	"github.com/mdc-engine/ramka/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ramka.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("Open accepted an empty path")
	}
}

func TestCaseUpsertRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	record := storage.CaseRecord{
		ID:         "case-anxiety-01",
		Title:      "Клиент с тревогой",
		Method:     "CBT",
		Difficulty: 2,
		Tags:       []string{"anxiety", "starter"},
		Payload: map[string]any{
			"arc": map[string]any{
				"stages": []any{
					map[string]any{"id": "s1", "title": "Знакомство"},
				},
			},
		},
		CreatedAt: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertCase(ctx, record); err != nil {
		t.Fatalf("UpsertCase returned error: %v", err)
	}

	loaded, err := store.GetCase(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetCase returned error: %v", err)
	}
	if loaded.Title != record.Title {
		t.Fatalf("GetCase title = %q, want %q", loaded.Title, record.Title)
	}
	if loaded.Difficulty != record.Difficulty {
		t.Fatalf("GetCase difficulty = %d, want %d", loaded.Difficulty, record.Difficulty)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "anxiety" {
		t.Fatalf("GetCase tags = %v, want %v", loaded.Tags, record.Tags)
	}
	arc, ok := loaded.Payload["arc"].(map[string]any)
	if !ok {
		t.Fatalf("GetCase payload arc missing: %v", loaded.Payload)
	}
	if _, ok := arc["stages"]; !ok {
		t.Fatal("GetCase payload arc stages missing")
	}

	record.Title = "Клиент с тревогой (v2)"
	record.UpdatedAt = record.UpdatedAt.Add(time.Hour)
	if err := store.UpsertCase(ctx, record); err != nil {
		t.Fatalf("UpsertCase update returned error: %v", err)
	}
	updated, err := store.GetCase(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetCase after update returned error: %v", err)
	}
	if updated.Title != record.Title {
		t.Fatalf("GetCase title after update = %q, want %q", updated.Title, record.Title)
	}

	all, err := store.ListCases(ctx)
	if err != nil {
		t.Fatalf("ListCases returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListCases returned %d cases, want 1", len(all))
	}
}

func TestGetCaseNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetCase(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetCase error = %v, want ErrNotFound", err)
	}
}

func seedCase(t *testing.T, store *Store, caseID string) {
	t.Helper()
	if err := store.UpsertCase(context.Background(), storage.CaseRecord{ID: caseID, Title: caseID}); err != nil {
		t.Fatalf("UpsertCase returned error: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedCase(t, store, "case-1")

	startedAt := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	record := storage.SessionRecord{
		ID:                "sess-1",
		UserID:            "user-1",
		CaseID:            "case-1",
		Number:            1,
		Status:            storage.SessionStatusActive,
		StartedAt:         startedAt,
		CurrentStageID:    "s1",
		CompletedStageIDs: []string{},
		CaseStateBefore:   map[string]any{"trust": float64(1)},
	}
	if err := store.CreateSession(ctx, record); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	loaded, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if loaded.Status != storage.SessionStatusActive {
		t.Fatalf("GetSession status = %q, want active", loaded.Status)
	}
	if loaded.CurrentStageID != "s1" {
		t.Fatalf("GetSession currentStageID = %q, want s1", loaded.CurrentStageID)
	}
	if loaded.EndedAt != nil {
		t.Fatalf("GetSession endedAt = %v, want nil", loaded.EndedAt)
	}
	if loaded.CaseStateAfter != nil {
		t.Fatalf("GetSession caseStateAfter = %v, want nil", loaded.CaseStateAfter)
	}
	if !loaded.StartedAt.Equal(startedAt) {
		t.Fatalf("GetSession startedAt = %v, want %v", loaded.StartedAt, startedAt)
	}

	active, err := store.FindActiveSession(ctx, "user-1", "case-1")
	if err != nil {
		t.Fatalf("FindActiveSession returned error: %v", err)
	}
	if active.ID != "sess-1" {
		t.Fatalf("FindActiveSession id = %q, want sess-1", active.ID)
	}

	number, err := store.LastSessionNumber(ctx, "user-1", "case-1")
	if err != nil {
		t.Fatalf("LastSessionNumber returned error: %v", err)
	}
	if number != 1 {
		t.Fatalf("LastSessionNumber = %d, want 1", number)
	}

	stage := "s2"
	if err := store.UpdateSessionProgress(ctx, "sess-1", &stage, []string{"s1"}); err != nil {
		t.Fatalf("UpdateSessionProgress returned error: %v", err)
	}
	loaded, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after progress returned error: %v", err)
	}
	if loaded.CurrentStageID != "s2" {
		t.Fatalf("GetSession currentStageID = %q, want s2", loaded.CurrentStageID)
	}
	if len(loaded.CompletedStageIDs) != 1 || loaded.CompletedStageIDs[0] != "s1" {
		t.Fatalf("GetSession completedStageIDs = %v, want [s1]", loaded.CompletedStageIDs)
	}

	if err := store.UpdateSessionProgress(ctx, "sess-1", nil, []string{"s1", "s2"}); err != nil {
		t.Fatalf("UpdateSessionProgress without stage returned error: %v", err)
	}
	loaded, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after second progress returned error: %v", err)
	}
	if loaded.CurrentStageID != "s2" {
		t.Fatalf("nil currentStageID changed the column to %q", loaded.CurrentStageID)
	}
	if len(loaded.CompletedStageIDs) != 2 {
		t.Fatalf("GetSession completedStageIDs = %v, want two entries", loaded.CompletedStageIDs)
	}

	endedAt := startedAt.Add(45 * time.Minute)
	after := map[string]any{"trust": float64(2)}
	if err := store.CompleteSession(ctx, "sess-1", endedAt, after); err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	loaded, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after completion returned error: %v", err)
	}
	if loaded.Status != storage.SessionStatusCompleted {
		t.Fatalf("GetSession status = %q, want completed", loaded.Status)
	}
	if loaded.EndedAt == nil || !loaded.EndedAt.Equal(endedAt) {
		t.Fatalf("GetSession endedAt = %v, want %v", loaded.EndedAt, endedAt)
	}
	if loaded.CaseStateAfter["trust"] != float64(2) {
		t.Fatalf("GetSession caseStateAfter = %v, want trust=2", loaded.CaseStateAfter)
	}

	if err := store.CompleteSession(ctx, "sess-1", endedAt, after); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second CompleteSession error = %v, want ErrNotFound", err)
	}

	if _, err := store.FindActiveSession(ctx, "user-1", "case-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("FindActiveSession after completion error = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrdersAndFilters(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedCase(t, store, "case-1")
	seedCase(t, store, "case-2")

	base := time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC)
	sessions := []storage.SessionRecord{
		{ID: "sess-a", UserID: "user-1", CaseID: "case-1", Number: 1, StartedAt: base},
		{ID: "sess-b", UserID: "user-1", CaseID: "case-2", Number: 1, StartedAt: base.Add(time.Hour)},
		{ID: "sess-c", UserID: "user-2", CaseID: "case-1", Number: 1, StartedAt: base.Add(2 * time.Hour)},
	}
	for _, record := range sessions {
		if err := store.CreateSession(ctx, record); err != nil {
			t.Fatalf("CreateSession %s returned error: %v", record.ID, err)
		}
	}

	all, err := store.ListSessions(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListSessions returned %d sessions, want 2", len(all))
	}
	if all[0].ID != "sess-b" || all[1].ID != "sess-a" {
		t.Fatalf("ListSessions order = [%s %s], want newest first", all[0].ID, all[1].ID)
	}

	filtered, err := store.ListSessions(ctx, "user-1", "case-1")
	if err != nil {
		t.Fatalf("ListSessions filtered returned error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "sess-a" {
		t.Fatalf("ListSessions filtered = %v, want [sess-a]", filtered)
	}
}

func TestMessagesOrderedWithSeqTieBreak(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedCase(t, store, "case-1")
	if err := store.CreateSession(ctx, storage.SessionRecord{
		ID: "sess-1", UserID: "user-1", CaseID: "case-1", Number: 1,
		StartedAt: time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// Same timestamp on purpose: insertion order must win.
	at := time.Date(2026, time.March, 4, 12, 5, 0, 0, time.UTC)
	contents := []string{"Здравствуйте", "Расскажите, что вас беспокоит", "Мне тревожно"}
	roles := []string{"therapist", "therapist", "client"}
	for i, content := range contents {
		record, err := store.AppendMessage(ctx, storage.MessageRecord{
			ID:        fmt.Sprintf("msg-%d", i),
			SessionID: "sess-1",
			Role:      roles[i],
			Content:   content,
			CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("AppendMessage %d returned error: %v", i, err)
		}
		if record.Seq <= 0 {
			t.Fatalf("AppendMessage %d seq = %d, want positive", i, record.Seq)
		}
	}

	listed, err := store.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("ListMessages returned %d messages, want 3", len(listed))
	}
	for i, message := range listed {
		if message.Content != contents[i] {
			t.Fatalf("ListMessages[%d] content = %q, want %q", i, message.Content, contents[i])
		}
	}
	if !(listed[0].Seq < listed[1].Seq && listed[1].Seq < listed[2].Seq) {
		t.Fatalf("ListMessages seq not ascending: %d %d %d", listed[0].Seq, listed[1].Seq, listed[2].Seq)
	}
}

func TestReportUpsertIsIdempotent(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedCase(t, store, "case-1")
	if err := store.CreateSession(ctx, storage.SessionRecord{
		ID: "sess-1", UserID: "user-1", CaseID: "case-1", Number: 1,
		StartedAt: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	record := storage.ReportRecord{
		SessionID: "sess-1",
		Summary:   "Отчёт (заглушка). Сообщений: 2, терапевт: 1, клиент: 1.",
		Scores:    storage.ReportScores{Structure: 2, Engagement: 2, Clarity: 3},
		Payload:   map[string]any{"totalMessages": float64(2)},
		CreatedAt: time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertReport(ctx, record); err != nil {
		t.Fatalf("UpsertReport returned error: %v", err)
	}
	if err := store.UpsertReport(ctx, record); err != nil {
		t.Fatalf("UpsertReport replay returned error: %v", err)
	}

	loaded, err := store.GetReport(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetReport returned error: %v", err)
	}
	if loaded.Summary != record.Summary {
		t.Fatalf("GetReport summary = %q, want %q", loaded.Summary, record.Summary)
	}
	if loaded.Scores != record.Scores {
		t.Fatalf("GetReport scores = %+v, want %+v", loaded.Scores, record.Scores)
	}
	if loaded.Payload["totalMessages"] != float64(2) {
		t.Fatalf("GetReport payload = %v, want totalMessages=2", loaded.Payload)
	}

	_, err = store.GetReport(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetReport missing error = %v, want ErrNotFound", err)
	}
}

func TestListCompletedWithoutReport(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedCase(t, store, "case-1")

	base := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"sess-old", "sess-new", "sess-reported"} {
		if err := store.CreateSession(ctx, storage.SessionRecord{
			ID: id, UserID: "user-1", CaseID: "case-1", Number: 1, StartedAt: base,
		}); err != nil {
			t.Fatalf("CreateSession %s returned error: %v", id, err)
		}
	}
	if err := store.CompleteSession(ctx, "sess-old", base.Add(time.Hour), nil); err != nil {
		t.Fatalf("CompleteSession sess-old returned error: %v", err)
	}
	if err := store.CompleteSession(ctx, "sess-new", base.Add(3*time.Hour), nil); err != nil {
		t.Fatalf("CompleteSession sess-new returned error: %v", err)
	}
	if err := store.CompleteSession(ctx, "sess-reported", base.Add(time.Hour), nil); err != nil {
		t.Fatalf("CompleteSession sess-reported returned error: %v", err)
	}
	if err := store.UpsertReport(ctx, storage.ReportRecord{SessionID: "sess-reported", Summary: "ok"}); err != nil {
		t.Fatalf("UpsertReport returned error: %v", err)
	}

	ids, err := store.ListCompletedWithoutReport(ctx, base.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListCompletedWithoutReport returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "sess-old" {
		t.Fatalf("ListCompletedWithoutReport = %v, want [sess-old]", ids)
	}
}

func TestJobEnqueueDedupesLiveJobs(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	job, err := queue.NewReportJob("job-1", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	duplicate, err := queue.NewReportJob("job-2", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, duplicate); err != nil {
		t.Fatalf("Enqueue duplicate returned error: %v", err)
	}

	now := time.Now().UTC()
	leased, err := store.Lease(ctx, "worker-1", 10, now, time.Minute)
	if err != nil {
		t.Fatalf("Lease returned error: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("Lease returned %d jobs, want 1 (duplicate dropped)", len(leased))
	}
	if leased[0].ID != "job-1" {
		t.Fatalf("Lease returned job %q, want job-1", leased[0].ID)
	}
	if leased[0].Status != queue.StatusLeased {
		t.Fatalf("leased job status = %q, want leased", leased[0].Status)
	}
	if leased[0].LeaseOwner != "worker-1" {
		t.Fatalf("leased job owner = %q, want worker-1", leased[0].LeaseOwner)
	}
}

func TestJobEnqueueAllowedAfterSuccess(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job, err := queue.NewReportJob("job-1", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	leased, err := store.Lease(ctx, "worker-1", 1, now, time.Minute)
	if err != nil || len(leased) != 1 {
		t.Fatalf("Lease = (%v, %v), want one job", leased, err)
	}
	if err := store.MarkSucceeded(ctx, "job-1", "worker-1", now); err != nil {
		t.Fatalf("MarkSucceeded returned error: %v", err)
	}

	// A finished job no longer blocks the dedupe key.
	replay, err := queue.NewReportJob("job-2", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, replay); err != nil {
		t.Fatalf("Enqueue after success returned error: %v", err)
	}
	leased, err = store.Lease(ctx, "worker-1", 10, now.Add(time.Second), time.Minute)
	if err != nil {
		t.Fatalf("second Lease returned error: %v", err)
	}
	if len(leased) != 1 || leased[0].ID != "job-2" {
		t.Fatalf("second Lease = %v, want [job-2]", leased)
	}
}

func TestJobLeaseSkipsFutureAndHeldJobs(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)

	due, err := queue.NewReportJob("job-due", "sess-due")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, due); err != nil {
		t.Fatalf("Enqueue due returned error: %v", err)
	}
	future, err := queue.NewReportJob("job-future", "sess-future")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	future.NextAttemptAt = now.Add(time.Hour)
	if err := store.Enqueue(ctx, future); err != nil {
		t.Fatalf("Enqueue future returned error: %v", err)
	}

	leased, err := store.Lease(ctx, "worker-1", 10, now, time.Minute)
	if err != nil {
		t.Fatalf("Lease returned error: %v", err)
	}
	if len(leased) != 1 || leased[0].ID != "job-due" {
		t.Fatalf("Lease = %v, want only job-due", leased)
	}

	// A held lease is invisible to other consumers until it expires.
	other, err := store.Lease(ctx, "worker-2", 10, now.Add(time.Second), time.Minute)
	if err != nil {
		t.Fatalf("Lease by worker-2 returned error: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("Lease by worker-2 = %v, want no jobs", other)
	}

	// After expiry the job is reclaimable.
	reclaimed, err := store.Lease(ctx, "worker-2", 10, now.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("reclaim Lease returned error: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != "job-due" {
		t.Fatalf("reclaim Lease = %v, want [job-due]", reclaimed)
	}
	if reclaimed[0].LeaseOwner != "worker-2" {
		t.Fatalf("reclaimed owner = %q, want worker-2", reclaimed[0].LeaseOwner)
	}
}

func TestJobRetryAndDead(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC)

	job, err := queue.NewReportJob("job-1", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	leased, err := store.Lease(ctx, "worker-1", 1, now, time.Minute)
	if err != nil || len(leased) != 1 {
		t.Fatalf("Lease = (%v, %v), want one job", leased, err)
	}

	if err := store.MarkRetry(ctx, "job-1", "worker-1", now.Add(30*time.Second), "transient failure"); err != nil {
		t.Fatalf("MarkRetry returned error: %v", err)
	}
	retried, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if retried.Status != queue.StatusPending {
		t.Fatalf("retried status = %q, want pending", retried.Status)
	}
	if retried.AttemptCount != 1 {
		t.Fatalf("retried attemptCount = %d, want 1", retried.AttemptCount)
	}
	if retried.LastError != "transient failure" {
		t.Fatalf("retried lastError = %q", retried.LastError)
	}

	// Not due until the retry delay elapses.
	early, err := store.Lease(ctx, "worker-1", 10, now.Add(10*time.Second), time.Minute)
	if err != nil {
		t.Fatalf("early Lease returned error: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("early Lease = %v, want no jobs", early)
	}

	leased, err = store.Lease(ctx, "worker-1", 1, now.Add(time.Minute), time.Minute)
	if err != nil || len(leased) != 1 {
		t.Fatalf("due Lease = (%v, %v), want one job", leased, err)
	}
	if err := store.MarkDead(ctx, "job-1", "worker-1", "permanent failure", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("MarkDead returned error: %v", err)
	}
	dead, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob after MarkDead returned error: %v", err)
	}
	if dead.Status != queue.StatusDead {
		t.Fatalf("dead status = %q, want dead", dead.Status)
	}
	if dead.AttemptCount != 2 {
		t.Fatalf("dead attemptCount = %d, want 2", dead.AttemptCount)
	}
	if dead.ProcessedAt == nil {
		t.Fatal("dead processedAt is nil")
	}
}

func TestJobMarkGuardsRequireLeaseOwner(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job, err := queue.NewReportJob("job-1", "sess-1")
	if err != nil {
		t.Fatalf("NewReportJob returned error: %v", err)
	}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if _, err := store.Lease(ctx, "worker-1", 1, now, time.Minute); err != nil {
		t.Fatalf("Lease returned error: %v", err)
	}

	if err := store.MarkSucceeded(ctx, "job-1", "worker-2", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("MarkSucceeded by wrong owner error = %v, want ErrNotFound", err)
	}
	if err := store.MarkRetry(ctx, "job-1", "worker-2", now.Add(time.Minute), "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("MarkRetry by wrong owner error = %v, want ErrNotFound", err)
	}
	if err := store.MarkDead(ctx, "job-1", "worker-2", "x", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("MarkDead by wrong owner error = %v, want ErrNotFound", err)
	}

	if err := store.MarkSucceeded(ctx, "job-1", "worker-1", now); err != nil {
		t.Fatalf("MarkSucceeded by owner returned error: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "job-1", "worker-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second MarkSucceeded error = %v, want ErrNotFound", err)
	}
}
