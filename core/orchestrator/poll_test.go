package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"transform-orchestrator/core/client"
	"transform-orchestrator/core/models"
)

func newPollOrchestrator(t *testing.T, backend *scriptedBackend, opts Options) (*Orchestrator, *sinkRecorder, *convRecorder) {
	t.Helper()
	session := NewSession(writeMavenProject(t), "demo", models.BuildSystemMaven, models.JDK8, models.JDK17, "")
	session.setJobID("job-1")
	sink := &sinkRecorder{}
	conv := &convRecorder{}
	scratch := &fakeScratch{base: t.TempDir()}
	o := New(backend, &stubRunner{}, scratch, conv, &scriptedAuthorizer{allow: true}, sink, session, opts)
	ws, err := scratch.CreateWorkspace()
	if err != nil {
		t.Fatal(err)
	}
	o.ws = ws
	return o, sink, conv
}

func TestPollStopsAtFirstValidState(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{
		{Status: models.StatusAccepted},
		{Status: models.StatusPlanning},
		{Status: models.StatusTransforming},
		{Status: models.StatusCompleted},
	}}
	o, sink, _ := newPollOrchestrator(t, backend, testOptions())

	status, err := o.Poll(context.Background(), models.StatusCompleted)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if status != models.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", status)
	}
	if backend.getCalls != 4 {
		t.Errorf("expected 4 status fetches, got %d", backend.getCalls)
	}
	if got := len(sink.withReason("status_polled")); got != 4 {
		t.Errorf("expected 4 status-change events, got %d", got)
	}
}

func TestPollDoesNotReEmitIdenticalStatus(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{
		{Status: models.StatusPlanning},
		{Status: models.StatusPlanning},
		{Status: models.StatusPlanning},
		{Status: models.StatusCompleted},
	}}
	o, sink, _ := newPollOrchestrator(t, backend, testOptions())

	if _, err := o.Poll(context.Background(), models.StatusCompleted); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := len(sink.withReason("status_polled")); got != 2 {
		t.Errorf("expected 2 status-change events for 4 observations, got %d", got)
	}
	if backend.getCalls != 4 {
		t.Errorf("expected 4 status fetches, got %d", backend.getCalls)
	}
}

func TestPollTimesOutWhenBudgetExhausted(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{{Status: models.StatusAccepted}}}
	opts := testOptions()
	opts.PollBudget = time.Nanosecond
	o, _, _ := newPollOrchestrator(t, backend, opts)

	_, err := o.Poll(context.Background(), models.StatusCompleted)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestPollPausedExitsWithoutError(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{
		{Status: models.StatusTransforming},
		{Status: models.StatusPaused},
	}}
	o, _, conv := newPollOrchestrator(t, backend, testOptions())

	status, err := o.Poll(context.Background(), models.StatusCompleted)
	if err != nil {
		t.Fatalf("expected paused exit without error, got %v", err)
	}
	if status != models.StatusPaused {
		t.Errorf("expected PAUSED, got %s", status)
	}
	if got := o.session.Snapshot().PolledStatus; got != models.StatusPaused {
		t.Errorf("expected polled status PAUSED, got %s", got)
	}
	if conv.last() != models.ConversationWaitingHILInput {
		t.Errorf("expected WAITING_FOR_HIL_INPUT conversation state, got %s", conv.last())
	}
	// The session is not terminal; the caller decides how to resume.
	if got := o.session.Snapshot().Status; models.TerminalStates[got] {
		t.Errorf("paused job must not be terminal, got %s", got)
	}
}

func TestPollFailureCarriesClassifiedMessage(t *testing.T) {
	reason := "Monthly aggregated Lines of Code limit breached for account"
	backend := &scriptedBackend{states: []client.JobState{
		{Status: models.StatusTransforming, RequestID: "req-a"},
		{Status: models.StatusFailed, Reason: reason, RequestID: "req-b"},
	}}
	o, _, _ := newPollOrchestrator(t, backend, testOptions())

	status, err := o.Poll(context.Background(), models.StatusCompleted)
	if err == nil {
		t.Fatal("expected failure error")
	}
	if status != models.StatusFailed {
		t.Errorf("expected FAILED, got %s", status)
	}
	if !strings.Contains(err.Error(), MsgMonthlyLimitBreached) {
		t.Errorf("expected the monthly limit message, got %v", err)
	}
	if !strings.Contains(err.Error(), "job-1") || !strings.Contains(err.Error(), "req-b") {
		t.Errorf("expected job id and last request id in the error, got %v", err)
	}
	job := o.session.Snapshot()
	if job.FailureCategory != models.FailureCategoryMonthlyLimit {
		t.Errorf("expected monthly limit category, got %s", job.FailureCategory)
	}
	if job.FailureReason != reason {
		t.Errorf("expected raw reason preserved, got %q", job.FailureReason)
	}
}

func TestPollObservesCancellation(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{{Status: models.StatusAccepted}}}
	o, _, _ := newPollOrchestrator(t, backend, testOptions())
	o.Cancel()

	_, err := o.Poll(context.Background(), models.StatusCompleted)
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if backend.getCalls != 0 {
		t.Errorf("expected no fetch after cancellation, got %d", backend.getCalls)
	}
}

func TestPollHonorsContextDuringSleep(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{{Status: models.StatusAccepted}}}
	opts := testOptions()
	opts.PollInterval = time.Minute
	o, _, _ := newPollOrchestrator(t, backend, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Poll(ctx, models.StatusCompleted)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}

func TestPollRecordsRequestIDTrail(t *testing.T) {
	backend := &scriptedBackend{states: []client.JobState{
		{Status: models.StatusPlanning, RequestID: "req-1"},
		{Status: models.StatusCompleted, RequestID: "req-2"},
	}}
	o, _, _ := newPollOrchestrator(t, backend, testOptions())

	if _, err := o.Poll(context.Background(), models.StatusCompleted); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	trail := o.session.Snapshot().RequestIDTrail
	if len(trail) != 2 || trail[0] != "req-1" || trail[1] != "req-2" {
		t.Errorf("expected [req-1 req-2], got %v", trail)
	}
}
