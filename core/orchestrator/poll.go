package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"transform-orchestrator/core/models"
)

// Poll fetches job status at a fixed interval until one of validStates, a
// paused state, a failure state, cancellation, or the elapsed-time budget.
//
// Re-observing an identical status never re-emits a status-change event, and
// the client-action sub-protocol runs at most once per distinct pending
// artifact. A paused exit records the polled status and returns without
// marking the job terminal; a failure state raises with the last captured
// request id for diagnostics.
func (o *Orchestrator) Poll(ctx context.Context, validStates ...models.TransformationStatus) (models.TransformationStatus, error) {
	valid := make(map[models.TransformationStatus]bool, len(validStates))
	for _, s := range validStates {
		valid[s] = true
	}

	deadline := time.Now().Add(o.opts.PollBudget)

	for {
		if err := o.token.Check(); err != nil {
			return o.lastObserved, err
		}

		state, err := o.backend.GetTransformation(ctx, o.session.JobID())
		if err != nil {
			return o.lastObserved, fmt.Errorf("polling failed: %w", err)
		}
		o.session.appendRequestID(state.RequestID)

		if state.Status != o.lastObserved {
			o.emit(o.lastObserved, state.Status, "status_polled")
			o.lastObserved = state.Status
			o.session.setPolledStatus(state.Status)
		}

		if state.Reason != "" {
			category := Classify(state.Reason)
			o.session.setFailure(state.Reason, category)
		}

		if models.PlanAvailableStates[state.Status] && !o.hilInFlight && !o.suspended {
			if err := o.handleClientAction(ctx); err != nil {
				return state.Status, err
			}
		}

		if models.PausedStates[state.Status] {
			// Needs explicit user action; exit without marking terminal.
			o.session.setPolledStatus(state.Status)
			o.conv.SetConversationState(models.ConversationWaitingHILInput)
			return state.Status, nil
		}

		if valid[state.Status] {
			o.transition(state.Status, "job_reached_valid_state")
			return state.Status, nil
		}

		if models.FailureStates[state.Status] {
			category := o.session.Snapshot().FailureCategory
			msg := MessageFor(category)
			if msg == "" {
				msg = MsgGenericJobFailure
			}
			return state.Status, fmt.Errorf("%s (job %s, status %s, request id %s)",
				msg, o.session.JobID(), state.Status, o.session.lastRequestID())
		}

		if time.Now().After(deadline) {
			log.Printf("Polling budget exhausted for job %s at status %s", o.session.JobID(), state.Status)
			return state.Status, ErrPollTimeout
		}

		if err := o.sleep(ctx); err != nil {
			return state.Status, err
		}
	}
}

// sleep waits one poll interval, honoring context and token cancellation
func (o *Orchestrator) sleep(ctx context.Context) error {
	timer := time.NewTimer(o.opts.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return o.token.Check()
	}
}

// Suspend disables the client-action sub-protocol; polling continues but
// pending client actions are left untouched.
func (o *Orchestrator) Suspend() { o.suspended = true }

// Resume re-enables the client-action sub-protocol
func (o *Orchestrator) Resume() { o.suspended = false }
