package repository

import (
	"log"

	"transform-orchestrator/core/models"
)

// Recorder persists orchestrator status events as history rows. A nil
// Recorder is a no-op, so the orchestrator runs without a database in
// library use.
type Recorder struct {
	db *DB
}

// NewRecorder creates a status-event recorder
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// Publish implements the orchestrator event sink. Persistence failures are
// logged and never affect the job pipeline.
func (r *Recorder) Publish(event models.StatusEvent) {
	if r == nil || r.db == nil {
		return
	}
	query := `
		INSERT INTO job_events (session_id, from_status, to_status, reason, request_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	var from *string
	if event.FromStatus != nil {
		s := string(*event.FromStatus)
		from = &s
	}
	if _, err := r.db.Exec(query, event.SessionID, from, event.ToStatus, event.Reason, event.RequestID); err != nil {
		log.Printf("Failed to record status event for session %s: %v", event.SessionID, err)
	}
}
