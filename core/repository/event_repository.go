package repository

import (
	"database/sql"

	"transform-orchestrator/core/models"
)

// EventRepository handles database operations for job status events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetJobEvents retrieves status events for a session
func (r *EventRepository) GetJobEvents(sessionID string, limit int) ([]models.StatusEvent, error) {
	query := `
		SELECT id, session_id, at, from_status, to_status, reason, request_id
		FROM job_events
		WHERE session_id = $1
		ORDER BY at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.StatusEvent
	for rows.Next() {
		var event models.StatusEvent
		var fromStatus sql.NullString
		var requestID sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.At,
			&fromStatus,
			&event.ToStatus,
			&event.Reason,
			&requestID,
		)
		if err != nil {
			continue
		}

		if fromStatus.Valid {
			status := models.TransformationStatus(fromStatus.String)
			event.FromStatus = &status
		}
		if requestID.Valid {
			event.RequestID = requestID.String
		}

		events = append(events, event)
	}

	return events, nil
}
