package repository

import (
	"database/sql"
	"fmt"
	"time"

	"transform-orchestrator/core/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// JobRepository handles database operations for transformation jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob records a new transformation job
func (r *JobRepository) CreateJob(job *models.TransformationJob) error {
	query := `
		INSERT INTO jobs (
			session_id, job_id, project_path, project_name, build_system,
			source_jdk, target_jdk, java_home, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	if job.SessionID == "" {
		job.SessionID = uuid.New().String()
	}
	now := time.Now()

	_, err := r.db.Exec(query,
		job.SessionID,
		job.ID,
		job.ProjectPath,
		job.ProjectName,
		job.BuildSystem,
		job.SourceJDKVersion,
		job.TargetJDKVersion,
		job.JavaHome,
		job.Status,
		now,
		now,
	)
	if err != nil {
		return err
	}

	job.CreatedAt = now
	return r.createStatusEvent(job.SessionID, nil, job.Status, "job_created", "")
}

// GetJob retrieves a job by session id
func (r *JobRepository) GetJob(sessionID string) (*models.TransformationJob, error) {
	query := `
		SELECT session_id, job_id, project_path, project_name, build_system,
			source_jdk, target_jdk, java_home, status, polled_status,
			failure_reason, failure_category, build_log_path, result_path,
			request_id_trail, created_at, started_at, completed_at, updated_at
		FROM jobs
		WHERE session_id = $1
	`

	var job models.TransformationJob
	var jobID sql.NullString
	var polledStatus sql.NullString
	var failureReason sql.NullString
	var failureCategory sql.NullString
	var buildLogPath sql.NullString
	var resultPath sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime

	err := r.db.QueryRow(query, sessionID).Scan(
		&job.SessionID,
		&jobID,
		&job.ProjectPath,
		&job.ProjectName,
		&job.BuildSystem,
		&job.SourceJDKVersion,
		&job.TargetJDKVersion,
		&job.JavaHome,
		&job.Status,
		&polledStatus,
		&failureReason,
		&failureCategory,
		&buildLogPath,
		&resultPath,
		pq.Array(&job.RequestIDTrail),
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if jobID.Valid {
		job.ID = jobID.String
	}
	if polledStatus.Valid {
		job.PolledStatus = models.TransformationStatus(polledStatus.String)
	}
	if failureReason.Valid {
		job.FailureReason = failureReason.String
	}
	if failureCategory.Valid {
		job.FailureCategory = models.FailureCategory(failureCategory.String)
	}
	if buildLogPath.Valid {
		job.BuildLogPath = buildLogPath.String
	}
	if resultPath.Valid {
		job.ResultPath = resultPath.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// UpdateJob persists the mutable job fields and records the status transition
// as an event when the status changed.
func (r *JobRepository) UpdateJob(job *models.TransformationJob, previous models.TransformationStatus, reason string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE jobs SET
			job_id = $1, status = $2, polled_status = $3,
			failure_reason = $4, failure_category = $5,
			build_log_path = $6, result_path = $7,
			request_id_trail = $8, started_at = $9, completed_at = $10,
			updated_at = NOW()
		WHERE session_id = $11
	`
	_, err = tx.Exec(query,
		job.ID,
		job.Status,
		job.PolledStatus,
		job.FailureReason,
		job.FailureCategory,
		job.BuildLogPath,
		job.ResultPath,
		pq.Array(job.RequestIDTrail),
		job.StartedAt,
		job.CompletedAt,
		job.SessionID,
	)
	if err != nil {
		return err
	}

	if job.Status != previous {
		err = createStatusEventTx(tx, job.SessionID, &previous, job.Status, reason, lastRequestID(job))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListJobs lists recent jobs, optionally filtered by status
func (r *JobRepository) ListJobs(status *models.TransformationStatus, limit int) ([]*models.TransformationJob, error) {
	query := `
		SELECT session_id, job_id, project_name, build_system, status, created_at
		FROM jobs
	`
	args := []interface{}{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.TransformationJob
	for rows.Next() {
		var job models.TransformationJob
		var jobID sql.NullString
		err := rows.Scan(
			&job.SessionID,
			&jobID,
			&job.ProjectName,
			&job.BuildSystem,
			&job.Status,
			&job.CreatedAt,
		)
		if err != nil {
			continue
		}
		if jobID.Valid {
			job.ID = jobID.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, nil
}

func (r *JobRepository) createStatusEvent(sessionID string, from *models.TransformationStatus, to models.TransformationStatus, reason, requestID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := createStatusEventTx(tx, sessionID, from, to, reason, requestID); err != nil {
		return err
	}
	return tx.Commit()
}

func createStatusEventTx(tx *sql.Tx, sessionID string, from *models.TransformationStatus, to models.TransformationStatus, reason, requestID string) error {
	query := `
		INSERT INTO job_events (session_id, from_status, to_status, reason, request_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	var fromStr *string
	if from != nil {
		s := string(*from)
		fromStr = &s
	}

	_, err := tx.Exec(query, sessionID, fromStr, to, reason, requestID)
	return err
}

func lastRequestID(job *models.TransformationJob) string {
	if n := len(job.RequestIDTrail); n > 0 {
		return job.RequestIDTrail[n-1]
	}
	return ""
}

