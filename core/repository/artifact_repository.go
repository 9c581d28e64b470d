package repository

import (
	"fmt"

	"transform-orchestrator/core/models"
)

// ArtifactRepository handles database operations for job artifacts
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// CreateArtifact records a local artifact produced during a job
func (r *ArtifactRepository) CreateArtifact(sessionID string, artifactType models.ArtifactType, path string) error {
	query := `
		INSERT INTO job_artifacts (session_id, type, path)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(query, sessionID, artifactType, path)
	return err
}

// GetJobArtifacts retrieves artifacts for a session
func (r *ArtifactRepository) GetJobArtifacts(sessionID string, artifactType *models.ArtifactType) ([]models.JobArtifact, error) {
	query := `
		SELECT id, session_id, type, path, created_at
		FROM job_artifacts
		WHERE session_id = $1
	`
	args := []interface{}{sessionID}

	if artifactType != nil {
		query += fmt.Sprintf(" AND type = $%d", len(args)+1)
		args = append(args, *artifactType)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.JobArtifact
	for rows.Next() {
		var artifact models.JobArtifact
		err := rows.Scan(
			&artifact.ID,
			&artifact.SessionID,
			&artifact.Type,
			&artifact.Path,
			&artifact.CreatedAt,
		)
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}
