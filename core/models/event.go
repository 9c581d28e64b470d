package models

import "time"

// StatusEvent represents a state transition observed for a job
type StatusEvent struct {
	ID         int64
	SessionID  string
	JobID      string
	At         time.Time
	FromStatus *TransformationStatus
	ToStatus   TransformationStatus
	Reason     string
	RequestID  string
}

// ArtifactType represents the type of job artifact
type ArtifactType string

const (
	ArtifactTypePayload            ArtifactType = "payload"
	ArtifactTypeBuildLog           ArtifactType = "build_log"
	ArtifactTypeResult             ArtifactType = "result"
	ArtifactTypeClientInstructions ArtifactType = "client_instructions"
	ArtifactTypeClientBuildResult  ArtifactType = "client_build_result"
)

// JobArtifact represents a local artifact produced or consumed during a job
// (payload archive, build log, downloaded result).
type JobArtifact struct {
	ID        int64
	SessionID string
	Type      ArtifactType
	Path      string
	CreatedAt time.Time
}

// TransformationPlan is the backend-provided description of transformation
// progress, organized into ordered steps.
type TransformationPlan struct {
	Steps []TransformationStep
}

// TransformationStep is one ordered step of the plan.
type TransformationStep struct {
	ID              string
	Name            string
	Description     string
	Status          string
	ProgressUpdates []ProgressUpdate
}

// ProgressUpdate is one progress entry within a plan step. At most one entry
// across the plan signals AWAITING_CLIENT_ACTION at a time.
type ProgressUpdate struct {
	Name              string
	Status            string
	Description       string
	DownloadArtifacts []DownloadArtifact
}

// ProgressUpdateAwaitingClientAction marks a progress update whose download
// artifact the client must fetch and act on.
const ProgressUpdateAwaitingClientAction = "AWAITING_CLIENT_ACTION"

// DownloadArtifact identifies a backend artifact attached to a progress update.
type DownloadArtifact struct {
	Type string
	ID   string
}

// DownloadArtifactClientInstructions is the artifact kind carrying a patch and
// build command for a human-in-the-loop round.
const DownloadArtifactClientInstructions = "CLIENT_INSTRUCTIONS"
