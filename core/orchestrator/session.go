package orchestrator

import (
	"sync"
	"time"

	"transform-orchestrator/core/models"

	"github.com/google/uuid"
)

// Session is the explicit job/session state object owned by the orchestrator.
// Only the orchestrator writes job fields; the UI layer reads through
// Snapshot. One transformation job is active per session.
type Session struct {
	mu  sync.RWMutex
	job models.TransformationJob
}

// NewSession creates a session for a confirmed project selection
func NewSession(projectPath, projectName string, buildSystem models.BuildSystem, source, target models.JDKVersion, javaHome string) *Session {
	now := time.Now()
	return &Session{
		job: models.TransformationJob{
			SessionID:        uuid.New().String(),
			ProjectPath:      projectPath,
			ProjectName:      projectName,
			BuildSystem:      buildSystem,
			SourceJDKVersion: source,
			TargetJDKVersion: target,
			JavaHome:         javaHome,
			Status:           models.StatusNotStarted,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
}

// Snapshot returns a read-only copy of the job for UI display
func (s *Session) Snapshot() models.TransformationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job := s.job
	job.RequestIDTrail = append([]string(nil), s.job.RequestIDTrail...)
	return job
}

// JobID returns the backend-assigned job id, empty before start
func (s *Session) JobID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job.ID
}

func (s *Session) setStatus(status models.TransformationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Status = status
	s.job.UpdatedAt = time.Now()
	switch status {
	case models.StatusStarted:
		if s.job.StartedAt == nil {
			now := time.Now()
			s.job.StartedAt = &now
		}
	case models.StatusCompleted, models.StatusPartiallyCompleted, models.StatusStopped, models.StatusFailed:
		if s.job.CompletedAt == nil {
			now := time.Now()
			s.job.CompletedAt = &now
		}
	}
}

func (s *Session) setPolledStatus(status models.TransformationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.PolledStatus = status
	s.job.UpdatedAt = time.Now()
}

func (s *Session) setJobID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.ID = id
}

func (s *Session) setFailure(reason string, category models.FailureCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.FailureReason = reason
	s.job.FailureCategory = category
}

func (s *Session) setBuildLogPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.BuildLogPath = path
}

func (s *Session) setPayloadPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.PayloadPath = path
}

func (s *Session) setResultPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.ResultPath = path
}

func (s *Session) setJavaHome(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.JavaHome = path
}

// appendRequestID records a backend request id on the diagnostic trail
func (s *Session) appendRequestID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.RequestIDTrail = append(s.job.RequestIDTrail, id)
}

// lastRequestID returns the most recent diagnostic request id
func (s *Session) lastRequestID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.job.RequestIDTrail); n > 0 {
		return s.job.RequestIDTrail[n-1]
	}
	return ""
}
