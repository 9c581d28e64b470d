package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"transform-orchestrator/core/models"
	"transform-orchestrator/core/repository"

	"github.com/gorilla/mux"
)

// HistoryHandler serves persisted job history. All endpoints answer 503 when
// the server runs without a database.
type HistoryHandler struct {
	jobs      *repository.JobRepository
	events    *repository.EventRepository
	artifacts *repository.ArtifactRepository
}

// NewHistoryHandler creates the job history read surface
func NewHistoryHandler(jobs *repository.JobRepository, events *repository.EventRepository, artifacts *repository.ArtifactRepository) *HistoryHandler {
	return &HistoryHandler{jobs: jobs, events: events, artifacts: artifacts}
}

// ListJobs handles GET /v1/jobs
func (h *HistoryHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Job history persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	var status *models.TransformationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.TransformationStatus(s)
		status = &st
	}
	limit := queryLimit(r, 50)

	jobs, err := h.jobs.ListJobs(status, limit)
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		items[i] = map[string]interface{}{
			"session_id":   job.SessionID,
			"job_id":       job.ID,
			"project":      job.ProjectName,
			"build_system": job.BuildSystem,
			"status":       job.Status,
			"created_at":   job.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

// GetJob handles GET /v1/jobs/{id}
func (h *HistoryHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Job history persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	job, err := h.jobs.GetJob(mux.Vars(r)["id"])
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// GetJobEvents handles GET /v1/jobs/{id}/events
func (h *HistoryHandler) GetJobEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "Job history persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	events, err := h.events.GetJobEvents(mux.Vars(r)["id"], queryLimit(r, 100))
	if err != nil {
		http.Error(w, "Failed to load job events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": events})
}

// GetJobArtifacts handles GET /v1/jobs/{id}/artifacts
func (h *HistoryHandler) GetJobArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		http.Error(w, "Job history persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	var artifactType *models.ArtifactType
	if s := r.URL.Query().Get("type"); s != "" {
		at := models.ArtifactType(s)
		artifactType = &at
	}

	artifacts, err := h.artifacts.GetJobArtifacts(mux.Vars(r)["id"], artifactType)
	if err != nil {
		http.Error(w, "Failed to load job artifacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": artifacts})
}

func queryLimit(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
