package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"sync"

	"transform-orchestrator/core/buildtool"
	"transform-orchestrator/core/models"
	"transform-orchestrator/core/orchestrator"
	"transform-orchestrator/core/profile"
	"transform-orchestrator/core/repository"
	"transform-orchestrator/core/validator"
	"transform-orchestrator/storage"

	"github.com/gorilla/mux"
)

// TransformHandler is the conversation controller: it maps each UI event kind
// onto one orchestrator operation and owns the per-session conversation
// state. Job-status-driven transitions arrive through orchestrator callbacks.
type TransformHandler struct {
	validator *validator.Validator
	backend   orchestrator.Backend
	runner    buildtool.CommandRunner
	scratch   *storage.ScratchManager
	sink      orchestrator.EventSink
	opts      orchestrator.Options
	history   *repository.JobRepository
	artifacts *repository.ArtifactRepository

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry tracks one chat tab's conversation and its orchestrator
type sessionEntry struct {
	orch *orchestrator.Orchestrator

	mu           sync.Mutex
	conversation models.ConversationState
	lastErr      error
	authCh       chan bool
}

// NewTransformHandler creates the conversation controller
func NewTransformHandler(v *validator.Validator, backend orchestrator.Backend, runner buildtool.CommandRunner, scratch *storage.ScratchManager, sink orchestrator.EventSink, opts orchestrator.Options) *TransformHandler {
	return &TransformHandler{
		validator: v,
		backend:   backend,
		runner:    runner,
		scratch:   scratch,
		sink:      sink,
		opts:      opts,
		sessions:  make(map[string]*sessionEntry),
	}
}

// WithJobHistory enables job row persistence. Status transitions are already
// recorded by the event sink, so finished jobs are written without a
// transition event of their own.
func (h *TransformHandler) WithJobHistory(jobs *repository.JobRepository, artifacts *repository.ArtifactRepository) *TransformHandler {
	h.history = jobs
	h.artifacts = artifacts
	return h
}

func (h *TransformHandler) recordJobStart(session *orchestrator.Session) {
	if h.history == nil {
		return
	}
	snapshot := session.Snapshot()
	if err := h.history.CreateJob(&snapshot); err != nil {
		log.Printf("Failed to persist job %s: %v", snapshot.SessionID, err)
	}
}

func (h *TransformHandler) recordJobFinish(session *orchestrator.Session) {
	if h.history == nil {
		return
	}
	snapshot := session.Snapshot()
	if err := h.history.UpdateJob(&snapshot, snapshot.Status, ""); err != nil {
		log.Printf("Failed to update job %s: %v", snapshot.SessionID, err)
	}
	if h.artifacts == nil {
		return
	}
	for artifactType, path := range map[models.ArtifactType]string{
		models.ArtifactTypePayload:  snapshot.PayloadPath,
		models.ArtifactTypeBuildLog: snapshot.BuildLogPath,
		models.ArtifactTypeResult:   snapshot.ResultPath,
	} {
		if path == "" {
			continue
		}
		if err := h.artifacts.CreateArtifact(snapshot.SessionID, artifactType, path); err != nil {
			log.Printf("Failed to record %s artifact for %s: %v", artifactType, snapshot.SessionID, err)
		}
	}
}

// SetConversationState implements orchestrator.ConversationHandle
func (e *sessionEntry) SetConversationState(state models.ConversationState) {
	e.mu.Lock()
	e.conversation = state
	e.mu.Unlock()
}

// AuthorizeClientBuild implements orchestrator.Authorizer: it parks until the
// user answers the verification prompt through the authorize endpoint.
func (e *sessionEntry) AuthorizeClientBuild(ctx context.Context, buildCommand string) (bool, error) {
	e.mu.Lock()
	ch := make(chan bool, 1)
	e.authCh = ch
	e.conversation = models.ConversationWaitingHILInput
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case approved := <-ch:
		return approved, nil
	}
}

func (e *sessionEntry) answerAuthorization(approved bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.authCh == nil {
		return false
	}
	e.authCh <- approved
	e.authCh = nil
	return true
}

// ListProjects handles GET /v1/projects
func (h *TransformHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	folders := r.URL.Query()["folder"]

	candidates, err := h.validator.Validate(folders)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, validator.ErrNoOpenProjects) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	items := make([]map[string]interface{}, len(candidates))
	for i, c := range candidates {
		items[i] = map[string]interface{}{
			"name":        c.Name,
			"path":        c.Path,
			"jdk_version": c.JDKVersion,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

// StartTransformationRequest confirms a project selection. A transformation
// profile file may supply defaults; explicit request fields win.
type StartTransformationRequest struct {
	ProjectPath string `json:"project_path"`
	SourceJDK   string `json:"source_jdk"`
	TargetJDK   string `json:"target_jdk"`
	JavaHome    string `json:"java_home,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// StartTransformation handles POST /v1/transformations
func (h *TransformHandler) StartTransformation(w http.ResponseWriter, r *http.Request) {
	var req StartTransformationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := h.opts
	if req.ProfilePath != "" {
		p, err := profile.LoadProfile(req.ProfilePath)
		if err != nil {
			http.Error(w, "Invalid transformation profile: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.ProjectPath == "" {
			req.ProjectPath = p.ProjectPath
		}
		if req.SourceJDK == "" {
			req.SourceJDK = string(p.SourceJDK)
		}
		if req.TargetJDK == "" {
			req.TargetJDK = string(p.TargetJDK)
		}
		if req.JavaHome == "" {
			req.JavaHome = p.JavaHome
		}
		opts.Interactive = p.Interactive
		if len(p.SkipDirs) > 0 {
			opts.SkipDir = skipDirMatcher(p.SkipDirs)
		}
	}

	buildSystem, ok := validator.BuildSystemFor(req.ProjectPath)
	if !ok {
		http.Error(w, "Project has no recognized build descriptor", http.StatusBadRequest)
		return
	}

	session := orchestrator.NewSession(
		req.ProjectPath,
		projectName(req.ProjectPath),
		buildSystem,
		models.JDKVersion(req.SourceJDK),
		models.JDKVersion(req.TargetJDK),
		req.JavaHome,
	)

	entry := &sessionEntry{conversation: models.ConversationIdle}
	entry.orch = orchestrator.New(h.backend, h.runner, h.scratch, entry, entry, h.sink, session, opts)

	h.mu.Lock()
	h.sessions[session.Snapshot().SessionID] = entry
	h.mu.Unlock()

	h.recordJobStart(session)

	go func() {
		err := entry.orch.Run(context.Background())
		if errors.Is(err, orchestrator.ErrJavaHomeRequired) {
			// The session is parked on the JAVA_HOME prompt; keep the
			// conversation there so the UI shows it.
			entry.mu.Lock()
			entry.lastErr = err
			entry.mu.Unlock()
			return
		}
		if err != nil {
			log.Printf("Transformation session %s ended with error: %v", session.Snapshot().SessionID, err)
			entry.mu.Lock()
			entry.lastErr = err
			entry.conversation = models.ConversationIdle
			entry.mu.Unlock()
		}
		h.recordJobFinish(session)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": session.Snapshot().SessionID,
		"status":     models.StatusNotStarted,
	})
}

// GetTransformation handles GET /v1/transformations/{id}
func (h *TransformHandler) GetTransformation(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	job := entry.orch.Session().Snapshot()
	entry.mu.Lock()
	conversation := entry.conversation
	lastErr := ""
	if entry.lastErr != nil {
		lastErr = entry.lastErr.Error()
	}
	entry.mu.Unlock()

	response := map[string]interface{}{
		"session_id":       job.SessionID,
		"job_id":           job.ID,
		"project":          job.ProjectName,
		"build_system":     job.BuildSystem,
		"status":           job.Status,
		"polled_status":    job.PolledStatus,
		"conversation":     conversation,
		"failure_reason":   job.FailureReason,
		"failure_category": job.FailureCategory,
		"request_id_trail": job.RequestIDTrail,
		"result_path":      job.ResultPath,
		"error":            lastErr,
		"timestamps": map[string]interface{}{
			"created_at":   job.CreatedAt,
			"started_at":   job.StartedAt,
			"completed_at": job.CompletedAt,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// StopTransformation handles POST /v1/transformations/{id}/stop
func (h *TransformHandler) StopTransformation(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if err := entry.orch.Stop(r.Context()); err != nil {
		// Local cleanup already ran; report the backend failure.
		http.Error(w, "Stop requested but backend call failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": models.StatusStopped})
}

// ProvideJavaHome handles POST /v1/transformations/{id}/java-home
func (h *TransformHandler) ProvideJavaHome(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req struct {
		JavaHome string `json:"java_home"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	go func() {
		err := entry.orch.ProvideJavaHome(context.Background(), req.JavaHome)
		if err != nil {
			entry.mu.Lock()
			entry.lastErr = err
			entry.mu.Unlock()
		}
		if !errors.Is(err, orchestrator.ErrJavaHomeRequired) {
			h.recordJobFinish(entry.orch.Session())
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// AnswerAuthorization handles POST /v1/transformations/{id}/authorize
func (h *TransformHandler) AnswerAuthorization(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !entry.answerAuthorization(req.Approved) {
		http.Error(w, "No pending verification prompt", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDependencyVersions handles GET /v1/transformations/{id}/hil/versions
func (h *TransformHandler) ListDependencyVersions(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	versions, err := entry.orch.DependencyVersions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"versions": versions})
}

// SelectDependencyVersion handles POST /v1/transformations/{id}/hil/select
func (h *TransformHandler) SelectDependencyVersion(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Version == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	go h.resume(entry, func(ctx context.Context) (models.TransformationStatus, error) {
		return entry.orch.ResumeWithVersion(ctx, req.Version)
	})
	w.WriteHeader(http.StatusAccepted)
}

// SkipDependencySelection handles POST /v1/transformations/{id}/hil/skip
func (h *TransformHandler) SkipDependencySelection(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	go h.resume(entry, func(ctx context.Context) (models.TransformationStatus, error) {
		return entry.orch.ResumeWithoutSelection(ctx)
	})
	w.WriteHeader(http.StatusAccepted)
}

func (h *TransformHandler) resume(entry *sessionEntry, op func(context.Context) (models.TransformationStatus, error)) {
	status, err := op(context.Background())
	if err != nil {
		log.Printf("Resume failed: %v", err)
		entry.mu.Lock()
		entry.lastErr = err
		entry.conversation = models.ConversationIdle
		entry.mu.Unlock()
		h.recordJobFinish(entry.orch.Session())
		return
	}
	if !models.PausedStates[status] && status != models.StatusWaitingUserInput {
		h.recordJobFinish(entry.orch.Session())
	}
}

func (h *TransformHandler) entry(sessionID string) (*sessionEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.sessions[sessionID]
	return entry, ok
}

// Resume handles POST /v1/transformations/{id}/resume. A body with a version
// reports that dependency selection; an empty body resumes without one.
func (h *TransformHandler) Resume(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Version string `json:"version"`
	}
	// An empty body is a plain resume
	_ = json.NewDecoder(r.Body).Decode(&req)

	go h.resume(entry, func(ctx context.Context) (models.TransformationStatus, error) {
		if req.Version != "" {
			return entry.orch.ResumeWithVersion(ctx, req.Version)
		}
		return entry.orch.ResumeWithoutSelection(ctx)
	})
	w.WriteHeader(http.StatusAccepted)
}

// skipDirMatcher turns profile skip globs into the packaging skip predicate.
// Patterns match against the directory base name.
func skipDirMatcher(patterns []string) func(string) bool {
	return func(dir string) bool {
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, filepath.Base(dir)); err == nil && ok {
				return true
			}
		}
		return false
	}
}

func projectName(path string) string {
	name := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			name = path[i+1:]
			break
		}
	}
	return name
}
