package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"transform-orchestrator/core/buildtool"
	"transform-orchestrator/core/cancel"
	"transform-orchestrator/core/client"
	"transform-orchestrator/core/models"
	"transform-orchestrator/core/packager"
	"transform-orchestrator/storage"
)

var (
	// ErrJavaHomeRequired means the local build cannot run until the user
	// supplies a JAVA_HOME. The session is left in WAITING_USER_INPUT and
	// must be resumed or cancelled by the caller.
	ErrJavaHomeRequired = errors.New("JAVA_HOME is required to run the local build")

	// ErrPollTimeout means the polling elapsed-time budget was exhausted
	ErrPollTimeout = errors.New("transformation polling timed out")

	// ErrVerificationRejected means the user declined the client-side build
	// authorization prompt; the job is stopped.
	ErrVerificationRejected = errors.New("verification prompt rejected")
)

// Backend is the transformation service surface the orchestrator drives.
// *client.Client satisfies it; tests substitute a scripted fake.
type Backend interface {
	CreateUploadURL(ctx context.Context, checksum string, purpose client.ArtifactPurpose, jobID string) (*client.UploadTarget, error)
	UploadArchive(ctx context.Context, target *client.UploadTarget, archivePath, checksum string) error
	StartTransformation(ctx context.Context, uploadID string, source, target models.JDKVersion) (string, string, error)
	GetTransformation(ctx context.Context, jobID string) (*client.JobState, error)
	GetTransformationPlan(ctx context.Context, jobID string) (*models.TransformationPlan, error)
	StopTransformation(ctx context.Context, jobID string) error
	ResumeTransformation(ctx context.Context, jobID string, outcome client.ResumeOutcome) error
	ExportResultArchive(ctx context.Context, jobID, destPath string) error
	DownloadArtifact(ctx context.Context, jobID, artifactID, destPath string) error
}

// ConversationHandle receives job-lifecycle-driven conversation transitions.
// The UI layer owns conversation state; the orchestrator only signals.
type ConversationHandle interface {
	SetConversationState(state models.ConversationState)
}

// Authorizer gates client-side verification builds behind an explicit user
// prompt when interactive verification is configured.
type Authorizer interface {
	AuthorizeClientBuild(ctx context.Context, buildCommand string) (bool, error)
}

// EventSink observes job status transitions
type EventSink interface {
	Publish(event models.StatusEvent)
}

// Scratch manages the job's scratch workspace. *storage.ScratchManager is the
// production implementation.
type Scratch interface {
	CreateWorkspace() (*storage.Workspace, error)
	Cleanup(ws *storage.Workspace)
	SnapshotProject(ws *storage.Workspace, projectPath string) (string, error)
	ApplyPatch(ctx context.Context, snapshotDir, patchPath string) error
}

// Options configures an orchestrator
type Options struct {
	PollInterval    time.Duration
	PollBudget      time.Duration
	MaxPayloadBytes int64
	Interactive     bool              // prompt before each HIL verification build
	SkipDir         func(string) bool // packaging skip predicate for source trees
}

// Orchestrator owns the transformation job lifecycle: build, package, upload,
// start, poll (with the human-in-the-loop sub-protocol), download.
type Orchestrator struct {
	backend    Backend
	runner     buildtool.CommandRunner
	packager   *packager.Packager
	scratch    Scratch
	conv       ConversationHandle
	authorizer Authorizer
	sink       EventSink
	opts       Options

	session *Session
	token   *cancel.Token

	// wsMu guards the workspace handoff between the pipeline goroutine and
	// Stop. While a pipeline operation is running the workspace is owned by
	// that goroutine; Stop defers cleanup to it instead of releasing the
	// tree out from under an in-flight round.
	wsMu           sync.Mutex
	ws             *storage.Workspace
	running        bool
	pendingCleanup bool

	// hilInFlight guards against re-entering the client-action sub-protocol
	// while a verification round is mid-authorization.
	hilInFlight bool
	// suspended disables the client-action sub-protocol entirely
	suspended bool
	// lastHandledArtifact is the id of the most recent client-instructions
	// artifact acted on; re-observing it never re-triggers the round.
	lastHandledArtifact string
	// lastObserved is the previously polled status; identical observations
	// never re-emit a status-change event.
	lastObserved models.TransformationStatus
}

// New creates an orchestrator bound to one session
func New(backend Backend, runner buildtool.CommandRunner, scratch Scratch, conv ConversationHandle, authorizer Authorizer, sink EventSink, session *Session, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollBudget <= 0 {
		opts.PollBudget = 24 * time.Hour
	}
	return &Orchestrator{
		backend:    backend,
		runner:     runner,
		packager:   packager.New(),
		scratch:    scratch,
		conv:       conv,
		authorizer: authorizer,
		sink:       sink,
		opts:       opts,
		session:    session,
		token:      cancel.New(),
	}
}

// Session returns the session this orchestrator owns
func (o *Orchestrator) Session() *Session { return o.session }

// Cancel requests cooperative cancellation. In-flight subprocess and network
// calls complete; the next suspension point observes the flag.
func (o *Orchestrator) Cancel() { o.token.Cancel() }

// Run executes the full pipeline: local build, packaging, upload, job start,
// poll to terminal, result download. A paused (needs-user) exit leaves the
// session in WAITING_USER_INPUT without error; every other non-terminal
// outcome is an error. Re-entry after a pause reuses the existing workspace.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.beginRun(); err != nil {
		return err
	}
	defer o.endRun()

	if err := o.buildAndPackage(ctx); err != nil {
		return err
	}
	if err := o.uploadAndStart(ctx); err != nil {
		o.fail(err)
		return err
	}

	status, err := o.Poll(ctx, models.StatusCompleted, models.StatusPartiallyCompleted)
	if err != nil {
		o.fail(err)
		return err
	}
	if _, err := o.completeAfterPoll(ctx, status); err != nil {
		return err
	}
	return nil
}

// beginRun marks the pipeline active and allocates the scratch workspace on
// first use. A workspace left over from a paused run is reused, not replaced.
func (o *Orchestrator) beginRun() error {
	o.wsMu.Lock()
	defer o.wsMu.Unlock()
	if o.ws == nil {
		ws, err := o.scratch.CreateWorkspace()
		if err != nil {
			return err
		}
		o.ws = ws
	}
	o.running = true
	return nil
}

// endRun marks the pipeline idle and performs any cleanup a concurrent Stop
// deferred to this goroutine.
func (o *Orchestrator) endRun() {
	o.wsMu.Lock()
	defer o.wsMu.Unlock()
	o.running = false
	if o.pendingCleanup {
		o.pendingCleanup = false
		o.cleanupLocked()
	}
}

// completeAfterPoll finishes a successfully polled job. Paused states keep
// the workspace and wait for user action; every other valid outcome downloads
// and extracts the result archive and returns the conversation to idle.
func (o *Orchestrator) completeAfterPoll(ctx context.Context, status models.TransformationStatus) (models.TransformationStatus, error) {
	if models.PausedStates[status] || status == models.StatusWaitingUserInput {
		return status, nil
	}
	if err := o.downloadResult(ctx); err != nil {
		o.fail(err)
		return status, err
	}
	o.conv.SetConversationState(models.ConversationIdle)
	return status, nil
}

// buildAndPackage runs the local build and assembles the payload archive
func (o *Orchestrator) buildAndPackage(ctx context.Context) error {
	o.transition(models.StatusBuilding, "local_build_started")
	o.conv.SetConversationState(models.ConversationCompiling)

	job := o.session.Snapshot()
	if job.JavaHome != "" {
		if _, err := os.Stat(job.JavaHome); err != nil {
			o.transition(models.StatusWaitingUserInput, "invalid_java_home")
			o.conv.SetConversationState(models.ConversationPromptJavaHome)
			return ErrJavaHomeRequired
		}
	}

	driver, err := buildtool.ForBuildSystem(job.BuildSystem, o.runner)
	if err != nil {
		o.fail(err)
		return err
	}

	outcome, err := driver.MaterializeAndBuild(ctx, job.ProjectPath, o.ws.DependenciesDir, o.ws.LogDir, job.JavaHome)
	if outcome != nil && outcome.LogPath != "" {
		o.session.setBuildLogPath(outcome.LogPath)
	}
	if err != nil {
		o.transition(models.StatusFailed, "local_build_failed")
		return fmt.Errorf("local build failed: %w", err)
	}

	payloadPath := filepath.Join(o.ws.Root, "payload.zip")
	path, err := o.packager.CreatePayload(o.token, packager.Options{
		ProjectPath:     job.ProjectPath,
		DependenciesDir: outcome.DependenciesDir,
		BuildLogPath:    outcome.LogPath,
		BuildSystem:     string(job.BuildSystem),
		HILCapabilities: []string{packager.CapabilityClientSideBuild},
		SkipDir:         o.opts.SkipDir,
		MaxBytes:        o.opts.MaxPayloadBytes,
		OutPath:         payloadPath,
	})
	if err != nil {
		o.fail(err)
		return err
	}
	o.session.setPayloadPath(path)
	return nil
}

// uploadAndStart transfers the payload and submits the job. The cancellation
// token is consulted immediately before each network call.
func (o *Orchestrator) uploadAndStart(ctx context.Context) error {
	o.transition(models.StatusUploading, "payload_upload_started")

	job := o.session.Snapshot()
	checksum, err := client.ChecksumSHA256(job.PayloadPath)
	if err != nil {
		return fmt.Errorf("failed to checksum payload: %w", err)
	}

	if err := o.token.Check(); err != nil {
		return err
	}
	target, err := o.backend.CreateUploadURL(ctx, checksum, client.PurposeTransformation, "")
	if err != nil {
		return err
	}

	if err := o.token.Check(); err != nil {
		return err
	}
	if err := o.backend.UploadArchive(ctx, target, job.PayloadPath, checksum); err != nil {
		return err
	}

	if err := o.token.Check(); err != nil {
		return err
	}
	jobID, requestID, err := o.backend.StartTransformation(ctx, target.UploadID, job.SourceJDKVersion, job.TargetJDKVersion)
	if err != nil {
		return err
	}
	o.session.setJobID(jobID)
	o.session.appendRequestID(requestID)
	o.transition(models.StatusStarted, "job_submitted")
	o.conv.SetConversationState(models.ConversationJobSubmitted)
	log.Printf("Transformation job %s started for %s", jobID, job.ProjectName)
	return nil
}

// downloadResult exports and unpacks the transformed-code archive
func (o *Orchestrator) downloadResult(ctx context.Context) error {
	if err := o.token.Check(); err != nil {
		return err
	}
	resultPath := filepath.Join(o.ws.DownloadDir, "result.zip")
	if err := o.backend.ExportResultArchive(ctx, o.session.JobID(), resultPath); err != nil {
		return err
	}
	extractDir := filepath.Join(o.ws.DownloadDir, "result")
	if err := packager.ExtractArchive(resultPath, extractDir); err != nil {
		return fmt.Errorf("failed to extract result archive: %w", err)
	}
	o.session.setResultPath(extractDir)
	return nil
}

// ProvideJavaHome resumes a session paused on the JAVA_HOME prompt
func (o *Orchestrator) ProvideJavaHome(ctx context.Context, javaHome string) error {
	if _, err := os.Stat(javaHome); err != nil {
		return fmt.Errorf("invalid JAVA_HOME %q: %w", javaHome, err)
	}
	o.session.setJavaHome(javaHome)
	return o.Run(ctx)
}

// Stop requests a backend stop and ensures local cleanup runs, even when the
// stop call fails. Cleanup of an active pipeline is deferred to the pipeline
// goroutine, which observes the cancelled token and releases the workspace on
// its way out.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.token.Cancel()

	var stopErr error
	if jobID := o.session.JobID(); jobID != "" {
		stopErr = o.backend.StopTransformation(ctx, jobID)
		if stopErr != nil {
			log.Printf("Failed to stop transformation %s: %v", jobID, stopErr)
		}
	}

	o.wsMu.Lock()
	if o.running {
		o.pendingCleanup = true
	} else {
		o.cleanupLocked()
	}
	o.wsMu.Unlock()
	o.transition(models.StatusStopped, "user_stop_requested")
	return stopErr
}

// cleanupLocked releases scratch resources and resets the conversation.
// Callers hold wsMu.
func (o *Orchestrator) cleanupLocked() {
	o.scratch.Cleanup(o.ws)
	o.ws = nil
	o.conv.SetConversationState(models.ConversationIdle)
}

// fail records a terminal failure on the session
func (o *Orchestrator) fail(err error) {
	if errors.Is(err, cancel.ErrCancelled) {
		o.transition(models.StatusStopped, "cancelled")
		return
	}
	o.session.setFailure(err.Error(), models.FailureCategoryGeneric)
	o.transition(models.StatusFailed, "pipeline_error")
}

// transition records a client-side status change and notifies observers
func (o *Orchestrator) transition(to models.TransformationStatus, reason string) {
	from := o.session.Snapshot().Status
	o.session.setStatus(to)
	o.emit(from, to, reason)
}

func (o *Orchestrator) emit(from, to models.TransformationStatus, reason string) {
	if o.sink == nil || from == to {
		return
	}
	fromCopy := from
	o.sink.Publish(models.StatusEvent{
		SessionID:  o.session.Snapshot().SessionID,
		JobID:      o.session.JobID(),
		At:         time.Now(),
		FromStatus: &fromCopy,
		ToStatus:   to,
		Reason:     reason,
		RequestID:  o.session.lastRequestID(),
	})
}
