package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"transform-orchestrator/core/buildtool"
	"transform-orchestrator/core/client"
	"transform-orchestrator/core/models"
	"transform-orchestrator/core/packager"
)

// handleClientAction runs one human-in-the-loop client build round: locate the
// pending client-instructions artifact on the plan, download and extract it,
// patch a project snapshot, run the verification build, and report the result
// back before resuming the job.
//
// Any failure after the artifact is located surfaces as a single client-side
// build error that aborts the current poll cycle; there is no automatic retry.
func (o *Orchestrator) handleClientAction(ctx context.Context) error {
	o.hilInFlight = true
	defer func() { o.hilInFlight = false }()

	pending, err := o.pendingClientInstructions(ctx)
	if err != nil {
		return err
	}
	if pending == nil || pending.ID == o.lastHandledArtifact {
		return nil
	}

	if err := o.runClientBuildRound(ctx, pending.ID); err != nil {
		if err == ErrVerificationRejected {
			return err
		}
		return fmt.Errorf("client-side build failed: %w", err)
	}
	o.lastHandledArtifact = pending.ID
	return nil
}

// pendingClientInstructions fetches the plan and locates the progress update
// carrying a pending client-instructions download, if any. At most one entry
// across the plan signals AWAITING_CLIENT_ACTION at a time.
func (o *Orchestrator) pendingClientInstructions(ctx context.Context) (*models.DownloadArtifact, error) {
	if err := o.token.Check(); err != nil {
		return nil, err
	}
	plan, err := o.backend.GetTransformationPlan(ctx, o.session.JobID())
	if err != nil {
		return nil, err
	}
	for _, step := range plan.Steps {
		for _, update := range step.ProgressUpdates {
			if update.Status != models.ProgressUpdateAwaitingClientAction {
				continue
			}
			for _, artifact := range update.DownloadArtifacts {
				if artifact.Type == models.DownloadArtifactClientInstructions {
					a := artifact
					return &a, nil
				}
			}
		}
	}
	return nil, nil
}

// runClientBuildRound executes steps b-e of the client-action round for one
// instructions artifact.
func (o *Orchestrator) runClientBuildRound(ctx context.Context, artifactID string) error {
	job := o.session.Snapshot()

	if err := o.token.Check(); err != nil {
		return err
	}
	archivePath := filepath.Join(o.ws.DownloadDir, "instructions-"+artifactID+".zip")
	if err := o.backend.DownloadArtifact(ctx, job.ID, artifactID, archivePath); err != nil {
		return err
	}

	extractDir := filepath.Join(o.ws.DownloadDir, "instructions-"+artifactID)
	instructions, patchPath, err := packager.ParseClientInstructions(archivePath, extractDir)
	if err != nil {
		return err
	}

	snapshotDir, err := o.scratch.SnapshotProject(o.ws, job.ProjectPath)
	if err != nil {
		return err
	}
	if err := o.scratch.ApplyPatch(ctx, snapshotDir, patchPath); err != nil {
		return err
	}

	if o.opts.Interactive && o.authorizer != nil {
		authorized, err := o.authorizer.AuthorizeClientBuild(ctx, instructions.BuildCommand)
		if err != nil {
			return err
		}
		if !authorized {
			// Declined authorization aborts the whole job.
			if stopErr := o.backend.StopTransformation(ctx, job.ID); stopErr != nil {
				log.Printf("Failed to stop transformation %s after rejected prompt: %v", job.ID, stopErr)
			}
			return ErrVerificationRejected
		}
	}

	result, err := buildtool.RunBuildCommand(ctx, o.runner, snapshotDir, instructions.BuildCommand, job.JavaHome)
	if err != nil {
		return err
	}

	logPath := filepath.Join(o.ws.LogDir, "client-build-"+artifactID+".log")
	if err := os.WriteFile(logPath, []byte(result.Output), 0o644); err != nil {
		return err
	}

	resultArchive := filepath.Join(o.ws.Root, "client-build-result-"+artifactID+".zip")
	if _, err := o.packager.CreateClientBuildResult(resultArchive, logPath, result.ExitCode); err != nil {
		return err
	}

	if err := o.uploadClientArtifact(ctx, resultArchive); err != nil {
		return err
	}

	if err := o.token.Check(); err != nil {
		return err
	}
	return o.backend.ResumeTransformation(ctx, job.ID, client.ResumeCompleted)
}

// uploadClientArtifact transfers a HIL round archive tagged as a client build
// result.
func (o *Orchestrator) uploadClientArtifact(ctx context.Context, archivePath string) error {
	checksum, err := client.ChecksumSHA256(archivePath)
	if err != nil {
		return err
	}
	if err := o.token.Check(); err != nil {
		return err
	}
	target, err := o.backend.CreateUploadURL(ctx, checksum, client.PurposeClientBuildResult, o.session.JobID())
	if err != nil {
		return err
	}
	if err := o.token.Check(); err != nil {
		return err
	}
	return o.backend.UploadArchive(ctx, target, archivePath, checksum)
}

// DependencyVersions lists the alternate dependency versions the backend
// offered for a paused dependency-resolution step. An empty list means the
// backend offered nothing the user can choose from.
func (o *Orchestrator) DependencyVersions(ctx context.Context) ([]string, error) {
	plan, err := o.backend.GetTransformationPlan(ctx, o.session.JobID())
	if err != nil {
		return nil, err
	}
	for _, step := range plan.Steps {
		for _, update := range step.ProgressUpdates {
			if update.Status != models.ProgressUpdateAwaitingClientAction || update.Description == "" {
				continue
			}
			var payload struct {
				AllVersions []string `json:"allVersions"`
			}
			if err := json.Unmarshal([]byte(update.Description), &payload); err != nil {
				continue
			}
			if len(payload.AllVersions) > 0 {
				return payload.AllVersions, nil
			}
		}
	}
	return nil, nil
}

// ResumeWithVersion reports the user's selected dependency version and
// re-enters the poll loop, finishing the job when polling reaches a valid
// state.
func (o *Orchestrator) ResumeWithVersion(ctx context.Context, version string) (models.TransformationStatus, error) {
	if err := o.beginRun(); err != nil {
		return "", err
	}
	defer o.endRun()

	selection := filepath.Join(o.ws.Root, "dependency-selection.zip")
	if err := writeSelectionArchive(selection, version); err != nil {
		return "", err
	}
	checksum, err := client.ChecksumSHA256(selection)
	if err != nil {
		return "", err
	}
	if err := o.token.Check(); err != nil {
		return "", err
	}
	target, err := o.backend.CreateUploadURL(ctx, checksum, client.PurposeDependencySelection, o.session.JobID())
	if err != nil {
		return "", err
	}
	if err := o.backend.UploadArchive(ctx, target, selection, checksum); err != nil {
		return "", err
	}
	if err := o.backend.ResumeTransformation(ctx, o.session.JobID(), client.ResumeCompleted); err != nil {
		return "", err
	}
	status, err := o.Poll(ctx, models.StatusCompleted, models.StatusPartiallyCompleted)
	if err != nil {
		o.fail(err)
		return status, err
	}
	return o.completeAfterPoll(ctx, status)
}

// ResumeWithoutSelection resumes a paused job when no version is available or
// the user cancelled, and re-enters the poll loop, finishing the job when
// polling reaches a valid state.
func (o *Orchestrator) ResumeWithoutSelection(ctx context.Context) (models.TransformationStatus, error) {
	if err := o.beginRun(); err != nil {
		return "", err
	}
	defer o.endRun()

	if err := o.token.Check(); err != nil {
		return "", err
	}
	if err := o.backend.ResumeTransformation(ctx, o.session.JobID(), client.ResumeRejected); err != nil {
		return "", err
	}
	status, err := o.Poll(ctx, models.StatusCompleted, models.StatusPartiallyCompleted)
	if err != nil {
		o.fail(err)
		return status, err
	}
	return o.completeAfterPoll(ctx, status)
}

func writeSelectionArchive(outPath, version string) error {
	data, err := json.Marshal(map[string]string{"selectedVersion": version})
	if err != nil {
		return err
	}
	return packager.WriteSingleEntryArchive(outPath, packager.ManifestFileName, data)
}
