package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"transform-orchestrator/core/models"
)

// requestIDHeader carries the backend's diagnostic request id
const requestIDHeader = "x-amzn-requestid"

// Client is the thin RPC wrapper over the backend transformation service.
// It performs no retries; the orchestrator's poll loop is the only automatic
// retry construct in the system.
type Client struct {
	endpoint   string
	token      string
	kmsKeyARN  string
	httpClient *http.Client
}

// New creates a new transformation service client
func New(endpoint, token, kmsKeyARN string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		kmsKeyARN:  kmsKeyARN,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadTarget is a granted presigned upload slot
type UploadTarget struct {
	UploadID  string `json:"uploadId"`
	UploadURL string `json:"uploadUrl"`
	KMSKeyARN string `json:"kmsKeyArn,omitempty"`
}

// JobState is one observed backend job status
type JobState struct {
	Status    models.TransformationStatus
	Reason    string // optional human-readable failure reason
	RequestID string
}

// ArtifactPurpose tags an upload slot request with what the archive is for
type ArtifactPurpose string

const (
	PurposeTransformation      ArtifactPurpose = "TRANSFORMATION"
	PurposeClientBuildResult   ArtifactPurpose = "CLIENT_BUILD_RESULT"
	PurposeDependencySelection ArtifactPurpose = "DEPENDENCY_SELECTION"
)

// ResumeOutcome reports how a paused job should proceed
type ResumeOutcome string

const (
	ResumeCompleted ResumeOutcome = "COMPLETED"
	ResumeRejected  ResumeOutcome = "REJECTED"
)

// CreateUploadURL requests a presigned upload slot for an archive with the
// given base64 SHA-256 checksum.
func (c *Client) CreateUploadURL(ctx context.Context, checksum string, purpose ArtifactPurpose, jobID string) (*UploadTarget, error) {
	req := map[string]string{
		"contentChecksum":     checksum,
		"checksumAlgorithm":   "SHA_256",
		"uploadIntent":        string(purpose),
		"transformationJobId": jobID,
	}
	var target UploadTarget
	if _, err := c.call(ctx, http.MethodPost, "/v1/uploads", req, &target); err != nil {
		return nil, fmt.Errorf("failed to create upload URL: %w", humanizeNetError(err))
	}
	return &target, nil
}

// StartTransformation submits the job for the uploaded payload and returns the
// assigned job id.
func (c *Client) StartTransformation(ctx context.Context, uploadID string, source, target models.JDKVersion) (string, string, error) {
	req := map[string]interface{}{
		"uploadId": uploadID,
		"transformationSpec": map[string]string{
			"language":       "JAVA",
			"sourceVersion":  string(source),
			"targetVersion":  string(target),
			"transformation": "LANGUAGE_UPGRADE",
		},
	}
	var resp struct {
		TransformationJobID string `json:"transformationJobId"`
	}
	requestID, err := c.call(ctx, http.MethodPost, "/v1/transformations", req, &resp)
	if err != nil {
		return "", requestID, fmt.Errorf("failed to start transformation: %w", humanizeNetError(err))
	}
	return resp.TransformationJobID, requestID, nil
}

// GetTransformation fetches the current job status
func (c *Client) GetTransformation(ctx context.Context, jobID string) (*JobState, error) {
	var resp struct {
		Transformation struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		} `json:"transformationJob"`
	}
	requestID, err := c.call(ctx, http.MethodGet, "/v1/transformations/"+jobID, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get transformation: %w", humanizeNetError(err))
	}
	return &JobState{
		Status:    models.TransformationStatus(resp.Transformation.Status),
		Reason:    resp.Transformation.Reason,
		RequestID: requestID,
	}, nil
}

// GetTransformationPlan fetches the ordered plan steps
func (c *Client) GetTransformationPlan(ctx context.Context, jobID string) (*models.TransformationPlan, error) {
	var resp struct {
		Steps []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Description     string `json:"description"`
			Status          string `json:"status"`
			ProgressUpdates []struct {
				Name              string `json:"name"`
				Status            string `json:"status"`
				Description       string `json:"description"`
				DownloadArtifacts []struct {
					Type string `json:"downloadArtifactType"`
					ID   string `json:"downloadArtifactId"`
				} `json:"downloadArtifacts"`
			} `json:"progressUpdates"`
		} `json:"transformationSteps"`
	}
	if _, err := c.call(ctx, http.MethodGet, "/v1/transformations/"+jobID+"/plan", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get transformation plan: %w", humanizeNetError(err))
	}

	plan := &models.TransformationPlan{}
	for _, s := range resp.Steps {
		step := models.TransformationStep{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Status:      s.Status,
		}
		for _, u := range s.ProgressUpdates {
			update := models.ProgressUpdate{
				Name:        u.Name,
				Status:      u.Status,
				Description: u.Description,
			}
			for _, a := range u.DownloadArtifacts {
				update.DownloadArtifacts = append(update.DownloadArtifacts, models.DownloadArtifact{
					Type: a.Type,
					ID:   a.ID,
				})
			}
			step.ProgressUpdates = append(step.ProgressUpdates, update)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// StopTransformation asks the backend to stop the job
func (c *Client) StopTransformation(ctx context.Context, jobID string) error {
	if _, err := c.call(ctx, http.MethodPost, "/v1/transformations/"+jobID+"/stop", nil, nil); err != nil {
		return fmt.Errorf("failed to stop transformation: %w", humanizeNetError(err))
	}
	return nil
}

// ResumeTransformation resumes a paused job with the client's outcome
func (c *Client) ResumeTransformation(ctx context.Context, jobID string, outcome ResumeOutcome) error {
	req := map[string]string{"userActionStatus": string(outcome)}
	if _, err := c.call(ctx, http.MethodPost, "/v1/transformations/"+jobID+"/resume", req, nil); err != nil {
		return fmt.Errorf("failed to resume transformation: %w", humanizeNetError(err))
	}
	return nil
}

// ExportResultArchive streams the transformed-code archive to destPath
func (c *Client) ExportResultArchive(ctx context.Context, jobID, destPath string) error {
	return c.download(ctx, "/v1/transformations/"+jobID+"/result", destPath)
}

// DownloadArtifact streams a plan-step artifact (e.g. client instructions) to
// destPath.
func (c *Client) DownloadArtifact(ctx context.Context, jobID, artifactID, destPath string) error {
	return c.download(ctx, "/v1/transformations/"+jobID+"/artifacts/"+artifactID, destPath)
}

func (c *Client) download(ctx context.Context, path, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", path, humanizeNetError(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: backend returned %s", path, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to save download: %w", err)
	}
	return out.Close()
}

// call performs one JSON request and decodes the response, returning the
// backend request id for the diagnostic trail.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) (string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get(requestIDHeader)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return requestID, fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return requestID, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return requestID, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// humanizeNetError maps low-level transport failures onto the user-facing
// causes the conversation shows. Recognition is by substring and best-effort.
func humanizeNetError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "certificate"):
		return fmt.Errorf("TLS certificate could not be verified: %w", err)
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe"):
		return fmt.Errorf("connection to the transformation service was lost: %w", err)
	case strings.Contains(msg, "Request has expired") || strings.Contains(msg, "expired"):
		return fmt.Errorf("upload URL expired before the transfer completed: %w", err)
	default:
		return err
	}
}
