package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transform-orchestrator/core/models"
)

func TestStartTransformationReturnsJobAndRequestID(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transformations" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		w.Header().Set("x-amzn-requestid", "req-42")
		json.NewEncoder(w).Encode(map[string]string{"transformationJobId": "job-7"})
	}))
	defer server.Close()

	c := New(server.URL, "secret", "")
	jobID, requestID, err := c.StartTransformation(context.Background(), "upload-1", models.JDK8, models.JDK17)
	if err != nil {
		t.Fatalf("StartTransformation failed: %v", err)
	}
	if jobID != "job-7" {
		t.Errorf("expected job-7, got %q", jobID)
	}
	if requestID != "req-42" {
		t.Errorf("expected req-42, got %q", requestID)
	}

	spec, ok := gotBody["transformationSpec"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected transformationSpec in request, got %v", gotBody)
	}
	if spec["sourceVersion"] != "JDK_8" || spec["targetVersion"] != "JDK_17" {
		t.Errorf("unexpected versions in spec: %v", spec)
	}
}

func TestGetTransformationParsesStateAndRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amzn-requestid", "req-9")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transformationJob": map[string]string{
				"status": "TRANSFORMING",
				"reason": "",
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	state, err := c.GetTransformation(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetTransformation failed: %v", err)
	}
	if state.Status != models.StatusTransforming {
		t.Errorf("expected TRANSFORMING, got %s", state.Status)
	}
	if state.RequestID != "req-9" {
		t.Errorf("expected req-9, got %q", state.RequestID)
	}
}

func TestGetTransformationPlanMapsSteps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transformations/job-1/plan" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"transformationSteps": [{
				"id": "step-1",
				"name": "Upgrade dependencies",
				"status": "IN_PROGRESS",
				"progressUpdates": [{
					"name": "Client build",
					"status": "AWAITING_CLIENT_ACTION",
					"downloadArtifacts": [{
						"downloadArtifactType": "CLIENT_INSTRUCTIONS",
						"downloadArtifactId": "art-5"
					}]
				}]
			}]
		}`))
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	plan, err := c.GetTransformationPlan(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetTransformationPlan failed: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(plan.Steps))
	}
	update := plan.Steps[0].ProgressUpdates[0]
	if update.Status != models.ProgressUpdateAwaitingClientAction {
		t.Errorf("expected AWAITING_CLIENT_ACTION, got %q", update.Status)
	}
	artifact := update.DownloadArtifacts[0]
	if artifact.Type != models.DownloadArtifactClientInstructions || artifact.ID != "art-5" {
		t.Errorf("unexpected artifact: %+v", artifact)
	}
}

func TestBackendErrorSurfacesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("throttled"))
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	_, err := c.GetTransformation(context.Background(), "job-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestChecksumSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.zip")
	content := []byte("archive bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(content)
	want := base64.StdEncoding.EncodeToString(sum[:])

	got, err := ChecksumSHA256(path)
	if err != nil {
		t.Fatalf("ChecksumSHA256 failed: %v", err)
	}
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestUploadArchiveSetsTransferHeaders(t *testing.T) {
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(path, []byte("zip data"), 0o644); err != nil {
		t.Fatal(err)
	}
	checksum, err := ChecksumSHA256(path)
	if err != nil {
		t.Fatal(err)
	}

	c := New("https://backend.invalid", "", "arn:aws:kms:us-east-1:123:key/abc")
	target := &UploadTarget{UploadID: "u1", UploadURL: server.URL}
	if err := c.UploadArchive(context.Background(), target, path, checksum); err != nil {
		t.Fatalf("UploadArchive failed: %v", err)
	}

	if got := headers.Get("x-amz-checksum-sha256"); got != checksum {
		t.Errorf("expected checksum header %q, got %q", checksum, got)
	}
	if got := headers.Get("x-amz-server-side-encryption"); got != "aws:kms" {
		t.Errorf("expected SSE header aws:kms, got %q", got)
	}
	if got := headers.Get("x-amz-server-side-encryption-aws-kms-key-id"); !strings.Contains(got, "key/abc") {
		t.Errorf("expected KMS key header, got %q", got)
	}
	if got := headers.Get("Content-Type"); got != "application/zip" {
		t.Errorf("expected application/zip, got %q", got)
	}
}

func TestUploadArchivePrefersSlotKMSKey(t *testing.T) {
	var kmsHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kmsHeader = r.Header.Get("x-amz-server-side-encryption-aws-kms-key-id")
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(path, []byte("zip data"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New("https://backend.invalid", "", "arn:client-default")
	target := &UploadTarget{UploadURL: server.URL, KMSKeyARN: "arn:from-slot"}
	if err := c.UploadArchive(context.Background(), target, path, "sum"); err != nil {
		t.Fatalf("UploadArchive failed: %v", err)
	}
	if kmsHeader != "arn:from-slot" {
		t.Errorf("expected the slot-provided key, got %q", kmsHeader)
	}
}

func TestUploadArchiveRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "payload.zip")
	if err := os.WriteFile(path, []byte("zip data"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New("https://backend.invalid", "", "")
	err := c.UploadArchive(context.Background(), &UploadTarget{UploadURL: server.URL}, path, "sum")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected a 403 error, got %v", err)
	}
}

func TestDownloadArtifactWritesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transformations/job-1/artifacts/art-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte("artifact bytes"))
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	dest := filepath.Join(t.TempDir(), "artifact.zip")
	if err := c.DownloadArtifact(context.Background(), "job-1", "art-1", dest); err != nil {
		t.Fatalf("DownloadArtifact failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "artifact bytes" {
		t.Errorf("unexpected artifact content: %q", data)
	}
}

func TestResumeTransformationSendsOutcome(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transformations/job-1/resume" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	if err := c.ResumeTransformation(context.Background(), "job-1", ResumeRejected); err != nil {
		t.Fatalf("ResumeTransformation failed: %v", err)
	}
	if gotBody["userActionStatus"] != "REJECTED" {
		t.Errorf("expected REJECTED outcome, got %v", gotBody)
	}
}

func TestHumanizeNetError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"certificate", "x509: certificate signed by unknown authority", "TLS certificate"},
		{"reset", "read tcp: connection reset by peer", "connection to the transformation service was lost"},
		{"refused", "dial tcp: connection refused", "connection to the transformation service was lost"},
		{"expired", "Request has expired", "upload URL expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := humanizeNetError(errTest(tt.msg))
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, got.Error())
			}
		})
	}
}

func TestHumanizeNetErrorPassthrough(t *testing.T) {
	err := errTest("some other failure")
	if got := humanizeNetError(err); got != err {
		t.Errorf("expected unrecognized errors untouched, got %v", got)
	}
	if got := humanizeNetError(nil); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
