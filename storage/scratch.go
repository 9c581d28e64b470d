package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScratchManager owns the per-job scratch area: dependency snapshots, build
// logs, project snapshots for patch rounds, and downloaded artifacts. Cleanup
// runs unconditionally at job termination.
type ScratchManager struct {
	root string
}

// NewScratchManager creates a manager rooted under baseDir
func NewScratchManager(baseDir string) *ScratchManager {
	return &ScratchManager{root: baseDir}
}

// Workspace is one job's scratch layout
type Workspace struct {
	Root            string
	DependenciesDir string
	LogDir          string
	DownloadDir     string
	SnapshotDir     string
}

// CreateWorkspace allocates a uuid-named scratch workspace
func (m *ScratchManager) CreateWorkspace() (*Workspace, error) {
	root := filepath.Join(m.root, "transform-"+uuid.New().String())
	ws := &Workspace{
		Root:            root,
		DependenciesDir: filepath.Join(root, "dependencies"),
		LogDir:          filepath.Join(root, "logs"),
		DownloadDir:     filepath.Join(root, "downloads"),
		SnapshotDir:     filepath.Join(root, "snapshot"),
	}
	for _, dir := range []string{ws.DependenciesDir, ws.LogDir, ws.DownloadDir, ws.SnapshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch dir: %w", err)
		}
	}
	return ws, nil
}

// Cleanup removes the workspace. Failures are logged, never raised; cleanup
// must not mask the error that ended the job.
func (m *ScratchManager) Cleanup(ws *Workspace) {
	if ws == nil {
		return
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		log.Printf("Failed to clean scratch workspace %s: %v", ws.Root, err)
	}
}

// SnapshotProject copies the project tree into the workspace snapshot dir so
// a human-in-the-loop patch can be applied without touching the original.
func (m *ScratchManager) SnapshotProject(ws *Workspace, projectPath string) (string, error) {
	dest := filepath.Join(ws.SnapshotDir, filepath.Base(projectPath))
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := copyTree(projectPath, dest); err != nil {
		return "", fmt.Errorf("failed to snapshot project: %w", err)
	}
	return dest, nil
}

// ApplyPatch applies a unified diff to the snapshot, preferring git apply and
// falling back to patch(1).
func (m *ScratchManager) ApplyPatch(ctx context.Context, snapshotDir, patchPath string) error {
	cmd := exec.CommandContext(ctx, "git", "apply", "--ignore-whitespace", patchPath)
	cmd.Dir = snapshotDir
	if out, err := cmd.CombinedOutput(); err == nil {
		return nil
	} else {
		log.Printf("git apply failed, falling back to patch: %v: %s", err, strings.TrimSpace(string(out)))
	}

	cmd = exec.CommandContext(ctx, "patch", "-p1", "-i", patchPath)
	cmd.Dir = snapshotDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to apply patch: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// copyTree copies src into dest, skipping version-control metadata
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
