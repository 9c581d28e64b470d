package packager

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"transform-orchestrator/core/cancel"
)

// ErrArchiveTooLarge means the packaged payload exceeded the size ceiling.
// Callers show a dedicated message and terminate the conversation instead of
// retrying, so this must stay distinguishable from generic I/O failures.
var ErrArchiveTooLarge = errors.New("packaged archive exceeds the maximum payload size")

// excludedSuffixes are never packaged: lockfiles, repository metadata and
// native libraries have no value to the transformation and inflate payloads.
var excludedSuffixes = []string{
	".lock",
	".dll",
	".so",
	".dylib",
	".jnilib",
	".DS_Store",
}

// excludedDirs are skipped in every walk
var excludedDirs = map[string]bool{
	".git": true,
	".svn": true,
}

// Options controls one packaging operation
type Options struct {
	ProjectPath     string
	DependenciesDir string             // optional materialized dependency snapshot
	BuildLogPath    string             // omitted when packaging for a HIL round
	BuildSystem     string             // manifest buildTool value
	HILCapabilities []string           // advertised client capabilities
	SkipDir         func(string) bool  // source-tree-only directory skip predicate
	MaxBytes        int64              // archive size ceiling
	OutPath         string             // destination archive path
}

// Packager assembles payload archives
type Packager struct{}

// New creates a new packager
func New() *Packager { return &Packager{} }

// CreatePayload walks the project tree into sources/, the dependency snapshot
// into dependencies/, writes manifest.json and the build log, and enforces the
// size ceiling. The token is consulted before starting, after the source walk,
// after the dependency walk and after the manifest write. No partial archive
// survives a failure.
func (p *Packager) CreatePayload(token *cancel.Token, opts Options) (path string, err error) {
	if err := token.Check(); err != nil {
		return "", err
	}

	out, err := os.Create(opts.OutPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)
	defer func() {
		if err != nil {
			zw.Close()
			out.Close()
			os.Remove(opts.OutPath)
		}
	}()

	if err = addTree(zw, opts.ProjectPath, "sources", opts.SkipDir); err != nil {
		return "", fmt.Errorf("failed to package sources: %w", err)
	}
	if err = token.Check(); err != nil {
		return "", err
	}

	manifest := ZipManifest{
		BuildTool:       opts.BuildSystem,
		HILCapabilities: opts.HILCapabilities,
	}
	if opts.DependenciesDir != "" {
		// The dependency tree is copied wholesale; only source walks honor
		// the skip predicate.
		if err = addTree(zw, opts.DependenciesDir, "dependencies", nil); err != nil {
			return "", fmt.Errorf("failed to package dependencies: %w", err)
		}
		manifest.DependenciesRoot = "dependencies"
	}
	if err = token.Check(); err != nil {
		return "", err
	}

	if err = addJSONEntry(zw, ManifestFileName, manifest); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err = token.Check(); err != nil {
		return "", err
	}

	if opts.BuildLogPath != "" {
		if err = addFileEntry(zw, opts.BuildLogPath, filepath.Base(opts.BuildLogPath)); err != nil {
			return "", fmt.Errorf("failed to write build log: %w", err)
		}
	}

	if err = zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err = out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	info, statErr := os.Stat(opts.OutPath)
	if statErr != nil {
		err = fmt.Errorf("failed to stat archive: %w", statErr)
		return "", err
	}
	if opts.MaxBytes > 0 && info.Size() > opts.MaxBytes {
		os.Remove(opts.OutPath)
		return "", ErrArchiveTooLarge
	}

	return opts.OutPath, nil
}

// CreateClientBuildResult packages a HIL verification build's exit code and
// captured log for upload as a client-build-result artifact.
func (p *Packager) CreateClientBuildResult(outPath, buildLogPath string, exitCode int) (string, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	const logName = "build-output.log"
	if err := addFileEntry(zw, buildLogPath, logName); err != nil {
		zw.Close()
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("failed to write build output: %w", err)
	}

	result := ClientBuildResult{
		Capability:         CapabilityClientSideBuild,
		ExitCode:           exitCode,
		CommandLogFileName: logName,
	}
	if err := addJSONEntry(zw, ManifestFileName, result); err != nil {
		zw.Close()
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	return outPath, out.Close()
}

// ParseClientInstructions extracts a client-instructions archive into destDir
// and returns its manifest plus the absolute patch file path.
func ParseClientInstructions(archivePath, destDir string) (*ClientInstructions, string, error) {
	if err := ExtractArchive(archivePath, destDir); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(filepath.Join(destDir, ManifestFileName))
	if err != nil {
		return nil, "", fmt.Errorf("client instructions missing manifest: %w", err)
	}
	var inst ClientInstructions
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, "", fmt.Errorf("failed to parse client instructions manifest: %w", err)
	}
	if inst.DiffFileName == "" {
		return nil, "", fmt.Errorf("client instructions manifest names no patch file")
	}

	patchPath := filepath.Join(destDir, inst.DiffFileName)
	if _, err := os.Stat(patchPath); err != nil {
		return nil, "", fmt.Errorf("client instructions patch file missing: %w", err)
	}
	return &inst, patchPath, nil
}

// WriteSingleEntryArchive creates a zip holding exactly one named entry
func WriteSingleEntryArchive(outPath, entryName string, data []byte) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create(entryName)
	if err == nil {
		_, err = w.Write(data)
	}
	if closeErr := zw.Close(); err == nil {
		err = closeErr
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outPath)
	}
	return err
}

// ExtractArchive unpacks a zip archive into destDir, rejecting entries that
// escape it.
func ExtractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(dst, rc); err != nil {
			rc.Close()
			dst.Close()
			return err
		}
		rc.Close()
		if err := dst.Close(); err != nil {
			return err
		}
	}
	return nil
}

// addTree walks root and writes every non-excluded file under prefix/
func addTree(zw *zip.Writer, root, prefix string, skipDir func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Skipping unreadable entry %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if skipDir != nil && path != root && skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFileEntry(zw, path, prefix+"/"+filepath.ToSlash(rel))
	})
}

func excluded(name string) bool {
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func addFileEntry(zw *zip.Writer, srcPath, entryName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(entryName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func addJSONEntry(zw *zip.Writer, entryName string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w, err := zw.Create(entryName)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
