package packager

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
)

// ManifestFileName is the manifest entry at the root of every payload archive
const ManifestFileName = "manifest.json"

// ZipManifest describes the build system and capabilities of a payload
// archive. Serialized verbatim into the archive as manifest.json.
type ZipManifest struct {
	BuildTool        string   `json:"buildTool"`
	DependenciesRoot string   `json:"dependenciesRoot,omitempty"`
	HILCapabilities  []string `json:"hilCapabilities,omitempty"`
}

// CapabilityClientSideBuild advertises that this client can run
// human-in-the-loop verification builds.
const CapabilityClientSideBuild = "CLIENT_SIDE_BUILD"

// ClientInstructions is the manifest of a backend-delivered client
// instructions artifact: a patch plus the command to verify it with.
type ClientInstructions struct {
	Capability   string `json:"capability"`
	BuildCommand string `json:"build_command"`
	DiffFileName string `json:"diffFileName"`
}

// ClientBuildResult is the manifest of the archive reporting a completed
// client-side verification build back to the backend.
type ClientBuildResult struct {
	Capability         string `json:"capability"`
	ExitCode           int    `json:"exitCode"`
	CommandLogFileName string `json:"commandLogFileName"`
}

// ReadManifest loads the ZipManifest from an opened payload archive
func ReadManifest(r *zip.Reader) (*ZipManifest, error) {
	for _, f := range r.File {
		if f.Name != ManifestFileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest entry: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest entry: %w", err)
		}
		var m ZipManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("archive has no %s", ManifestFileName)
}
