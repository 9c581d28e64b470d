package validator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"transform-orchestrator/core/models"
)

// countingProbe records how often detection runs per folder
type countingProbe struct {
	version models.JDKVersion
	calls   int
}

func (p *countingProbe) DetectJDKVersion(projectPath string) models.JDKVersion {
	p.calls++
	return p.version
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestValidateNoFolders(t *testing.T) {
	v := New(nil)
	if _, err := v.Validate(nil); !errors.Is(err, ErrNoOpenProjects) {
		t.Fatalf("expected ErrNoOpenProjects, got %v", err)
	}
}

// A workspace with build files but no Java sources must report the missing
// Java sources, not the missing build descriptor.
func TestValidateReportsMissingJavaBeforeMissingBuildFile(t *testing.T) {
	folder := writeProject(t, map[string]string{
		"pom.xml":       "<project/>",
		"src/index.js":  "console.log('hi')",
		"src/README.md": "docs",
	})
	v := New(nil)
	if _, err := v.Validate([]string{folder}); !errors.Is(err, ErrNoJavaProjectsFound) {
		t.Fatalf("expected ErrNoJavaProjectsFound, got %v", err)
	}
}

func TestValidateReportsMissingBuildDescriptor(t *testing.T) {
	folder := writeProject(t, map[string]string{
		"src/App.java": "class App {}",
	})
	v := New(nil)
	if _, err := v.Validate([]string{folder}); !errors.Is(err, ErrNoMavenOrGradleProjects) {
		t.Fatalf("expected ErrNoMavenOrGradleProjects, got %v", err)
	}
}

func TestValidateRecognizesMavenAndGradle(t *testing.T) {
	maven := writeProject(t, map[string]string{
		"pom.xml":      "<project/>",
		"src/App.java": "class App {}",
	})
	gradle := writeProject(t, map[string]string{
		"build.gradle.kts": "plugins {}",
		"src/App.java":     "class App {}",
	})
	noBuild := writeProject(t, map[string]string{
		"src/App.java": "class App {}",
	})

	probe := &countingProbe{version: models.JDK11}
	v := New(probe)
	candidates, err := v.Validate([]string{maven, gradle, noBuild})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.JDKVersion != models.JDK11 {
			t.Errorf("expected probed JDK_11, got %s", c.JDKVersion)
		}
		if c.Name != filepath.Base(c.Path) {
			t.Errorf("expected name from path base, got %q for %q", c.Name, c.Path)
		}
	}

	if system, ok := BuildSystemFor(maven); !ok || system != models.BuildSystemMaven {
		t.Errorf("expected Maven, got %s %v", system, ok)
	}
	if system, ok := BuildSystemFor(gradle); !ok || system != models.BuildSystemGradle {
		t.Errorf("expected Gradle, got %s %v", system, ok)
	}
}

func TestValidateCachesJDKDetection(t *testing.T) {
	folder := writeProject(t, map[string]string{
		"pom.xml":      "<project/>",
		"src/App.java": "class App {}",
	})
	probe := &countingProbe{version: models.JDK8}
	v := New(probe)

	for i := 0; i < 3; i++ {
		if _, err := v.Validate([]string{folder}); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
	}
	if probe.calls != 1 {
		t.Errorf("expected one probe call with a warm cache, got %d", probe.calls)
	}
}

func TestValidateNilProbeYieldsUnsupported(t *testing.T) {
	folder := writeProject(t, map[string]string{
		"pom.xml":      "<project/>",
		"src/App.java": "class App {}",
	})
	v := New(nil)
	candidates, err := v.Validate([]string{folder})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if candidates[0].JDKVersion != models.JDKUnsupported {
		t.Errorf("expected UNSUPPORTED without a probe, got %s", candidates[0].JDKVersion)
	}
}
