package profile

import (
	"os"
	"path/filepath"
	"testing"

	"transform-orchestrator/core/models"
)

const fullProfile = `
transform:
  source_jdk: "8"
  target_jdk: "21"
  java_home: /opt/jdk8
  project_path: /work/service
  build_command: mvn verify
  packaging:
    skip_dirs:
      - target
      - node_modules
  verify:
    interactive: true
`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(fullProfile)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if p.SourceJDK != models.JDK8 {
		t.Errorf("expected JDK_8 source, got %s", p.SourceJDK)
	}
	if p.TargetJDK != models.JDK21 {
		t.Errorf("expected JDK_21 target, got %s", p.TargetJDK)
	}
	if p.JavaHome != "/opt/jdk8" {
		t.Errorf("unexpected java home: %q", p.JavaHome)
	}
	if p.ProjectPath != "/work/service" {
		t.Errorf("unexpected project path: %q", p.ProjectPath)
	}
	if p.BuildCmd != "mvn verify" {
		t.Errorf("unexpected build command: %q", p.BuildCmd)
	}
	if len(p.SkipDirs) != 2 || p.SkipDirs[0] != "target" {
		t.Errorf("unexpected skip dirs: %v", p.SkipDirs)
	}
	if !p.Interactive {
		t.Error("expected interactive verification")
	}
}

func TestParseProfileDefaultsTarget(t *testing.T) {
	p, err := ParseProfile("transform:\n  source_jdk: \"11\"\n")
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if p.TargetJDK != models.JDK17 {
		t.Errorf("expected default target JDK_17, got %s", p.TargetJDK)
	}
}

func TestParseProfileAcceptsCanonicalNames(t *testing.T) {
	p, err := ParseProfile("transform:\n  source_jdk: JDK_11\n  target_jdk: JDK_17\n")
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if p.SourceJDK != models.JDK11 || p.TargetJDK != models.JDK17 {
		t.Errorf("unexpected versions: %s -> %s", p.SourceJDK, p.TargetJDK)
	}
}

func TestParseProfileRejectsUnknownSource(t *testing.T) {
	if _, err := ParseProfile("transform:\n  source_jdk: \"7\"\n"); err == nil {
		t.Fatal("expected an error for an unsupported source JDK")
	}
}

func TestParseProfileRejectsNonLTSTarget(t *testing.T) {
	if _, err := ParseProfile("transform:\n  source_jdk: \"8\"\n  target_jdk: \"11\"\n"); err == nil {
		t.Fatal("expected an error for a target below 17")
	}
}

func TestParseProfileRejectsInvalidYAML(t *testing.T) {
	if _, err := ParseProfile("transform: [unclosed"); err == nil {
		t.Fatal("expected a YAML parse error")
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transform.yaml")
	if err := os.WriteFile(path, []byte(fullProfile), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.SourceJDK != models.JDK8 {
		t.Errorf("expected JDK_8, got %s", p.SourceJDK)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing profile")
	}
}
