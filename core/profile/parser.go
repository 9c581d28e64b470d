package profile

import (
	"fmt"
	"os"

	"transform-orchestrator/core/models"

	"gopkg.in/yaml.v3"
)

// TransformProfile represents the YAML transformation profile
type TransformProfile struct {
	Transform TransformSection `yaml:"transform"`
}

// TransformSection represents the transform section of the profile
type TransformSection struct {
	SourceJDK   string           `yaml:"source_jdk"`
	TargetJDK   string           `yaml:"target_jdk"`
	JavaHome    string           `yaml:"java_home,omitempty"`
	Packaging   PackagingSection `yaml:"packaging"`
	Verify      VerifySection    `yaml:"verify"`
	BuildCmd    string           `yaml:"build_command,omitempty"`
	ProjectPath string           `yaml:"project_path,omitempty"`
}

// PackagingSection represents archive packaging options
type PackagingSection struct {
	SkipDirs []string `yaml:"skip_dirs,omitempty"`
}

// VerifySection controls the human-in-the-loop client-side build rounds
type VerifySection struct {
	Interactive bool `yaml:"interactive"`
}

// Profile is the parsed, defaulted transformation profile consumed by the
// orchestrator.
type Profile struct {
	SourceJDK   models.JDKVersion
	TargetJDK   models.JDKVersion
	JavaHome    string
	SkipDirs    []string
	Interactive bool
	BuildCmd    string
	ProjectPath string
}

var jdkNames = map[string]models.JDKVersion{
	"8":      models.JDK8,
	"JDK_8":  models.JDK8,
	"11":     models.JDK11,
	"JDK_11": models.JDK11,
	"17":     models.JDK17,
	"JDK_17": models.JDK17,
	"21":     models.JDK21,
	"JDK_21": models.JDK21,
}

// ParseProfile parses a YAML transformation profile into a Profile
func ParseProfile(profileYAML string) (*Profile, error) {
	var spec TransformProfile
	if err := yaml.Unmarshal([]byte(profileYAML), &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p := &Profile{
		JavaHome:    spec.Transform.JavaHome,
		SkipDirs:    spec.Transform.Packaging.SkipDirs,
		Interactive: spec.Transform.Verify.Interactive,
		BuildCmd:    spec.Transform.BuildCmd,
		ProjectPath: spec.Transform.ProjectPath,
	}

	source, ok := jdkNames[spec.Transform.SourceJDK]
	if !ok {
		return nil, fmt.Errorf("unsupported source JDK version: %q", spec.Transform.SourceJDK)
	}
	p.SourceJDK = source

	// Default target to the newest supported LTS
	if spec.Transform.TargetJDK == "" {
		p.TargetJDK = models.JDK17
	} else {
		target, ok := jdkNames[spec.Transform.TargetJDK]
		if !ok {
			return nil, fmt.Errorf("unsupported target JDK version: %q", spec.Transform.TargetJDK)
		}
		p.TargetJDK = target
	}

	if p.TargetJDK != models.JDK17 && p.TargetJDK != models.JDK21 {
		return nil, fmt.Errorf("target JDK must be 17 or 21, got %s", p.TargetJDK)
	}

	return p, nil
}

// LoadProfile reads and parses a profile file from disk
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(string(data))
}
