package validator

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"transform-orchestrator/core/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Setup errors. All of these are recoverable by prompting the user for a
// different workspace or selection.
var (
	ErrNoOpenProjects          = errors.New("no open workspace folders")
	ErrNoJavaProjectsFound     = errors.New("no Java projects found in workspace")
	ErrNoMavenOrGradleProjects = errors.New("no Maven or Gradle Java projects found in workspace")
)

// buildDescriptors are the recognized build-system markers, checked at the
// project root.
var buildDescriptors = map[string]models.BuildSystem{
	"pom.xml":          models.BuildSystemMaven,
	"build.gradle":     models.BuildSystemGradle,
	"build.gradle.kts": models.BuildSystemGradle,
}

// Validator scans workspace folders for transformable Java projects
type Validator struct {
	probe    JDKProbe
	jdkCache *lru.Cache[string, models.JDKVersion]
}

// JDKProbe detects the JDK version a project was compiled with
type JDKProbe interface {
	DetectJDKVersion(projectPath string) models.JDKVersion
}

// New creates a new validator using the given JDK probe
func New(probe JDKProbe) *Validator {
	cache, _ := lru.New[string, models.JDKVersion](64)
	return &Validator{probe: probe, jdkCache: cache}
}

// Validate produces the subset of workspace folders that are Java projects
// with a recognized build descriptor, annotated with a best-effort detected
// JDK version. Java-file presence is checked before build-descriptor presence
// so the error reported for a non-Java workspace is always
// ErrNoJavaProjectsFound.
func (v *Validator) Validate(folders []string) ([]models.CandidateProject, error) {
	if len(folders) == 0 {
		return nil, ErrNoOpenProjects
	}

	var javaFolders []string
	for _, folder := range folders {
		if containsJavaSource(folder) {
			javaFolders = append(javaFolders, folder)
		}
	}
	if len(javaFolders) == 0 {
		return nil, ErrNoJavaProjectsFound
	}

	var candidates []models.CandidateProject
	for _, folder := range javaFolders {
		if _, ok := detectBuildSystem(folder); !ok {
			continue
		}
		candidates = append(candidates, models.CandidateProject{
			Name:       filepath.Base(folder),
			Path:       folder,
			JDKVersion: v.detectJDK(folder),
		})
	}
	if len(candidates) == 0 {
		return nil, ErrNoMavenOrGradleProjects
	}

	return candidates, nil
}

// BuildSystemFor returns the build system of a validated project path
func BuildSystemFor(projectPath string) (models.BuildSystem, bool) {
	return detectBuildSystem(projectPath)
}

func (v *Validator) detectJDK(folder string) models.JDKVersion {
	if cached, ok := v.jdkCache.Get(folder); ok {
		return cached
	}
	version := models.JDKUnsupported
	if v.probe != nil {
		version = v.probe.DetectJDKVersion(folder)
	}
	v.jdkCache.Add(folder, version)
	return version
}

func detectBuildSystem(folder string) (models.BuildSystem, bool) {
	for name, system := range buildDescriptors {
		if _, err := os.Stat(filepath.Join(folder, name)); err == nil {
			return system, true
		}
	}
	return "", false
}

// containsJavaSource walks the folder looking for any .java file
func containsJavaSource(folder string) bool {
	found := false
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries don't block detection
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".java") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to scan folder %s: %v", folder, err)
	}
	return found
}
