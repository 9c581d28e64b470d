package validator

import (
	"io/fs"
	"log"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"transform-orchestrator/core/models"
)

// BytecodeProbe detects a project's JDK version by introspecting a compiled
// class file with javap. Detection is build-tool-agnostic: any .class file
// under the project tree is enough.
type BytecodeProbe struct{}

var majorVersionRe = regexp.MustCompile(`major version:\s*(\d+)`)

// runJavap is injectable in tests.
var runJavap = func(classFile string) (string, error) {
	out, err := exec.Command("javap", "-v", classFile).Output()
	return string(out), err
}

// DetectJDKVersion locates a compiled class file and parses the class-file
// major version out of javap output. Any tool or parse failure yields
// JDKUnsupported rather than an error; detection must never block project
// listing.
func (p *BytecodeProbe) DetectJDKVersion(projectPath string) models.JDKVersion {
	classFile := findClassFile(projectPath)
	if classFile == "" {
		return models.JDKUnsupported
	}

	out, err := runJavap(classFile)
	if err != nil {
		log.Printf("javap failed for %s: %v", classFile, err)
		return models.JDKUnsupported
	}

	m := majorVersionRe.FindStringSubmatch(out)
	if m == nil {
		return models.JDKUnsupported
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return models.JDKUnsupported
	}
	return models.JDKVersionFromClassFileMajor(major)
}

func findClassFile(projectPath string) string {
	var classFile string
	filepath.WalkDir(projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".class") {
			classFile = path
			return filepath.SkipAll
		}
		return nil
	})
	return classFile
}
