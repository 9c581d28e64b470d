package buildtool

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// MavenDriver materializes dependencies and builds a Maven project
type MavenDriver struct {
	runner CommandRunner
}

// NewMavenDriver creates a new Maven driver
func NewMavenDriver(runner CommandRunner) *MavenDriver {
	return &MavenDriver{runner: runner}
}

// BuildOutcome is the result of a local build run
type BuildOutcome struct {
	DependenciesDir string // populated dependency snapshot, empty if copy failed
	LogPath         string // combined build log on disk
	ExitCode        int
}

// MaterializeAndBuild copies the project's dependencies into depsDir and then
// runs clean install. The copy-dependencies step is non-fatal: a failure is
// logged and the pipeline proceeds without a dependency snapshot. The install
// step is fatal and surfaces the build log path for the user.
func (d *MavenDriver) MaterializeAndBuild(ctx context.Context, projectPath, depsDir, logDir, javaHome string) (*BuildOutcome, error) {
	env := javaHomeEnv(javaHome)
	outcome := &BuildOutcome{}

	copyRes, err := d.runner.Run(ctx, projectPath, env, mavenExecutable(projectPath),
		"dependency:copy-dependencies",
		"-DoutputDirectory="+depsDir,
		"-Dmdep.useRepositoryLayout=true",
		"-Dmdep.copyPom=true",
		"-Dmdep.addParentPoms=true",
		"-q",
	)
	if err != nil || copyRes.ExitCode != 0 {
		// Tolerate a missing dependency snapshot; never tolerate a failed install.
		log.Printf("Maven copy-dependencies failed for %s (exit %d): %v", projectPath, exitCodeOf(copyRes), err)
	} else {
		outcome.DependenciesDir = depsDir
	}

	installRes, err := d.runner.Run(ctx, projectPath, env, mavenExecutable(projectPath),
		"clean", "install", "-DskipTests", "-q")
	if err != nil {
		return nil, fmt.Errorf("maven install could not start: %w", err)
	}

	logPath, logErr := writeBuildLog(logDir, "maven-build.log", installRes)
	if logErr != nil {
		log.Printf("Failed to write build log: %v", logErr)
	}
	outcome.LogPath = logPath
	outcome.ExitCode = installRes.ExitCode

	if installRes.ExitCode != 0 {
		return outcome, fmt.Errorf("maven install failed with exit code %d (%s)", installRes.ExitCode, installRes.Reason)
	}
	return outcome, nil
}

// mavenExecutable prefers the project's wrapper over a global mvn
func mavenExecutable(projectPath string) string {
	wrapper := filepath.Join(projectPath, "mvnw")
	if _, err := os.Stat(wrapper); err == nil {
		return wrapper
	}
	return "mvn"
}

func writeBuildLog(logDir, name string, res *RunResult) (string, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(logDir, name)
	content := res.Output
	if res.Truncated {
		content += "\n[output truncated]\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func exitCodeOf(res *RunResult) int {
	if res == nil {
		return -1
	}
	return res.ExitCode
}
