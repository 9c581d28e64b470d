package buildtool

import (
	"context"
	"fmt"
	"strings"

	"transform-orchestrator/core/models"
)

// Driver runs a local dependency-materializing build for one build system
type Driver interface {
	MaterializeAndBuild(ctx context.Context, projectPath, depsDir, logDir, javaHome string) (*BuildOutcome, error)
}

// ForBuildSystem returns the driver for the detected build system
func ForBuildSystem(system models.BuildSystem, runner CommandRunner) (Driver, error) {
	switch system {
	case models.BuildSystemMaven:
		return NewMavenDriver(runner), nil
	case models.BuildSystemGradle:
		return NewGradleDriver(runner), nil
	default:
		return nil, fmt.Errorf("unsupported build system: %s", system)
	}
}

// RunBuildCommand executes an arbitrary build command line (as delivered in
// client instructions during a human-in-the-loop round) in dir, returning the
// captured result. The command is split on whitespace; instruction manifests
// carry simple invocations only.
func RunBuildCommand(ctx context.Context, runner CommandRunner, dir, command, javaHome string) (*RunResult, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty build command")
	}
	return runner.Run(ctx, dir, javaHomeEnv(javaHome), fields[0], fields[1:]...)
}
