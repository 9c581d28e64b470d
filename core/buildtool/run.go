package buildtool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// maxCaptureBytes bounds how much combined subprocess output is retained.
// Output beyond the capacity is dropped and the result flagged as truncated.
const maxCaptureBytes = 1 << 20

// FailureReason classifies why a subprocess invocation failed
type FailureReason string

const (
	ReasonExecutionError FailureReason = "execution_error" // started, exited non-zero
	ReasonSpawnError     FailureReason = "spawn_error"     // could not be started at all
)

// RunResult captures a finished subprocess invocation
type RunResult struct {
	ExitCode  int
	Output    string // combined stdout+stderr
	Truncated bool   // output exceeded the capture capacity
	Reason    FailureReason
}

// CommandRunner executes a build-tool subprocess in a working directory with
// an optional extra environment. Implementations must capture combined output
// and never return an error for a mere non-zero exit; that is reported through
// RunResult.
type CommandRunner interface {
	Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (*RunResult, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes the command, capturing combined output up to the capacity.
// A spawn failure (binary missing, permission denied) is returned as an error
// with Reason set; a non-zero exit comes back in the result only.
func (ExecRunner) Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)

	buf := &cappedBuffer{cap: maxCaptureBytes}
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Start(); err != nil {
		return &RunResult{ExitCode: -1, Reason: ReasonSpawnError},
			fmt.Errorf("failed to spawn %s: %w", name, err)
	}

	err := cmd.Wait()
	result := &RunResult{
		ExitCode:  cmd.ProcessState.ExitCode(),
		Output:    buf.String(),
		Truncated: buf.truncated,
	}
	if err != nil {
		result.Reason = ReasonExecutionError
	}
	return result, nil
}

// cappedBuffer retains at most cap bytes and records whether writes overflowed
type cappedBuffer struct {
	b         strings.Builder
	cap       int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	remaining := c.cap - c.b.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		c.b.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.b.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string { return c.b.String() }

// javaHomeEnv builds the subprocess environment for an optional JAVA_HOME
// override.
func javaHomeEnv(javaHome string) []string {
	if javaHome == "" {
		return nil
	}
	return []string{"JAVA_HOME=" + javaHome}
}
