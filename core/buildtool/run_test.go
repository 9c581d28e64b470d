package buildtool

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunnerCapturesOutputAndExitCode(t *testing.T) {
	runner := ExecRunner{}
	res, err := runner.Run(context.Background(), t.TempDir(), nil, "/bin/sh", "-c", "echo hello; exit 3")
	if err != nil {
		t.Fatalf("Run returned error for a non-zero exit: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Errorf("expected captured output, got %q", res.Output)
	}
	if res.Reason != ReasonExecutionError {
		t.Errorf("expected execution_error, got %s", res.Reason)
	}
}

func TestExecRunnerSuccessHasNoFailureReason(t *testing.T) {
	runner := ExecRunner{}
	res, err := runner.Run(context.Background(), t.TempDir(), nil, "/bin/sh", "-c", "true")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 || res.Reason != "" {
		t.Errorf("expected clean result, got exit %d reason %q", res.ExitCode, res.Reason)
	}
}

func TestExecRunnerSpawnFailure(t *testing.T) {
	runner := ExecRunner{}
	res, err := runner.Run(context.Background(), t.TempDir(), nil, "definitely-not-a-real-binary")
	if err == nil {
		t.Fatal("expected a spawn error")
	}
	if res.Reason != ReasonSpawnError {
		t.Errorf("expected spawn_error, got %s", res.Reason)
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", res.ExitCode)
	}
}

func TestExecRunnerPassesExtraEnv(t *testing.T) {
	runner := ExecRunner{}
	res, err := runner.Run(context.Background(), t.TempDir(), []string{"JAVA_HOME=/opt/jdk17"},
		"/bin/sh", "-c", "echo $JAVA_HOME")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Output, "/opt/jdk17") {
		t.Errorf("expected JAVA_HOME in environment, got %q", res.Output)
	}
}

func TestCappedBufferTruncates(t *testing.T) {
	buf := &cappedBuffer{cap: 8}
	n, err := buf.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if buf.String() != "01234567" {
		t.Errorf("expected capped content, got %q", buf.String())
	}
	if !buf.truncated {
		t.Error("expected truncated flag")
	}
	// Further writes are dropped but still reported as consumed.
	if n, _ := buf.Write([]byte("abc")); n != 3 {
		t.Errorf("expected overflow write consumed, got %d", n)
	}
	if buf.String() != "01234567" {
		t.Errorf("expected content unchanged after overflow, got %q", buf.String())
	}
}

func TestCappedBufferWithinCapacity(t *testing.T) {
	buf := &cappedBuffer{cap: 64}
	if _, err := buf.Write([]byte("short")); err != nil {
		t.Fatal(err)
	}
	if buf.truncated {
		t.Error("unexpected truncation")
	}
	if buf.String() != "short" {
		t.Errorf("got %q", buf.String())
	}
}

func TestRunBuildCommandRejectsEmpty(t *testing.T) {
	if _, err := RunBuildCommand(context.Background(), ExecRunner{}, t.TempDir(), "   ", ""); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestRunBuildCommandSplitsFields(t *testing.T) {
	runner := &recordingRunner{result: &RunResult{ExitCode: 0}}
	if _, err := RunBuildCommand(context.Background(), runner, "/tmp", "mvn clean verify", "/opt/jdk"); err != nil {
		t.Fatalf("RunBuildCommand failed: %v", err)
	}
	if runner.name != "mvn" || len(runner.args) != 2 || runner.args[0] != "clean" || runner.args[1] != "verify" {
		t.Errorf("unexpected invocation: %s %v", runner.name, runner.args)
	}
	if len(runner.env) != 1 || runner.env[0] != "JAVA_HOME=/opt/jdk" {
		t.Errorf("expected JAVA_HOME env, got %v", runner.env)
	}
}

func TestJavaHomeEnvEmpty(t *testing.T) {
	if env := javaHomeEnv(""); env != nil {
		t.Errorf("expected nil env, got %v", env)
	}
}

// recordingRunner records a single invocation and returns a fixed result
type recordingRunner struct {
	name   string
	args   []string
	env    []string
	result *RunResult
}

func (r *recordingRunner) Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (*RunResult, error) {
	r.name = name
	r.args = args
	r.env = extraEnv
	return r.result, nil
}
