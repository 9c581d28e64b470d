package buildtool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// ErrGradleNotFound means no working Gradle interpreter could be located.
// Distinct from a Gradle invocation that ran and failed.
var ErrGradleNotFound = errors.New("no working Gradle executable found (tried gradlew, gradle)")

// GradleDriver materializes dependencies for a Gradle project using generated
// init scripts, creating a wrapper first when the project has none.
type GradleDriver struct {
	runner CommandRunner
}

// NewGradleDriver creates a new Gradle driver
func NewGradleDriver(runner CommandRunner) *GradleDriver {
	return &GradleDriver{runner: runner}
}

// copyDepsInitScript resolves every resolvable configuration and copies the
// resulting artifacts plus buildscript dependencies into the output directory.
// Individual configuration failures are tolerated; the task only reports
// complete failure through its final marker line.
const copyDepsInitScript = `allprojects { project ->
    task copyTransformDeps {
        doLast {
            def outDir = new File(project.findProperty('transformDepsDir'))
            outDir.mkdirs()
            def copied = 0
            (project.configurations + project.buildscript.configurations).each { cfg ->
                if (!cfg.canBeResolved) { return }
                try {
                    cfg.resolvedConfiguration.lenientConfiguration.artifacts.each { art ->
                        def id = art.moduleVersion.id
                        def dest = new File(outDir, "${id.group.replace('.', '/')}/${id.name}/${id.version}")
                        dest.mkdirs()
                        java.nio.file.Files.copy(art.file.toPath(),
                            new File(dest, art.file.name).toPath(),
                            java.nio.file.StandardCopyOption.REPLACE_EXISTING)
                        copied++
                    }
                } catch (Exception e) {
                    println "Skipping configuration ${cfg.name}: ${e.message}"
                }
            }
            println "transform-deps-copied: ${copied}"
        }
    }
}
`

// MaterializeAndBuild ensures a Gradle interpreter, copies dependencies into
// depsDir via an init script, then compiles the project. Like the Maven path,
// dependency-copy failure is logged and tolerated; a failed compile is fatal.
func (d *GradleDriver) MaterializeAndBuild(ctx context.Context, projectPath, depsDir, logDir, javaHome string) (*BuildOutcome, error) {
	env := javaHomeEnv(javaHome)
	outcome := &BuildOutcome{}

	gradle, err := d.locateInterpreter(ctx, projectPath, env)
	if err != nil {
		return nil, err
	}

	initScript := filepath.Join(logDir, "copy-deps-init.gradle")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	if err := os.WriteFile(initScript, []byte(copyDepsInitScript), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write init script: %w", err)
	}

	copyRes, err := d.runner.Run(ctx, projectPath, env, gradle,
		"--init-script", initScript,
		"-PtransformDepsDir="+depsDir,
		"copyTransformDeps",
	)
	if err != nil || copyRes.ExitCode != 0 {
		log.Printf("Gradle dependency copy failed for %s (exit %d): %v", projectPath, exitCodeOf(copyRes), err)
	} else {
		outcome.DependenciesDir = depsDir
	}

	buildRes, err := d.runner.Run(ctx, projectPath, env, gradle, "compileJava", "-x", "test")
	if err != nil {
		return nil, fmt.Errorf("gradle build could not start: %w", err)
	}

	logPath, logErr := writeBuildLog(logDir, "gradle-build.log", buildRes)
	if logErr != nil {
		log.Printf("Failed to write build log: %v", logErr)
	}
	outcome.LogPath = logPath
	outcome.ExitCode = buildRes.ExitCode

	if buildRes.ExitCode != 0 {
		return outcome, fmt.Errorf("gradle build failed with exit code %d (%s)", buildRes.ExitCode, buildRes.Reason)
	}
	return outcome, nil
}

// gradleCandidates is the fixed probe order for a working interpreter
var gradleCandidates = []string{"./gradlew", "gradle"}

// locateInterpreter probes the fixed candidate list, generating a wrapper with
// the system Gradle when the project ships none.
func (d *GradleDriver) locateInterpreter(ctx context.Context, projectPath string, env []string) (string, error) {
	for _, candidate := range gradleCandidates {
		res, err := d.runner.Run(ctx, projectPath, env, candidate, "--version")
		if err == nil && res.ExitCode == 0 {
			if candidate == "gradle" {
				// Prefer a project-local wrapper so later invocations pin the
				// Gradle version the project expects.
				if wrapper := d.ensureWrapper(ctx, projectPath, env); wrapper != "" {
					return wrapper, nil
				}
			}
			return candidate, nil
		}
	}
	return "", ErrGradleNotFound
}

func (d *GradleDriver) ensureWrapper(ctx context.Context, projectPath string, env []string) string {
	if _, err := os.Stat(filepath.Join(projectPath, "gradlew")); err == nil {
		return "./gradlew"
	}
	res, err := d.runner.Run(ctx, projectPath, env, "gradle", "wrapper")
	if err != nil || res.ExitCode != 0 {
		log.Printf("Gradle wrapper generation failed for %s: %v", projectPath, err)
		return ""
	}
	return "./gradlew"
}
