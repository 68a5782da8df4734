package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/rotisserie/eris"
)

// BuildAndroidAAR builds the Adjust Android SDK core from its submodule
// with Gradle and copies the AAR into the Android binding.
func (e *Engine) BuildAndroidAAR(ctx context.Context, cfg project.Configuration) (*report.RunResult, error) {
	if cfg == "" {
		cfg = project.Debug
	}
	rec := e.begin(report.Libs, "android", nil, cfg)
	return rec.finish(e.buildAndroidAAR(ctx, rec, cfg))
}

func (e *Engine) buildAndroidAAR(ctx context.Context, rec *recorder, cfg project.Configuration) error {
	gradlew, err := e.prepareAndroidBuild()
	if err != nil {
		return err
	}

	e.say("Building Android SDK core AAR (%s)", cfg)
	argv := []string{gradlew, ":sdk-core:adjustCoreAar" + string(cfg), "--no-daemon"}
	if err := rec.exec(ctx, "Gradle "+argv[1], runner.Invocation{Argv: argv, Dir: project.AndroidSubmodule}); err != nil {
		return err
	}

	start := time.Now()
	candidates := e.Layout.AARCandidates(cfg)
	produced := ""
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			produced = c
			break
		}
	}
	if produced == "" {
		err := eris.Errorf("failed to locate built AAR. Looked for:\n  %s", strings.Join(candidates, "\n  "))
		return rec.note("Locate AAR", start, err)
	}

	dest := e.Layout.AARDestination()
	if err := rec.note("Copy "+e.Layout.Rel(produced), start, copyFile(produced, dest)); err != nil {
		return err
	}
	fmt.Fprintf(e.out(), "Copied AAR to %s\n", dest)
	return nil
}

// prepareAndroidBuild checks the submodule is checked out, creates the
// binding's libs directory, and makes the Gradle wrapper executable.
func (e *Engine) prepareAndroidBuild() (string, error) {
	sub := e.Layout.Abs(project.AndroidSubmodule)
	if info, err := os.Stat(sub); err != nil || !info.IsDir() {
		return "", eris.Errorf("Android submodule directory not found: %s (run: git submodule update --init --recursive)", sub)
	}
	gradlew := e.Layout.Gradlew()
	info, err := os.Stat(gradlew)
	if err != nil || info.IsDir() {
		return "", NewErrToolUnavailable("gradlew")
	}
	if err := os.MkdirAll(e.Layout.Abs(project.AndroidBindingLibs), 0o755); err != nil {
		return "", eris.Wrap(err, "creating binding libs directory")
	}
	if mode := info.Mode(); mode&0o111 == 0 {
		if err := os.Chmod(gradlew, mode|0o111); err != nil {
			e.Log.Warn().Err(err).Str("path", gradlew).Msg("could not make Gradle wrapper executable")
		}
	}
	return gradlew, nil
}
