// Package workflow provides the operations behind mauidev: building and
// cleaning the MAUI projects, publishing NuGet packages, running the apps
// on a device, and building the native Android library. It is consumed by
// both the MCP server and the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/google/uuid"
	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// CommandRunner executes commands within the repository.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, inv runner.Invocation) (*runner.Result, error)
	Try(ctx context.Context, inv runner.Invocation) (int, error)
	Output(ctx context.Context, argv ...string) ([]byte, error)
	Spawn(argv ...string) error
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Layout project.Layout
	Store  report.Store // nil disables run reports
	Log    zerolog.Logger
	Out    io.Writer // progress lines; os.Stdout when nil
	Plain  bool      // no colour in progress lines

	// Toolchain pins the target framework of builds. Empty leaves the
	// choice to the project files.
	Toolchain project.Toolchain

	// LookPath finds executables; exec.LookPath when nil.
	LookPath func(name string) (string, error)
}

// UsageError reports a request the operation does not understand. The CLI
// answers it with help text.
type UsageError struct {
	Msg string
}

func (e UsageError) Error() string { return e.Msg }

// ResolveTool returns the program to invoke for a named tool. A tool on
// PATH is returned by name; otherwise the fallback locations are probed
// and the first existing one is returned as an absolute path.
func (e *Engine) ResolveTool(name string, fallbacks ...string) (string, error) {
	if _, err := e.lookPath(name); err == nil {
		return name, nil
	}
	for _, p := range fallbacks {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", NewErrToolUnavailable(name)
}

// HasTool reports whether name is on PATH.
func (e *Engine) HasTool(name string) bool {
	_, err := e.lookPath(name)
	return err == nil
}

func (e *Engine) lookPath(name string) (string, error) {
	if e.LookPath != nil {
		return e.LookPath(name)
	}
	return exec.LookPath(name)
}

// toolInfo holds install metadata for a known tool.
type toolInfo struct {
	Install string // command or URL
	Note    string
}

// knownTools maps tool binary names to their install metadata.
var knownTools = map[string]toolInfo{
	"dotnet":   {Install: "https://dotnet.microsoft.com/download", Note: "then run: dotnet workload install maui"},
	"nuget":    {Install: "brew install nuget", Note: "or download nuget.exe from https://www.nuget.org/downloads"},
	"xcrun":    {Install: "xcode-select --install"},
	"emulator": {Install: "Android Studio > SDK Manager > Android Emulator", Note: "put $ANDROID_HOME/emulator on PATH or set android.emulator in " + config.FileName},
	"trash":    {Install: "brew install trash"},
	"gradlew":  {Install: "git submodule update --init --recursive"},
}

// ErrToolUnavailable is returned when a required tool is not installed.
// It includes actionable install instructions when the tool is known.
type ErrToolUnavailable struct {
	Name string
	Info *toolInfo
}

func NewErrToolUnavailable(name string) ErrToolUnavailable {
	e := ErrToolUnavailable{Name: name}
	if info, ok := knownTools[name]; ok {
		e.Info = &info
	}
	return e
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)
	if e.Info == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "\nInstall: %s", e.Info.Install)
	if e.Info.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", e.Info.Note)
	}
	return b.String()
}

func (e *Engine) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}

// say prints an operator-facing progress line.
func (e *Engine) say(format string, args ...any) {
	colors := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: e.Plain,
		Reset:   true,
	}
	fmt.Fprintln(e.out(), colors.Color("[bold][green]> [reset][bold]")+fmt.Sprintf(format, args...)+colors.Color("[reset]"))
}

// recorder accumulates the steps of one operation into a run report.
type recorder struct {
	e  *Engine
	rr *report.RunResult
}

func (e *Engine) begin(kind report.Kind, command string, targets []string, cfg project.Configuration) *recorder {
	rr := &report.RunResult{
		ID:            uuid.New().String(),
		Kind:          kind,
		Command:       command,
		Targets:       targets,
		Configuration: string(cfg),
		StartedAt:     time.Now(),
	}
	e.Log.Debug().Str("run", rr.ID).Str("kind", string(kind)).Str("command", command).Msg("operation started")
	return &recorder{e: e, rr: rr}
}

// exec runs inv with retry as a step of the run. Runner errors are
// returned unchanged so callers can inspect them with errors.As.
func (r *recorder) exec(ctx context.Context, title string, inv runner.Invocation) error {
	res, err := r.e.Runner.Run(ctx, inv)
	step := report.Step{Title: title, Argv: inv.Argv, Status: report.Passed}
	if res != nil {
		step.ExitCode = res.ExitCode
		step.Attempts = res.Attempts
		step.Pattern = res.Pattern
		step.Duration = res.Duration
		step.Transcript = res.Transcript
		step.Truncated = res.Truncated
	}
	if err != nil {
		step.Status = statusOf(err)
		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) {
			step.ExitCode = exitErr.Code
			step.Attempts = exitErr.Attempts
		}
	}
	r.rr.Steps = append(r.rr.Steps, step)
	return err
}

// try runs inv once and tolerates a non-zero exit.
func (r *recorder) try(ctx context.Context, title string, inv runner.Invocation) (int, error) {
	start := time.Now()
	code, err := r.e.Runner.Try(ctx, inv)
	step := report.Step{
		Title:    title,
		Argv:     inv.Argv,
		Status:   report.Passed,
		ExitCode: code,
		Attempts: 1,
		Duration: time.Since(start),
	}
	switch {
	case err != nil:
		step.Status = statusOf(err)
	case code != 0:
		step.Status = report.Ignored
	}
	r.rr.Steps = append(r.rr.Steps, step)
	return code, err
}

// note records work done in-process, such as copying a file.
func (r *recorder) note(title string, start time.Time, err error) error {
	step := report.Step{Title: title, Status: report.Passed, Duration: time.Since(start)}
	if err != nil {
		step.Status = statusOf(err)
		step.Transcript = err.Error()
	}
	r.rr.Steps = append(r.rr.Steps, step)
	return err
}

// finish stamps and stores the report. A failure to store it is logged,
// never returned: the operation's own outcome matters more.
func (r *recorder) finish(err error) (*report.RunResult, error) {
	r.rr.FinishedAt = time.Now()
	r.rr.Status = report.Passed
	if err != nil {
		r.rr.Status = statusOf(err)
		r.rr.Error = err.Error()
	}
	ev := r.e.Log.Debug()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("run", r.rr.ID).Str("status", string(r.rr.Status)).
		Dur("took", r.rr.FinishedAt.Sub(r.rr.StartedAt)).Msg("operation finished")

	if r.e.Store != nil {
		if serr := r.e.Store.Save(r.rr); serr != nil {
			r.e.Log.Warn().Err(serr).Str("run", r.rr.ID).Msg("could not save run report")
		}
	}
	return r.rr, err
}

func statusOf(err error) report.Status {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return report.Interrupted
	}
	return report.Failed
}

// requireFile fails with what a missing input means for the operation.
func (e *Engine) requireFile(rel, what string) (string, error) {
	path := e.Layout.Abs(rel)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", eris.Errorf("%s not found at: %s", what, path)
	}
	return path, nil
}

// homeDir returns the user's home, or "" when unknown.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func joinIf(base string, elem ...string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(append([]string{base}, elem...)...)
}
