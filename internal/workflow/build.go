package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
)

// Build commands. The clean_ variants clean before building.
const (
	CmdClean         = "clean"
	CmdCleanBindings = "clean_bindings"
	CmdCleanSDK      = "clean_sdk"
	CmdCleanApps     = "clean_apps"
	CmdCleanAll      = "clean_all"
	CmdBindings      = "bindings"
	CmdSDK           = "sdk"
	CmdApps          = "apps"
	CmdAll           = "all"
)

// BuildCommands lists every build command in help order.
var BuildCommands = []string{
	CmdClean, CmdCleanBindings, CmdCleanSDK, CmdCleanApps, CmdCleanAll,
	CmdBindings, CmdSDK, CmdApps, CmdAll,
}

// BuildOptions selects what Build does.
type BuildOptions struct {
	Command       string
	Targets       project.Targets
	Configuration project.Configuration
	Dry           bool // clean only lists what it would remove
}

// Build runs a build command: an optional clean followed by the builds the
// command names, stopping at the first failure.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (*report.RunResult, error) {
	if !slices.Contains(BuildCommands, opts.Command) {
		return nil, UsageError{Msg: fmt.Sprintf("unknown build command %q (choose from %s)", opts.Command, strings.Join(BuildCommands, ", "))}
	}
	if len(opts.Targets) == 0 {
		opts.Targets = project.Targets{project.TargetAll}
	}
	if opts.Configuration == "" {
		opts.Configuration = project.Debug
	}

	fmt.Fprintf(e.out(), "targets: %s\n", opts.Targets)

	kind := report.Build
	if opts.Command == CmdClean {
		kind = report.Clean
	}
	rec := e.begin(kind, opts.Command, opts.Targets, opts.Configuration)
	return rec.finish(e.build(ctx, rec, opts))
}

func (e *Engine) build(ctx context.Context, rec *recorder, opts BuildOptions) error {
	if strings.HasPrefix(opts.Command, CmdClean) {
		if err := e.clean(ctx, rec, opts.Targets, opts.Dry); err != nil {
			return err
		}
	}
	switch opts.Command {
	case CmdBindings, CmdCleanBindings:
		return e.buildBindings(ctx, rec, opts.Targets, opts.Configuration)
	case CmdSDK, CmdCleanSDK:
		return e.buildSDK(ctx, rec, opts.Configuration)
	case CmdApps, CmdCleanApps:
		return e.buildApps(ctx, rec, opts.Targets, opts.Configuration)
	case CmdAll, CmdCleanAll:
		return e.buildAll(ctx, rec, opts.Targets, opts.Configuration)
	}
	return nil
}

// BuildBindings builds the native binding projects selected by targets.
func (e *Engine) BuildBindings(ctx context.Context, targets project.Targets, cfg project.Configuration) (*report.RunResult, error) {
	rec := e.begin(report.Build, CmdBindings, targets, cfg)
	return rec.finish(e.buildBindings(ctx, rec, targets, cfg))
}

// BuildSDK builds the SDK project.
func (e *Engine) BuildSDK(ctx context.Context, cfg project.Configuration) (*report.RunResult, error) {
	rec := e.begin(report.Build, CmdSDK, nil, cfg)
	return rec.finish(e.buildSDK(ctx, rec, cfg))
}

// BuildApps builds the applications selected by targets.
func (e *Engine) BuildApps(ctx context.Context, targets project.Targets, cfg project.Configuration) (*report.RunResult, error) {
	rec := e.begin(report.Build, CmdApps, targets, cfg)
	return rec.finish(e.buildApps(ctx, rec, targets, cfg))
}

// BuildAll builds bindings, then the SDK, then the applications.
func (e *Engine) BuildAll(ctx context.Context, targets project.Targets, cfg project.Configuration) (*report.RunResult, error) {
	rec := e.begin(report.Build, CmdAll, targets, cfg)
	return rec.finish(e.buildAll(ctx, rec, targets, cfg))
}

func (e *Engine) buildBindings(ctx context.Context, rec *recorder, targets project.Targets, cfg project.Configuration) error {
	bindings := targets.Bindings()
	for i, p := range bindings {
		if i == 0 || group(p) != group(bindings[i-1]) {
			e.say("Build %s bindings", group(p))
		}
		if err := e.dotnetBuild(ctx, rec, p, cfg); err != nil {
			return err
		}
	}
	return nil
}

func group(p project.Project) string {
	switch p {
	case project.AndroidTestBinding, project.IOSTestBinding:
		return "TestApp"
	}
	return "SDK"
}

func (e *Engine) buildSDK(ctx context.Context, rec *recorder, cfg project.Configuration) error {
	return e.dotnetBuild(ctx, rec, project.SDK, cfg)
}

func (e *Engine) buildApps(ctx context.Context, rec *recorder, targets project.Targets, cfg project.Configuration) error {
	for _, p := range targets.Apps() {
		if err := e.dotnetBuild(ctx, rec, p, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buildAll(ctx context.Context, rec *recorder, targets project.Targets, cfg project.Configuration) error {
	if err := e.buildBindings(ctx, rec, targets, cfg); err != nil {
		return err
	}
	if err := e.buildSDK(ctx, rec, cfg); err != nil {
		return err
	}
	return e.buildApps(ctx, rec, targets, cfg)
}

// dotnetBuild compiles one project. The toolchain travels as an argument
// of this invocation only.
func (e *Engine) dotnetBuild(ctx context.Context, rec *recorder, p project.Project, cfg project.Configuration) error {
	dotnet, err := e.ResolveTool("dotnet")
	if err != nil {
		return err
	}
	e.say("Building %s", p.Title)
	argv := []string{dotnet, "build", p.Path, "--configuration", string(cfg)}
	argv = append(argv, e.Toolchain.BuildArgs(p)...)
	return rec.exec(ctx, p.Title, runner.Invocation{Argv: argv})
}
