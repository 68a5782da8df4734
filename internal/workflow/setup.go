package workflow

import (
	"io"
	"slices"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/rs/zerolog"
)

// NewRunner returns a runner confined to root and tuned by cfg. Child
// output is echoed to out.
func NewRunner(cfg *config.Config, root string, out io.Writer, log zerolog.Logger) *runner.Runner {
	r := &runner.Runner{Stdout: out, Log: log}
	ConfigureRunner(r, cfg, root)
	return r
}

// ConfigureRunner applies cfg to r and moves it to root. It is used when
// the workspace changes under a long-lived runner.
func ConfigureRunner(r *runner.Runner, cfg *config.Config, root string) {
	r.Workspace = root
	r.MaxRetries = cfg.RetryAttempts()
	r.DisableRetry = cfg.Retry.Disabled
	r.RetryDelay = cfg.RetryDelay()
	r.PollInterval = cfg.PollInterval()
	r.MaxOutput = cfg.MaxOutputBytes()
	r.ShutdownArgv = cfg.ShutdownArgv()
	r.Patterns = nil
	if len(cfg.Retry.Patterns) > 0 {
		r.Patterns = append(slices.Clone(runner.DefaultPatterns), cfg.Retry.Patterns...)
	}
}

// NewStore returns the report store of the repository at layout: JSON
// files under .artifacts/runs behind an in-memory cache.
func NewStore(cfg *config.Config, layout project.Layout) *report.LRUStore {
	return report.NewLRUStore(cfg.ReportsKeep(), report.NewDiskStore(layout.RunsDir()))
}

// NewEngine wires an engine for the repository at root.
func NewEngine(cfg *config.Config, root string, r CommandRunner, out io.Writer, log zerolog.Logger) *Engine {
	layout := project.Layout{Root: root}
	return &Engine{
		Config:    cfg,
		Runner:    r,
		Layout:    layout,
		Store:     NewStore(cfg, layout),
		Log:       log,
		Out:       out,
		Toolchain: project.Toolchain(cfg.PinnedToolchain()),
	}
}
