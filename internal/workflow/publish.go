package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/rotisserie/eris"
)

// Publish steps. An empty step runs all three in order.
const (
	PublishPack  = "pack"
	PublishCopy  = "copy"
	PublishClean = "clean"
)

// PublishOptions selects what Publish does.
type PublishOptions struct {
	Step          string // pack, copy, clean, or "" for all
	Target        string // core, oaid, meta_referrer, all; "" means core
	Configuration project.Configuration
}

// Publish packs NuGet packages, copies them to the local source, and
// removes stale installs from the global packages folder, so the next
// restore picks up the fresh build.
func (e *Engine) Publish(ctx context.Context, opts PublishOptions) (*report.RunResult, error) {
	switch opts.Step {
	case "", PublishPack, PublishCopy, PublishClean:
	default:
		return nil, UsageError{Msg: fmt.Sprintf("unknown publish step %q (choose from pack, copy, clean)", opts.Step)}
	}
	pkgs, err := project.SelectPackages(opts.Target)
	if err != nil {
		return nil, UsageError{Msg: err.Error()}
	}
	if opts.Configuration == "" {
		opts.Configuration = project.Release
	}

	command := opts.Step
	if command == "" {
		command = "all"
	}
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	rec := e.begin(report.Publish, command, names, opts.Configuration)
	return rec.finish(e.publish(ctx, rec, opts, pkgs))
}

func (e *Engine) publish(ctx context.Context, rec *recorder, opts PublishOptions, pkgs []project.Package) error {
	all := opts.Step == ""
	if all || opts.Step == PublishPack {
		if err := e.pack(ctx, rec, pkgs, opts.Configuration); err != nil {
			return err
		}
	}
	if all || opts.Step == PublishCopy {
		if err := e.copyPackages(ctx, rec, pkgs); err != nil {
			return err
		}
	}
	if all || opts.Step == PublishClean {
		if err := e.cleanInstalled(ctx, rec, pkgs); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) pack(ctx context.Context, rec *recorder, pkgs []project.Package, cfg project.Configuration) error {
	nuget, err := e.ResolveTool("nuget")
	if err != nil {
		return err
	}
	out := e.Layout.Artifacts()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", out)
	}
	for _, p := range pkgs {
		e.say("Packing %s", p.Title)
		argv := []string{nuget, "pack", p.Nuspec, "-properties", "Configuration=" + string(cfg), "-OutputDirectory", project.ArtifactsDir}
		if err := rec.exec(ctx, "Pack "+p.ID, runner.Invocation{Argv: argv}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) copyPackages(ctx context.Context, rec *recorder, pkgs []project.Package) error {
	dest := e.Config.LocalSource()
	for _, p := range pkgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.say("Copying %s", p.Title)
		start := time.Now()
		version, err := project.NuspecVersion(e.Layout.Abs(p.Nuspec))
		if err != nil {
			return rec.note("Copy "+p.ID, start, err)
		}
		src := filepath.Join(e.Layout.Artifacts(), p.FileName(version))
		if _, err := os.Stat(src); err != nil {
			return rec.note("Copy "+p.ID, start, eris.Errorf("%s not found; run publish pack first", src))
		}
		err = copyFile(src, filepath.Join(dest, p.FileName(version)))
		if err := rec.note("Copy "+p.FileName(version), start, err); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanInstalled(ctx context.Context, rec *recorder, pkgs []project.Package) error {
	for _, p := range pkgs {
		e.say("Cleaning %s", p.Title)
		dir := p.InstalledDir(e.Config.PackagesDir())
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			fmt.Fprintf(e.out(), "%s is not installed\n", dir)
			continue
		}
		if e.HasTool("trash") {
			if err := rec.exec(ctx, "Trash "+dir, runner.Invocation{Argv: []string{"trash", dir}, NoRetry: true}); err != nil {
				return err
			}
			continue
		}
		start := time.Now()
		if err := rec.note("Remove "+dir, start, removeAll([]string{dir})); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", filepath.Dir(dst))
	}
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "creating %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "copying %s", src)
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "closing %s", dst)
	}
	return nil
}
