package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/rotisserie/eris"
)

// Clean removes the bin and obj directories of the projects selected by
// targets. With dry set it only lists them.
func (e *Engine) Clean(ctx context.Context, targets project.Targets, dry bool) (*report.RunResult, error) {
	rec := e.begin(report.Clean, CmdClean, targets, "")
	return rec.finish(e.clean(ctx, rec, targets, dry))
}

func (e *Engine) clean(ctx context.Context, rec *recorder, targets project.Targets, dry bool) error {
	for _, rel := range targets.CleanDirs() {
		if err := e.cleanDir(ctx, rec, e.Layout.Abs(rel), dry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanDir(ctx context.Context, rec *recorder, dir string, dry bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dirs, err := project.ArtifactDirs(dir)
	if err != nil {
		return err
	}

	if dry {
		e.say("dry-run: listing bin/ and obj/ directories under %s", dir)
		for _, d := range dirs {
			fmt.Fprintln(e.out(), d)
		}
		return nil
	}

	if e.HasTool("trash") {
		e.say("trash bin/ and obj/ directories under %s", dir)
		if len(dirs) == 0 {
			return nil
		}
		argv := append([]string{"trash"}, dirs...)
		return rec.exec(ctx, "Trash build output under "+e.Layout.Rel(dir), runner.Invocation{Argv: argv, NoRetry: true})
	}

	e.say("rm -rf bin/ and obj/ directories under %s", dir)
	if len(dirs) == 0 {
		return nil
	}
	start := time.Now()
	return rec.note("Remove build output under "+e.Layout.Rel(dir), start, removeAll(dirs))
}

func removeAll(paths []string) error {
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return eris.Wrapf(err, "removing %s", p)
		}
	}
	return nil
}
