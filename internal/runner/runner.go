// Package runner executes external build tools behind a pseudo-terminal,
// echoing their output live and retrying failures caused by files that are
// briefly locked by a build server.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/syntax"
)

// Defaults applied when the corresponding Runner field is zero.
const (
	DefaultMaxRetries   = 3
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxOutput    = 1 << 20
)

// Runner executes commands within a workspace boundary, one at a time.
type Runner struct {
	Workspace string
	Stdout    io.Writer      // live echo of child output; os.Stdout when nil
	Log       zerolog.Logger // diagnostics
	Plain     bool           // no colour in command headers

	MaxRetries   int           // attempts per invocation
	DisableRetry bool          // treat every failure as fatal
	RetryDelay   time.Duration // pause after a build-server shutdown; zero means none
	PollInterval time.Duration // readiness timeout on the pty
	MaxOutput    int           // bytes of transcript kept per attempt
	Patterns     []string      // transient signatures; DefaultPatterns when empty
	ShutdownArgv []string      // best-effort build-server shutdown between attempts
}

// Run executes inv, retrying transient failures. A command that fails for
// good yields an *ExitError together with the Result of its last attempt.
// Cancelling ctx terminates the child and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if len(inv.Argv) == 0 {
		return nil, eris.New("empty argv")
	}

	dir, err := r.resolveDir(inv.Dir)
	if err != nil {
		return nil, err
	}

	maxAttempts := inv.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = r.MaxRetries
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	retry := !r.DisableRetry && !inv.NoRetry

	res := &Result{
		RunID: uuid.New().String(),
		Argv:  inv.Argv,
		Dir:   dir,
	}
	log := r.Log.With().Str("run", res.RunID).Str("cmd", inv.Argv[0]).Logger()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		r.echo(inv.Argv)

		code, tail, err := r.attempt(ctx, inv, dir)
		transcript := tail.Bytes()
		res.ExitCode = code
		res.Duration = time.Since(start)
		res.Truncated = tail.Truncated()
		if err != nil {
			res.Transcript = string(transcript)
			return res, err
		}
		if code == 0 {
			res.Transcript = ""
			res.Truncated = false
			res.Pattern = ""
			log.Debug().Int("attempt", attempt).Dur("took", res.Duration).Msg("command succeeded")
			return res, nil
		}

		res.Transcript = string(transcript)
		res.Pattern = r.MatchTransient(transcript)

		if res.Pattern == "" || !retry || attempt >= maxAttempts {
			log.Debug().
				Int("attempt", attempt).
				Int("code", code).
				Str("pattern", res.Pattern).
				Msg("command failed")
			return res, &ExitError{
				Argv:     inv.Argv,
				Code:     code,
				Attempts: attempt,
				Pattern:  res.Pattern,
			}
		}

		log.Warn().
			Int("attempt", attempt).
			Int("max", maxAttempts).
			Str("pattern", res.Pattern).
			Msg("transient failure, shutting down build server and retrying")

		r.shutdownBuildServer(ctx)
		if err := sleepContext(ctx, r.RetryDelay); err != nil {
			return res, err
		}
	}
}

// Try runs inv once and reports its exit code. A non-zero exit is not an
// error; only setup failures and interruption are.
func (r *Runner) Try(ctx context.Context, inv Invocation) (int, error) {
	inv.NoRetry = true
	res, err := r.Run(ctx, inv)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, nil
	}
	if err != nil {
		return -1, err
	}
	return res.ExitCode, nil
}

// Output runs argv without a pseudo-terminal and returns its stdout. It is
// meant for machine-readable output such as JSON listings.
func (r *Runner) Output(ctx context.Context, argv ...string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, eris.New("empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Workspace
	out, err := cmd.Output()
	if err != nil {
		return out, eris.Wrapf(err, "executing %s", argv[0])
	}
	return out, nil
}

// shutdownBuildServer is fire-and-forget: failures are logged and dropped.
func (r *Runner) shutdownBuildServer(ctx context.Context) {
	if len(r.ShutdownArgv) == 0 {
		return
	}
	cmd := exec.CommandContext(ctx, r.ShutdownArgv[0], r.ShutdownArgv[1:]...)
	cmd.Dir = r.Workspace
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		r.Log.Debug().Err(err).Strs("argv", r.ShutdownArgv).Msg("build server shutdown failed")
	}
}

func (r *Runner) echo(argv []string) {
	colors := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: r.Plain,
		Reset:   true,
	}
	_, _ = io.WriteString(r.stdout(), colors.Color("[bold][cyan]> ")+QuoteArgs(argv)+colors.Color("[reset]")+"\n")
}

// QuoteArgs renders argv as a copy-pasteable shell command line.
func QuoteArgs(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(arg)
		}
		parts[i] = q
	}
	return strings.Join(parts, " ")
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return DefaultPollInterval
}

func (r *Runner) maxOutput() int {
	if r.MaxOutput > 0 {
		return r.MaxOutput
	}
	return DefaultMaxOutput
}

// environ layers inv.Env over the current environment and makes sure the
// child sees a colour-capable terminal type.
func environ(extra []string) []string {
	env := os.Environ()
	if os.Getenv("TERM") == "" || os.Getenv("TERM") == "dumb" {
		env = append(env, "TERM=xterm-256color")
	}
	return append(env, extra...)
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", eris.Wrap(err, "resolving cwd")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", eris.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// exitCode maps a Wait error to a shell-style exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		if sig, ok := signalOf(exitErr); ok {
			return 128 + sig
		}
	}
	return 1
}
