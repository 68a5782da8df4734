// Command mauidev builds, publishes and runs the Adjust .NET MAUI SDK.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/logging"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/adjust/mauidev/internal/workflow"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// exitInterrupted is the conventional status of a process stopped by SIGINT.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stderr: os.Stderr}
	err := newRootCmd(a).ExecuteContext(ctx)
	code := exitCode(ctx, err)
	stop()
	if err != nil && code != exitInterrupted {
		a.report(err)
	}
	os.Exit(code)
}

// exitCode maps the outcome of a command to the process status. This is
// the only place that decides how mauidev terminates.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *runner.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.Code > 0:
		return exitErr.Code
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return exitInterrupted
	}
	return 1
}

// app carries what the commands share: flags of the root command and the
// engine built from the repository configuration.
type app struct {
	verbose bool
	stderr  io.Writer
	log     zerolog.Logger
}

// report prints a failure for the operator. Tool failures were already
// echoed live, so only their summary is repeated.
func (a *app) report(err error) {
	var usage workflow.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "mauidev: %s\nRun 'mauidev --help' for usage.\n", usage.Msg)
		return
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(a.stderr, "mauidev: %s\n  $ %s\n", exitErr, exitErr.CommandLine())
		return
	}
	a.log.Debug().Msg(eris.ToString(err, true))
	fmt.Fprintf(a.stderr, "mauidev: %s\n", err)
}

// open loads the configuration of the repository containing the working
// directory and wires an engine for it. Progress and child output go to
// out, in colour only when out is a terminal.
func (a *app) open(out *os.File) (*workflow.Engine, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "determining working directory")
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, eris.Wrap(err, "loading config")
	}
	a.log.Debug().Str("root", loaded.RepoRoot).Msg("repository")

	plain := !term.IsTerminal(int(out.Fd()))
	r := workflow.NewRunner(loaded.Config, loaded.RepoRoot, out, a.log)
	r.Plain = plain
	e := workflow.NewEngine(loaded.Config, loaded.RepoRoot, r, out, a.log)
	e.Plain = plain
	return e, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mauidev",
		Short: "Build, publish and run the Adjust MAUI SDK",
		Long: `mauidev drives dotnet, nuget, Gradle and the device tools for the Adjust
.NET MAUI SDK repository. Builds that fail because the dotnet build server
still holds a file lock are retried after shutting the server down.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = logging.New(logging.Options{Out: a.stderr, Verbose: a.verbose})
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newBuildCmd(a),
		newPublishCmd(a),
		newRunCmd(a),
		newLibsCmd(a),
		newHistoryCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}
