package runner

import (
	"fmt"
	"strings"
	"time"
)

// Invocation describes one external command. It is built right before
// execution and dropped once its Result has been reported.
type Invocation struct {
	Argv []string // program name followed by its arguments
	Dir  string   // working directory, relative to the runner workspace
	Env  []string // KEY=VALUE entries layered over the current environment

	NoRetry    bool // never retry, even on a transient failure
	MaxRetries int  // maximum attempts; 0 uses the runner default
}

// Result holds the outcome of an invocation.
type Result struct {
	RunID      string        // unique identifier for this invocation
	Argv       []string      // command that was executed
	Dir        string        // resolved working directory
	ExitCode   int           // exit code of the last attempt
	Attempts   int           // number of times the command was started
	Pattern    string        // transient signature matched by the last failure
	Transcript string        // tail of the last attempt's output; empty on success
	Truncated  bool          // earlier output of the last attempt was dropped from Transcript
	Duration   time.Duration // wall time across all attempts
}

// ExitError reports a command that failed for good: either its failure was
// not transient, retry was disabled, or the attempts ran out.
type ExitError struct {
	Argv     []string
	Code     int
	Attempts int
	Pattern  string // set when the last failure matched a transient signature
}

func (e *ExitError) Error() string {
	name := "command"
	if len(e.Argv) > 0 {
		name = e.Argv[0]
	}
	msg := fmt.Sprintf("%s exited with status %d", name, e.Code)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Pattern != "" {
		msg += fmt.Sprintf(" (transient: %s)", e.Pattern)
	}
	return msg
}

// CommandLine joins argv for display.
func (e *ExitError) CommandLine() string {
	return strings.Join(e.Argv, " ")
}
