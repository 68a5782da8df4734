// Package report persists the outcome of build, publish, run and library
// operations so failures can be inspected after the console has scrolled
// away.
package report

import (
	"strings"
	"time"
)

// Kind identifies the operation a run performed.
type Kind string

const (
	Build   Kind = "build"
	Clean   Kind = "clean"
	Publish Kind = "publish"
	Launch  Kind = "run"
	Libs    Kind = "libs"
)

// Status of a run or step.
type Status string

const (
	Passed      Status = "pass"
	Failed      Status = "fail"
	Interrupted Status = "interrupted"
	Ignored     Status = "ignored" // non-zero exit of a best-effort command
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
	List() ([]*RunResult, error)
}

// RunResult records one operation and the commands it ran.
type RunResult struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Command       string    `json:"command"`
	Targets       []string  `json:"targets,omitempty"`
	Configuration string    `json:"configuration,omitempty"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Steps         []Step    `json:"steps,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Step is a single external command within a run.
type Step struct {
	Title      string        `json:"title"`
	Argv       []string      `json:"argv,omitempty"`
	Status     Status        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Attempts   int           `json:"attempts,omitempty"`
	Pattern    string        `json:"pattern,omitempty"` // transient signature of the last failure
	Duration   time.Duration `json:"duration"`
	Transcript string        `json:"transcript,omitempty"` // output tail, kept on failure only
	Truncated  bool          `json:"truncated,omitempty"`  // Transcript lost the start of the output
}

// FailedStep returns the step that ended the run, or nil.
func (r *RunResult) FailedStep() *Step {
	for i := range r.Steps {
		if r.Steps[i].Status == Failed || r.Steps[i].Status == Interrupted {
			return &r.Steps[i]
		}
	}
	return nil
}

// Retries counts the extra attempts spent on transient failures.
func (r *RunResult) Retries() int {
	n := 0
	for _, s := range r.Steps {
		if s.Attempts > 1 {
			n += s.Attempts - 1
		}
	}
	return n
}

// StepsMatching returns the steps whose title or command line contains
// query, case-insensitively. An empty query matches every step.
func (r *RunResult) StepsMatching(query string) []Step {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Step
	for _, s := range r.Steps {
		if q == "" ||
			strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(strings.Join(s.Argv, " ")), q) {
			out = append(out, s)
		}
	}
	return out
}
