package workflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a test double for CommandRunner. It records every call and
// answers from per-command tables keyed by the joined argv.
type fakeRunner struct {
	runs    []runner.Invocation
	tries   []runner.Invocation
	spawned [][]string

	failRun func(inv runner.Invocation) error // nil means success
	onRun   func(inv runner.Invocation)       // side effects such as producing files
	codes   map[string]int                    // Try exit codes
	outputs map[string][]byte                 // Output results
}

func (f *fakeRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	f.runs = append(f.runs, inv)
	if f.onRun != nil {
		f.onRun(inv)
	}
	res := &runner.Result{RunID: "r", Argv: inv.Argv, Attempts: 1}
	if f.failRun != nil {
		if err := f.failRun(inv); err != nil {
			var exitErr *runner.ExitError
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.Code
				res.Attempts = exitErr.Attempts
				res.Transcript = "error MSB3027: Could not copy"
			}
			return res, err
		}
	}
	return res, nil
}

func (f *fakeRunner) Try(_ context.Context, inv runner.Invocation) (int, error) {
	f.tries = append(f.tries, inv)
	return f.codes[strings.Join(inv.Argv, " ")], nil
}

func (f *fakeRunner) Output(_ context.Context, argv ...string) ([]byte, error) {
	out, ok := f.outputs[strings.Join(argv, " ")]
	if !ok {
		return nil, errors.New("not stubbed")
	}
	return out, nil
}

func (f *fakeRunner) Spawn(argv ...string) error {
	f.spawned = append(f.spawned, argv)
	return nil
}

func (f *fakeRunner) commands() []string {
	out := make([]string, len(f.runs))
	for i, inv := range f.runs {
		out[i] = strings.Join(inv.Argv, " ")
	}
	return out
}

// memStore is an in-memory report.Store.
type memStore struct {
	saved []*report.RunResult
}

func (m *memStore) Save(r *report.RunResult) error {
	m.saved = append(m.saved, r)
	return nil
}

func (m *memStore) Load(id string) (*report.RunResult, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, os.ErrNotExist
}

func (m *memStore) List() ([]*report.RunResult, error) {
	return m.saved, nil
}

// onPath makes the named tools resolvable.
func onPath(tools ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, t := range tools {
			if t == name {
				return "/usr/local/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

type fixture struct {
	engine *Engine
	runner *fakeRunner
	store  *memStore
	out    *bytes.Buffer
	root   string
}

func newFixture(t *testing.T, tools ...string) *fixture {
	t.Helper()
	t.Setenv(config.EnvAndroidAVD, "")
	t.Setenv(config.EnvIOSSim, "")
	t.Setenv(config.EnvDotnet, "")

	root := t.TempDir()
	fr := &fakeRunner{codes: map[string]int{}, outputs: map[string][]byte{}}
	st := &memStore{}
	out := &bytes.Buffer{}
	home := t.TempDir()
	e := &Engine{
		Config: &config.Config{
			Android: config.AndroidConfig{RawBootWait: "0s"},
			NuGet: config.NuGetConfig{
				LocalSource: filepath.Join(home, "local"),
				Packages:    filepath.Join(home, "packages"),
			},
		},
		Runner:   fr,
		Layout:   project.Layout{Root: root},
		Store:    st,
		Log:      zerolog.Nop(),
		Out:      out,
		Plain:    true,
		LookPath: onPath(tools...),
	}
	return &fixture{engine: e, runner: fr, store: st, out: out, root: root}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) mkdir(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(path, 0o755))
	return path
}

func TestResolveTool(t *testing.T) {
	f := newFixture(t, "dotnet")

	got, err := f.engine.ResolveTool("dotnet")
	require.NoError(t, err)
	assert.Equal(t, "dotnet", got)

	fallback := f.write(t, "sdk/emulator/emulator", "#!/bin/sh\n")
	got, err = f.engine.ResolveTool("emulator", "", filepath.Join(f.root, "missing"), fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	_, err = f.engine.ResolveTool("nuget")
	var unavail ErrToolUnavailable
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "nuget", unavail.Name)
}

func TestErrToolUnavailable_Message(t *testing.T) {
	msg := NewErrToolUnavailable("xcrun").Error()
	assert.Contains(t, msg, "xcrun is required but not installed.")
	assert.Contains(t, msg, "xcode-select --install")

	msg = NewErrToolUnavailable("dotnet").Error()
	assert.Contains(t, msg, "dotnet workload install maui")

	assert.Equal(t, "gradle is required but not installed.", NewErrToolUnavailable("gradle").Error())
}

func TestRecorder_StoresReports(t *testing.T) {
	f := newFixture(t, "dotnet")
	f.runner.failRun = func(runner.Invocation) error {
		return &runner.ExitError{Argv: []string{"dotnet"}, Code: 1, Attempts: 3, Pattern: "MSB3027"}
	}

	rr, err := f.engine.BuildSDK(context.Background(), project.Release)
	require.Error(t, err)
	require.NotNil(t, rr)

	require.Len(t, f.store.saved, 1)
	saved := f.store.saved[0]
	assert.Equal(t, rr.ID, saved.ID)
	assert.Equal(t, report.Failed, saved.Status)
	assert.Equal(t, "Release", saved.Configuration)
	require.Len(t, saved.Steps, 1)
	assert.Equal(t, 3, saved.Steps[0].Attempts)
	assert.Equal(t, 1, saved.Steps[0].ExitCode)
	assert.Contains(t, saved.Steps[0].Transcript, "MSB3027")
	assert.False(t, saved.FinishedAt.Before(saved.StartedAt))
}

func TestRecorder_Interrupted(t *testing.T) {
	f := newFixture(t, "dotnet")
	f.runner.failRun = func(runner.Invocation) error { return context.Canceled }

	rr, err := f.engine.BuildSDK(context.Background(), project.Debug)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, report.Interrupted, rr.Status)
	assert.Equal(t, report.Interrupted, rr.Steps[0].Status)
}

func TestSay_Plain(t *testing.T) {
	f := newFixture(t)
	f.engine.say("Building %s", "SDK")
	assert.Equal(t, "> Building SDK\n", f.out.String())
}
