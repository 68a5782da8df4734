package mcp

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/adjust/mauidev/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compileError = "AdjustSdk/Adjust.cs(12,5): error CS0103: The name 'foo' does not exist in the current context [/repo/AdjustSdk/AdjustSdk.csproj]\n"

// stubRunner answers every command with success unless fail names a
// substring of the command line.
type stubRunner struct {
	mu   sync.Mutex
	runs [][]string
	fail string
}

func (s *stubRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	s.mu.Lock()
	s.runs = append(s.runs, inv.Argv)
	s.mu.Unlock()

	res := &runner.Result{RunID: "r", Argv: inv.Argv, Attempts: 1}
	if s.fail != "" && strings.Contains(strings.Join(inv.Argv, " "), s.fail) {
		res.ExitCode = 1
		res.Attempts = 3
		res.Pattern = "MSB3027"
		res.Transcript = compileError + compileError
		res.Truncated = true
		return res, &runner.ExitError{Argv: inv.Argv, Code: 1, Attempts: 3, Pattern: "MSB3027"}
	}
	return res, nil
}

func (s *stubRunner) Try(context.Context, runner.Invocation) (int, error) { return 0, nil }

func (s *stubRunner) Output(context.Context, ...string) ([]byte, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubRunner) Spawn(...string) error { return nil }

func (s *stubRunner) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.runs))
	for i, argv := range s.runs {
		out[i] = strings.Join(argv, " ")
	}
	return out
}

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

type env struct {
	cs     *mcp.ClientSession
	engine *workflow.Engine
	runner *stubRunner
	root   string
}

// setup creates a full mauidev MCP server and client over in-memory
// transports, rooted at a fresh repository directory.
func setup(t *testing.T, tools ...string) *env {
	t.Helper()
	t.Setenv(config.EnvDotnet, "")
	ctx := context.Background()

	root := t.TempDir()
	cfg := &config.Config{}
	sr := &stubRunner{}
	e := workflow.NewEngine(cfg, root, sr, io.Discard, zerolog.Nop())
	e.Plain = true
	e.LookPath = onPath(tools...)

	server := NewServer(e)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return &env{cs: cs, engine: e, runner: sr, root: root}
}

func (e *env) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if id, ok := strings.CutPrefix(line, "Run: "); ok {
			return id
		}
	}
	t.Fatalf("no Run: line in output:\n%s", text)
	return ""
}

// --- maui_workspace ---

func TestMauiWorkspace(t *testing.T) {
	env := setup(t, "dotnet")
	env.write(t, "AdjustSdk/AdjustSdk.csproj", "<Project/>")
	env.write(t, "AdjustSdk.nuspec", `<package><metadata><id>Adjust.Maui.Sdk</id><version>5.1.0</version></metadata></package>`)

	res := callTool(t, env.cs, "maui_workspace", nil)
	text := resultText(res)
	require.False(t, res.IsError, text)

	assert.Contains(t, text, "Repository: "+env.root)
	assert.Contains(t, text, "Config: defaults")
	assert.Contains(t, text, "Toolchain: project default (device runs use net8.0)")
	assert.Regexp(t, `SDK\s+present\s+AdjustSdk/AdjustSdk.csproj`, text)
	assert.Regexp(t, `TestApp\s+missing`, text)
	assert.Regexp(t, `Adjust.Maui.Sdk\s+5.1.0`, text)
	assert.Contains(t, text, "(AdjustOaid.nuspec unreadable)")
	assert.Regexp(t, `dotnet\s+installed`, text)
	assert.Regexp(t, `nuget\s+not installed`, text)
	assert.Contains(t, text, "gradlew   missing")
}

func TestMauiWorkspace_RecentRuns(t *testing.T) {
	env := setup(t, "dotnet")
	build := resultText(callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk"}))
	id := runID(t, build)

	text := resultText(callTool(t, env.cs, "maui_workspace", nil))
	assert.Contains(t, text, "Recent runs:")
	assert.Contains(t, text, id+"  build sdk  pass")
}

// --- maui_build ---

func TestMauiBuild_Passing(t *testing.T) {
	env := setup(t, "dotnet")
	res := callTool(t, env.cs, "maui_build", map[string]any{"command": "all", "targets": []string{"test", "android"}})
	text := resultText(res)
	require.False(t, res.IsError, text)

	assert.Contains(t, text, "Status: PASS")
	assert.Contains(t, text, "Operation: build all ['test', 'android'] (Debug)")
	assert.Contains(t, text, "Android TestApp binding: pass")
	assert.Contains(t, text, "All steps passed.")
	assert.Equal(t, []string{
		"dotnet build android/TestLibrary.AndroidBinding/TestLibrary.AndroidBinding.csproj --configuration Debug",
		"dotnet build AdjustSdk/AdjustSdk.csproj --configuration Debug",
		"dotnet build testApp/TestApp.csproj --configuration Debug",
	}, env.runner.commands())
}

func TestMauiBuild_Failure(t *testing.T) {
	env := setup(t, "dotnet")
	env.runner.fail = "AdjustSdk.csproj"

	res := callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk", "release": true})
	text := resultText(res)
	assert.False(t, res.IsError, "a failed build is a result, not a tool error")

	assert.Contains(t, text, "Status: FAIL")
	assert.Contains(t, text, "Retries: 2")
	assert.Contains(t, text, "SDK: fail (exit 1, 3 attempts, transient: MSB3027)")
	assert.Contains(t, text, "Errors:\n  AdjustSdk/Adjust.cs(12,5): error CS0103:")
	assert.Equal(t, 1, strings.Count(text, "CS0103"), "duplicate diagnostics are reported once")
	assert.Contains(t, text, `maui_inspect(run_id="`+runID(t, text)+`", query="SDK")`)
}

func TestMauiBuild_DotnetOverride(t *testing.T) {
	env := setup(t, "dotnet")
	callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk", "dotnet": "net9.0"})
	callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk"})

	assert.Equal(t, []string{
		"dotnet build AdjustSdk/AdjustSdk.csproj --configuration Debug -p:TargetFrameworks=net9.0-android%3Bnet9.0-ios",
		"dotnet build AdjustSdk/AdjustSdk.csproj --configuration Debug",
	}, env.runner.commands())
	assert.Empty(t, env.engine.Toolchain)
}

func TestMauiBuild_BadRequests(t *testing.T) {
	env := setup(t, "dotnet")

	res := callTool(t, env.cs, "maui_build", map[string]any{"command": "deploy"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), `unknown build command "deploy"`)

	res = callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk", "targets": []string{"windows"}})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "windows")

	assert.Empty(t, env.runner.commands())
}

func TestMauiBuild_MissingCommand(t *testing.T) {
	env := setup(t, "dotnet")
	res, err := env.cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "maui_build",
		Arguments: map[string]any{"targets": []string{"sdk"}},
	})
	if err == nil {
		assert.True(t, res.IsError, "expected an error for missing command")
	}
	assert.Empty(t, env.runner.commands())
}

func TestMauiBuild_DotnetMissing(t *testing.T) {
	env := setup(t)
	res := callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "dotnet is required but not installed.")
}

// --- maui_publish ---

func TestMauiPublish_Pack(t *testing.T) {
	env := setup(t, "nuget")
	res := callTool(t, env.cs, "maui_publish", map[string]any{"step": "pack", "target": "all", "debug": true})
	text := resultText(res)
	require.False(t, res.IsError, text)

	assert.Contains(t, text, "Operation: publish pack ['core', 'oaid', 'meta_referrer'] (Debug)")
	assert.Len(t, env.runner.commands(), 3)
	assert.Contains(t, env.runner.commands()[2], "AdjustMetaReferrer.nuspec -properties Configuration=Debug")
}

func TestMauiPublish_UnknownTarget(t *testing.T) {
	env := setup(t, "nuget")
	res := callTool(t, env.cs, "maui_publish", map[string]any{"target": "firebase"})
	assert.True(t, res.IsError)
}

// --- maui_libs ---

func TestMauiLibs_NoSubmodule(t *testing.T) {
	env := setup(t)
	res := callTool(t, env.cs, "maui_libs", nil)
	text := resultText(res)
	assert.Contains(t, text, "Status: FAIL")
	assert.Contains(t, text, "git submodule update --init --recursive")
}

// --- maui_inspect ---

func TestMauiInspect_AfterFailingBuild(t *testing.T) {
	env := setup(t, "dotnet")
	env.runner.fail = "iOSBinding"

	build := resultText(callTool(t, env.cs, "maui_build", map[string]any{"command": "bindings", "targets": []string{"sdk"}}))
	id := runID(t, build)

	res := callTool(t, env.cs, "maui_inspect", map[string]any{"run_id": id, "query": "ios"})
	text := resultText(res)
	require.False(t, res.IsError, text)

	assert.Contains(t, text, "Run: "+id+" (build bindings) FAIL")
	assert.Contains(t, text, "iOS SDK binding: fail")
	assert.Contains(t, text, "$ dotnet build iOs/AdjustSdk.iOSBinding/AdjustSdk.iOSBinding.csproj")
	assert.Contains(t, text, "Output truncated: only the tail was kept.")
	assert.Contains(t, text, "Diagnostics (1):")
	assert.Contains(t, text, "in /repo/AdjustSdk/AdjustSdk.csproj")
	assert.NotContains(t, text, "Android SDK binding")
}

func TestMauiInspect_DefaultsToLatest(t *testing.T) {
	env := setup(t, "dotnet")
	callTool(t, env.cs, "maui_build", map[string]any{"command": "sdk"})
	build := resultText(callTool(t, env.cs, "maui_build", map[string]any{"command": "apps", "targets": []string{"test"}}))

	text := resultText(callTool(t, env.cs, "maui_inspect", nil))
	assert.Contains(t, text, "Run: "+runID(t, build)+" (build apps) PASS")
	assert.Contains(t, text, "TestApp: pass")

	text = resultText(callTool(t, env.cs, "maui_inspect", map[string]any{"query": "gradle"}))
	assert.Contains(t, text, `No steps matching "gradle"`)
}

func TestMauiInspect_InvalidRunID(t *testing.T) {
	env := setup(t)
	res := callTool(t, env.cs, "maui_inspect", map[string]any{"run_id": "nonexistent-id"})
	assert.True(t, res.IsError)
}

// --- roots ---

func TestSetWorkspace(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	r := workflow.NewRunner(&config.Config{}, first, io.Discard, zerolog.Nop())
	e := workflow.NewEngine(&config.Config{}, first, r, io.Discard, zerolog.Nop())
	h := &handler{engine: e}

	cfg := &config.Config{Dotnet: "net9.0", Retry: config.RetryConfig{Attempts: 5, Patterns: []string{"EACCES"}}}
	t.Setenv(config.EnvDotnet, "")
	h.setWorkspace(&config.LoadResult{Config: cfg, RepoRoot: second})

	assert.Equal(t, second, e.Layout.Root)
	assert.Same(t, cfg, e.Config)
	assert.Equal(t, project.Toolchain("net9.0"), e.Toolchain)
	assert.Equal(t, second, r.Workspace)
	assert.Equal(t, 5, r.MaxRetries)
	assert.Contains(t, r.Patterns, "EACCES")
	assert.Contains(t, r.Patterns, "MSB3027")

	require.NoError(t, e.Store.Save(&report.RunResult{ID: "x", Kind: report.Build}))
	assert.FileExists(t, filepath.Join(second, ".artifacts", "runs", "x.json"))
}
