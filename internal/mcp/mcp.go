// Package mcp provides the mauidev MCP server, exposing the build,
// publish and library operations as tools together with model
// instructions.
package mcp

import (
	"context"
	_ "embed"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/adjust/mauidev"
	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/runner"
	"github.com/adjust/mauidev/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers. Operations
// share one runner and one working tree, so they run one at a time.
type handler struct {
	mu     sync.Mutex
	engine *workflow.Engine
}

// NewServer creates an MCP server with all mauidev tools registered.
func NewServer(e *workflow.Engine) *mcp.Server {
	h := &handler{engine: e}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "mauidev", Version: mauidev.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "maui_workspace",
		Description: "Summarise the MAUI SDK repository: root, toolchain, which projects and nuspecs exist, which tools are installed, and recent runs.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "maui_build",
		Description: `Clean and/or build the MAUI projects with dotnet, stopping at the first failure.

Commands: clean, clean_bindings, clean_sdk, clean_apps, clean_all, bindings, sdk, apps, all.
Targets narrow the build: sdk, test, example, nuget, android, ios, bindings, all (default).
Failures caused by locked files are retried after shutting down the build server.
Results are stored for drill-down via maui_inspect.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "maui_publish",
		Description: `Pack the NuGet packages, copy them to the local feed, and remove stale installs.

Step is pack, copy or clean; omit it to run all three. Target is core (default), oaid, meta_referrer or all.`,
	}, h.publishHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "maui_libs",
		Description: "Build the native Adjust Android SDK AAR from the git submodule with Gradle and copy it into the Android binding.",
	}, h.libsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "maui_inspect",
		Description: `Drill into a stored run from maui_build, maui_publish or maui_libs.

run_id defaults to the latest run. query filters steps by title or command line.
Returns each step's outcome and the MSBuild diagnostics found in its output.`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and moves the
// engine to the first file root. Called during session initialization,
// before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}
	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		h.engine.Log.Warn().Err(err).Str("root", u.Path).Msg("ignoring client root")
		return
	}
	h.setWorkspace(loaded)
}

func (h *handler) setWorkspace(loaded *config.LoadResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.engine.Runner.(*runner.Runner); ok {
		workflow.ConfigureRunner(r, loaded.Config, loaded.RepoRoot)
	}
	h.engine.Config = loaded.Config
	h.engine.Layout = project.Layout{Root: loaded.RepoRoot}
	h.engine.Store = workflow.NewStore(loaded.Config, h.engine.Layout)
	h.engine.Toolchain = project.Toolchain(loaded.Config.PinnedToolchain())
	h.engine.Log.Info().Str("root", loaded.RepoRoot).Msg("workspace updated from client roots")
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

// requestError turns errors that prevented an operation from starting
// into tool errors. It reports false for failures of the operation
// itself, which are described by its run report instead.
func requestError(err error) (string, bool) {
	var usage workflow.UsageError
	var unavail workflow.ErrToolUnavailable
	switch {
	case errors.As(err, &usage):
		return usage.Msg, true
	case errors.As(err, &unavail):
		return unavail.Error(), true
	}
	return "", false
}
