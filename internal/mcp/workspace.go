package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adjust/mauidev/internal/config"
	"github.com/adjust/mauidev/internal/project"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type workspaceParams struct{}

// workspaceTools are the external programs the operations depend on.
var workspaceTools = []string{"dotnet", "nuget", "xcrun", "emulator", "trash"}

const recentRuns = 5

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.engine
	layout := e.Layout
	var b strings.Builder

	fmt.Fprintf(&b, "Repository: %s\n", layout.Root)
	if _, err := os.Stat(layout.Abs(config.FileName)); err == nil {
		fmt.Fprintf(&b, "Config: %s\n", config.FileName)
	} else {
		fmt.Fprintln(&b, "Config: defaults")
	}
	if e.Toolchain != "" {
		fmt.Fprintf(&b, "Toolchain: %s (pinned)\n", e.Toolchain)
	} else {
		fmt.Fprintf(&b, "Toolchain: project default (device runs use %s)\n", e.Config.Toolchain())
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Projects:")
	for _, p := range project.All {
		state := "present"
		if _, err := os.Stat(layout.Abs(p.Path)); err != nil {
			state = "missing"
		}
		fmt.Fprintf(&b, "  %-24s %-7s %s\n", p.Title, state, filepath.ToSlash(p.Path))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Packages:")
	for _, p := range project.Packages {
		v, err := project.NuspecVersion(layout.Abs(p.Nuspec))
		if err != nil {
			fmt.Fprintf(&b, "  %-30s (%s unreadable)\n", p.ID, p.Nuspec)
			continue
		}
		fmt.Fprintf(&b, "  %-30s %s\n", p.ID, v)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Tools:")
	for _, name := range workspaceTools {
		state := "installed"
		if !e.HasTool(name) {
			state = "not installed"
		}
		fmt.Fprintf(&b, "  %-9s %s\n", name, state)
	}
	if _, err := os.Stat(layout.Gradlew()); err == nil {
		fmt.Fprintln(&b, "  gradlew   present")
	} else {
		fmt.Fprintln(&b, "  gradlew   missing (android_sdk submodule not checked out)")
	}

	if e.Store == nil {
		return textResult(b.String())
	}
	runs, err := e.Store.List()
	if err != nil {
		e.Log.Debug().Err(err).Msg("listing runs")
	}
	if len(runs) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Recent runs:")
		for i, rr := range runs {
			if i == recentRuns {
				break
			}
			fmt.Fprintf(&b, "  %s  %s %s  %s  %s\n", rr.ID, rr.Kind, rr.Command, rr.Status, rr.StartedAt.Format("2006-01-02 15:04"))
		}
	}

	return textResult(b.String())
}
