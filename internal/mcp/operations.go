package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/adjust/mauidev/internal/project"
	"github.com/adjust/mauidev/internal/report"
	"github.com/adjust/mauidev/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type buildParams struct {
	Command string   `json:"command" jsonschema:"build command: clean, clean_bindings, clean_sdk, clean_apps, clean_all, bindings, sdk, apps or all"`
	Targets []string `json:"targets,omitempty" jsonschema:"targets narrowing the command: sdk, test, example, nuget, android, ios, bindings, all. Defaults to all."`
	Release bool     `json:"release,omitempty" jsonschema:"build the Release configuration instead of Debug"`
	Dotnet  string   `json:"dotnet,omitempty" jsonschema:"target framework prefix to pin for this build, e.g. net9.0"`
	Dry     bool     `json:"dry,omitempty" jsonschema:"list what a clean would remove without removing it"`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	targets, err := project.ParseTargets(params.Targets)
	if err != nil {
		return errorResult(err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e := *h.engine
	if params.Dotnet != "" {
		e.Toolchain = project.Toolchain(params.Dotnet)
	}
	rr, err := e.Build(ctx, workflow.BuildOptions{
		Command:       params.Command,
		Targets:       targets,
		Configuration: project.ConfigurationOf(params.Release),
		Dry:           params.Dry,
	})
	return runResult(rr, err)
}

type publishParams struct {
	Step   string `json:"step,omitempty" jsonschema:"pack, copy or clean. Omit to run all three."`
	Target string `json:"target,omitempty" jsonschema:"core, oaid, meta_referrer or all. Defaults to core."`
	Debug  bool   `json:"debug,omitempty" jsonschema:"pack the Debug configuration instead of Release"`
}

func (h *handler) publishHandler(ctx context.Context, req *mcp.CallToolRequest, params publishParams) (*mcp.CallToolResult, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := project.Release
	if params.Debug {
		cfg = project.Debug
	}
	rr, err := h.engine.Publish(ctx, workflow.PublishOptions{
		Step:          params.Step,
		Target:        params.Target,
		Configuration: cfg,
	})
	return runResult(rr, err)
}

type libsParams struct {
	Release bool `json:"release,omitempty" jsonschema:"build the release AAR instead of debug"`
}

func (h *handler) libsHandler(ctx context.Context, req *mcp.CallToolRequest, params libsParams) (*mcp.CallToolResult, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rr, err := h.engine.BuildAndroidAAR(ctx, project.ConfigurationOf(params.Release))
	return runResult(rr, err)
}

// runResult renders the outcome of an operation. Requests that never got
// going become tool errors; anything that ran is described by its report.
func runResult(rr *report.RunResult, err error) (*mcp.CallToolResult, any, error) {
	if msg, ok := requestError(err); ok {
		return errorResult(msg)
	}
	if rr == nil {
		if err != nil {
			return errorResult(err.Error())
		}
		return errorResult("operation produced no report")
	}
	return textResult(formatRun(rr))
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(rr.Status)))
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Operation: %s %s", rr.Kind, rr.Command)
	if len(rr.Targets) > 0 {
		fmt.Fprintf(&b, " %s", project.Targets(rr.Targets))
	}
	if rr.Configuration != "" {
		fmt.Fprintf(&b, " (%s)", rr.Configuration)
	}
	fmt.Fprintln(&b)
	if n := rr.Retries(); n > 0 {
		fmt.Fprintf(&b, "Retries: %d\n", n)
	}
	fmt.Fprintln(&b)

	if len(rr.Steps) > 0 {
		fmt.Fprintln(&b, "Steps:")
		for _, s := range rr.Steps {
			fmt.Fprintf(&b, "  %s: %s%s\n", s.Title, s.Status, stepDetail(s))
		}
		fmt.Fprintln(&b)
	}

	if rr.Status == report.Passed {
		fmt.Fprintln(&b, "All steps passed.")
		return b.String()
	}

	if rr.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", rr.Error)
	}
	if failed := rr.FailedStep(); failed != nil {
		if errs := report.Errors(report.ParseDiagnostics(failed.Transcript)); len(errs) > 0 {
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, "Errors:")
			for _, d := range errs {
				fmt.Fprintf(&b, "  %s\n", d)
			}
		}
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Inspect with maui_inspect(run_id=%q, query=%q).\n", rr.ID, failed.Title)
	}
	return b.String()
}

func stepDetail(s report.Step) string {
	var parts []string
	if s.Status != report.Passed && s.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit %d", s.ExitCode))
	}
	if s.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("%d attempts", s.Attempts))
	}
	if s.Pattern != "" {
		parts = append(parts, "transient: "+s.Pattern)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
