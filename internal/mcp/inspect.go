package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adjust/mauidev/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a maui_build, maui_publish or maui_libs result. Defaults to the latest run."`
	Query string `json:"query,omitempty" jsonschema:"only show steps whose title or command line contains this text, e.g. iOS or MSB3027"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	runID := params.RunID
	if runID == "" {
		runID = report.Latest
	}

	h.mu.Lock()
	store := h.engine.Store
	h.mu.Unlock()
	if store == nil {
		return errorResult("run reports are disabled")
	}

	result, err := store.Load(runID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", runID, err))
	}

	steps := result.StepsMatching(params.Query)
	if len(steps) == 0 {
		return textResult(fmt.Sprintf("No steps matching %q in run %s (%s %s).", params.Query, result.ID, result.Kind, result.Command))
	}
	return textResult(formatInspectOutput(result, steps))
}

func formatInspectOutput(rr *report.RunResult, steps []report.Step) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s %s) %s\n", rr.ID, rr.Kind, rr.Command, strings.ToUpper(string(rr.Status)))
	fmt.Fprintf(&b, "Started: %s, took %s\n", rr.StartedAt.Format("2006-01-02 15:04:05"), rr.FinishedAt.Sub(rr.StartedAt).Round(time.Millisecond))

	for _, s := range steps {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s: %s%s\n", s.Title, s.Status, stepDetail(s))
		if len(s.Argv) > 0 {
			fmt.Fprintf(&b, "  $ %s\n", strings.Join(s.Argv, " "))
		}
		if s.Duration > 0 {
			fmt.Fprintf(&b, "  took %s\n", s.Duration.Round(time.Millisecond))
		}

		if s.Truncated {
			fmt.Fprintln(&b, "  Output truncated: only the tail was kept.")
		}

		diags := report.ParseDiagnostics(s.Transcript)
		if len(diags) > 0 {
			fmt.Fprintf(&b, "  Diagnostics (%d):\n", len(diags))
			for _, d := range diags {
				fmt.Fprintf(&b, "    %s\n", d)
				if d.Project != "" {
					fmt.Fprintf(&b, "      in %s\n", d.Project)
				}
			}
			continue
		}

		// Without recognised diagnostics the raw output tail is all there is.
		if s.Transcript != "" {
			fmt.Fprintln(&b, "  Output:")
			for _, line := range strings.Split(strings.TrimRight(s.Transcript, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", strings.TrimRight(line, "\r"))
			}
		}
	}

	return b.String()
}
