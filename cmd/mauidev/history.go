package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/adjust/mauidev/internal/report"
)

func printRuns(w io.Writer, runs []*report.RunResult) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOPERATION\tCONFIG\tSTATUS\tTOOK")
	for _, rr := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			rr.ID,
			rr.StartedAt.Format("2006-01-02 15:04:05"),
			rr.Kind, rr.Command,
			rr.Configuration,
			rr.Status,
			rr.FinishedAt.Sub(rr.StartedAt).Round(time.Second),
		)
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, rr *report.RunResult) {
	fmt.Fprintf(w, "Run:        %s\n", rr.ID)
	fmt.Fprintf(w, "Operation:  %s %s %s\n", rr.Kind, rr.Command, strings.Join(rr.Targets, " "))
	if rr.Configuration != "" {
		fmt.Fprintf(w, "Config:     %s\n", rr.Configuration)
	}
	fmt.Fprintf(w, "Status:     %s\n", rr.Status)
	fmt.Fprintf(w, "Started:    %s (took %s)\n", rr.StartedAt.Format(time.RFC3339), rr.FinishedAt.Sub(rr.StartedAt).Round(time.Millisecond))
	if n := rr.Retries(); n > 0 {
		fmt.Fprintf(w, "Retries:    %d\n", n)
	}
	if rr.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", rr.Error)
	}
	fmt.Fprintln(w)

	for _, s := range rr.Steps {
		fmt.Fprintf(w, "[%s] %s", s.Status, s.Title)
		if s.Attempts > 1 {
			fmt.Fprintf(w, " (%d attempts)", s.Attempts)
		}
		fmt.Fprintln(w)
		if len(s.Argv) > 0 {
			fmt.Fprintf(w, "    $ %s\n", strings.Join(s.Argv, " "))
		}
		for _, d := range report.Errors(report.ParseDiagnostics(s.Transcript)) {
			fmt.Fprintf(w, "    %s\n", d)
		}
		if s.Truncated {
			fmt.Fprintln(w, "    (output truncated, earlier lines were dropped)")
		}
	}
}
