package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is an MSBuild or compiler message found in a transcript.
type Diagnostic struct {
	Severity string // error or warning
	Code     string // e.g. CS0103, MSB3027, XA0137
	File     string
	Line     int
	Col      int
	Project  string
	Message  string
}

// msbuildLine matches the canonical MSBuild message format:
//
//	File.cs(12,5): error CS0103: The name 'x' does not exist [/repo/App.csproj]
//	EXEC : error XA0137: message
var msbuildLine = regexp.MustCompile(`^\s*(?:(.+?)(?:\((\d+)(?:,(\d+))?(?:,\d+,\d+)?\))?\s*:\s*)?(error|warning)\s+([A-Za-z]+\d+)\s*:\s*(.*?)(?:\s+\[([^\]]+)\])?\s*$`)

var ansiSeq = regexp.MustCompile("\x1b\\[[0-9;?]*[ -/]*[@-~]")

// ParseDiagnostics extracts MSBuild diagnostics from a transcript. Terminal
// escape sequences are stripped first, and duplicates (MSBuild repeats
// every error in its summary) are reported once.
func ParseDiagnostics(transcript string) []Diagnostic {
	var out []Diagnostic
	seen := make(map[Diagnostic]bool)
	clean := ansiSeq.ReplaceAllString(transcript, "")
	for _, line := range strings.Split(clean, "\n") {
		m := msbuildLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		d := Diagnostic{
			File:     strings.TrimSpace(m[1]),
			Severity: strings.ToLower(m[4]),
			Code:     strings.ToUpper(m[5]),
			Message:  strings.TrimSpace(m[6]),
			Project:  m[7],
		}
		d.Line, _ = strconv.Atoi(m[2])
		d.Col, _ = strconv.Atoi(m[3])
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// Errors returns only error diagnostics.
func Errors(ds []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Severity == "error" {
			out = append(out, d)
		}
	}
	return out
}

// String renders d the way MSBuild prints it, minus the project suffix.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			b.WriteString("(" + strconv.Itoa(d.Line))
			if d.Col > 0 {
				b.WriteString("," + strconv.Itoa(d.Col))
			}
			b.WriteString(")")
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Severity + " " + d.Code + ": " + d.Message)
	return b.String()
}
