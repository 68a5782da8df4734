package runner

import "bytes"

// DefaultPatterns are output signatures of failures that go away once the
// build server has released its file handles.
var DefaultPatterns = []string{
	"being used by another process",
	"The process cannot access the file",
	"Failed to rename",
	"MSB3021", // unable to copy file
	"MSB3026", // could not copy, retrying
	"MSB3027", // could not copy, retry count exceeded
	"CS2012",  // cannot open file for writing
}

// MatchTransient returns the first transient signature found in transcript,
// or "" when the failure is fatal.
func (r *Runner) MatchTransient(transcript []byte) string {
	for _, p := range r.patterns() {
		if p != "" && bytes.Contains(transcript, []byte(p)) {
			return p
		}
	}
	return ""
}

func (r *Runner) patterns() []string {
	if len(r.Patterns) > 0 {
		return r.Patterns
	}
	return DefaultPatterns
}
