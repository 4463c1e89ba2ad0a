// Package quality runs external code-quality tools against changed files
// and folds their outcome into a single pass/fail verdict.
//
// The verdict is opaque to the rest of the system: it is attached to
// activity entries as-is and never interpreted by the tracker.
package quality

import "strings"

// Issue is one problem reported by a tool.
type Issue struct {
	Tool    string `json:"tool"`
	File    string `json:"file,omitempty"`
	Message string `json:"message"`
}

// Result is the aggregated verdict for one file or change.
type Result struct {
	Passed bool    `json:"passed"`
	Issues []Issue `json:"issues,omitempty"`
}

// Pass returns a passing result with no issues.
func Pass() *Result {
	return &Result{Passed: true}
}

// Merge folds other into r. The merged result passes only when both do.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Passed = r.Passed && other.Passed
	r.Issues = append(r.Issues, other.Issues...)
}

// Summary renders the verdict on one line.
func (r *Result) Summary() string {
	if r == nil {
		return "not checked"
	}
	if r.Passed {
		return "passed"
	}
	msgs := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		msgs = append(msgs, is.Tool+": "+is.Message)
	}
	return "failed (" + strings.Join(msgs, "; ") + ")"
}
