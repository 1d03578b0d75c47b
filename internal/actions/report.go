// Package actions implements the revstack commands: push, sync, fetch,
// adopt, list and init. Each action takes an Options struct and the
// shared runtime context, and returns a per-change report so callers can
// render or assert on exactly what happened.
package actions

import (
	"fmt"

	"revstack.dev/revstack/internal/output"
)

// Outcome describes what happened to one change during an action.
type Outcome int

const (
	// OutcomeUnchanged means the change already matched the remote.
	OutcomeUnchanged Outcome = iota
	// OutcomeCreated means a pull request was opened for the change.
	OutcomeCreated
	// OutcomeUpdated means the change's pull request or description moved.
	OutcomeUpdated
	// OutcomeLanded means the change's pull request merged and the local
	// change was abandoned.
	OutcomeLanded
	// OutcomeAbandoned means the pull request was closed without merging
	// and the local change was abandoned.
	OutcomeAbandoned
	// OutcomeAdopted means a local change was materialized from a pull
	// request.
	OutcomeAdopted
	// OutcomeConflicted means remote code was folded in but left conflict
	// markers to resolve.
	OutcomeConflicted
	// OutcomeSkipped means the change was deliberately left alone.
	OutcomeSkipped
	// OutcomeFailed means the change could not be processed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeLanded:
		return "landed"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeAdopted:
		return "adopted"
	case OutcomeConflicted:
		return "conflicted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// style maps an outcome to its display style.
func (o Outcome) style() func(string) string {
	switch o {
	case OutcomeCreated, OutcomeAdopted, OutcomeLanded:
		return func(s string) string { return output.CreatedStyle.Render(s) }
	case OutcomeUpdated:
		return func(s string) string { return output.UpdatedStyle.Render(s) }
	case OutcomeUnchanged, OutcomeSkipped:
		return func(s string) string { return output.UnchangedStyle.Render(s) }
	case OutcomeConflicted:
		return func(s string) string { return output.WarnStyle.Render(s) }
	case OutcomeFailed, OutcomeAbandoned:
		return func(s string) string { return output.ErrorStyle.Render(s) }
	default:
		return func(s string) string { return s }
	}
}

// Result is the per-change record of an action.
type Result struct {
	ChangeID string
	Title    string
	Number   int
	URL      string
	Outcome  Outcome

	// Detail carries the reason for skipped, conflicted and failed
	// outcomes.
	Detail string
}

// Report collects the results of one action run.
type Report struct {
	Results []Result
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Failed reports whether any change ended in a failure.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Find returns the result for a change ID, or nil.
func (r *Report) Find(changeID string) *Result {
	for i := range r.Results {
		if r.Results[i].ChangeID == changeID {
			return &r.Results[i]
		}
	}
	return nil
}

// render prints one line per result through the logger.
func (r *Report) render(splog *output.Splog) {
	for _, res := range r.Results {
		label := res.Outcome.style()(res.Outcome.String())
		line := fmt.Sprintf("%s  %s", label, res.Title)
		if res.URL != "" {
			line += "  " + output.DimStyle.Render(res.URL)
		}
		if res.Detail != "" {
			line += "  " + output.DimStyle.Render("("+res.Detail+")")
		}
		splog.Info("%s", line)
	}
}
