// Package report aggregates a run's execution results into the summary the
// operator sees: outcome counts, every failure with its tool's own error
// text, and any credentials generated along the way.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rigup-sh/rigup/internal/actions"
	"github.com/rigup-sh/rigup/internal/color"
	"github.com/rigup-sh/rigup/internal/executor"
)

// Summary is the aggregate of one run. Building it has no side effects.
type Summary struct {
	Applied    int
	Skipped    int
	Failed     int
	WouldApply int // dry-run only

	Failures    []Failure
	Credentials []actions.Credential
}

// Failure pairs a failed action with its reason.
type Failure struct {
	Description string
	Reason      string
}

// Summarize folds results into a Summary, collecting credentials from every
// applied action that generated one.
func Summarize(results []executor.Result) Summary {
	var s Summary
	for _, res := range results {
		switch res.Status {
		case executor.StatusApplied:
			s.Applied++
			if c, ok := res.Action.(actions.Credentialer); ok {
				if cred, ok := c.Credential(); ok {
					s.Credentials = append(s.Credentials, cred)
				}
			}
		case executor.StatusSkipped:
			s.Skipped++
		case executor.StatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{
				Description: res.Action.Describe(),
				Reason:      res.Reason,
			})
		case executor.StatusWouldApply:
			s.WouldApply++
		}
	}
	return s
}

// Counts renders the one-line outcome tally.
func (s Summary) Counts() string {
	var parts []string
	if s.WouldApply > 0 {
		parts = append(parts, fmt.Sprintf("would apply %d", s.WouldApply))
	}
	parts = append(parts,
		fmt.Sprintf("applied %d", s.Applied),
		fmt.Sprintf("skipped %d", s.Skipped),
		fmt.Sprintf("failed %d", s.Failed),
	)
	return strings.Join(parts, ", ")
}

// Render writes the operator-facing summary to w.
func (s Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", color.Bold(s.Counts()))

	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", color.BoldRed("failures:"))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s\n", f.Description)
			if f.Reason != "" {
				fmt.Fprintf(w, "    %s\n", f.Reason)
			}
		}
	}

	// Generated credentials are printed in full so the operator can copy
	// them elsewhere; they exist nowhere else but the key files themselves.
	if len(s.Credentials) > 0 {
		fmt.Fprintf(w, "\n%s\n", color.Bold("generated credentials:"))
		for _, c := range s.Credentials {
			fmt.Fprintf(w, "  %s %s\n", c.Name, color.Dim(c.Fingerprint))
			if c.PublicKey != "" {
				fmt.Fprintf(w, "    %s\n", c.PublicKey)
			}
		}
	}
}
