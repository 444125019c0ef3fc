// Package executor applies a planned action sequence to the machine, one
// action at a time. It owns the run policy: preconditions are re-checked at
// execution time, effects are verified after they run, non-fatal failures are
// recorded and skipped past, and fatal ones abort the run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rigup-sh/rigup/internal/actions"
	"github.com/rigup-sh/rigup/internal/audit"
	"github.com/rigup-sh/rigup/internal/backup"
	"github.com/rigup-sh/rigup/internal/color"
)

// Status is the outcome of one action.
type Status string

const (
	StatusApplied    Status = "applied"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusWouldApply Status = "would apply" // dry-run only
)

// Result records what happened to one action. Results are aggregated by the
// report package and appended to the audit log; nothing re-reads them.
type Result struct {
	Action   actions.Action
	Status   Status
	Reason   string // failure reason, carrying the underlying tool's text verbatim
	Duration time.Duration
}

// Executor runs actions sequentially on the current machine.
type Executor struct {
	DryRun  bool
	Verbose bool
	Out     io.Writer
	Backup  *backup.Dir // pre-overwrite copies; nil disables
	Command string      // audit log label
}

// New creates an Executor writing to stdout.
func New(dryRun, verbose bool) *Executor {
	return &Executor{
		DryRun:  dryRun,
		Verbose: verbose,
		Out:     os.Stdout,
		Command: "apply",
	}
}

// Run executes every action in order. It returns the results of everything
// attempted and a non-nil error only when the run aborted: the context ended,
// or an action failed with a fatal error. Non-fatal failures are recorded in
// their Result and execution continues.
func (e *Executor) Run(ctx context.Context, acts []actions.Action) ([]Result, error) {
	results := make([]Result, 0, len(acts))
	for _, a := range acts {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("run interrupted: %w", err)
		}

		res, fatal := e.runOne(ctx, a)
		results = append(results, res)
		e.record(res)
		if fatal != nil {
			return results, fatal
		}
	}
	return results, nil
}

// runOne takes a single action through its lifecycle: precondition, backup,
// apply, postcondition. The returned error is non-nil only when the failure
// must abort the run.
func (e *Executor) runOne(ctx context.Context, a actions.Action) (Result, error) {
	start := time.Now()
	done := func(status Status, reason string) Result {
		return Result{Action: a, Status: status, Reason: reason, Duration: time.Since(start)}
	}

	// Precondition, evaluated now rather than at planning time. A probe that
	// cannot determine its state (ErrNotCheckable) or fails outright counts
	// as unsatisfied; applying is safe because every action is idempotent.
	satisfied, err := a.Satisfied(ctx)
	if err != nil && !errors.Is(err, actions.ErrNotCheckable) {
		satisfied = false
	}
	checkable := !errors.Is(err, actions.ErrNotCheckable)

	if satisfied {
		if e.Verbose {
			fmt.Fprintf(e.Out, "  %s %s\n", color.Dim("ok"), a.Describe())
		}
		return done(StatusSkipped, ""), nil
	}

	if e.DryRun {
		fmt.Fprintf(e.Out, "  %s %s\n", color.Cyan("would"), a.Describe())
		return done(StatusWouldApply, ""), nil
	}

	fmt.Fprintf(e.Out, "  -> %s\n", a.Describe())

	e.preserve(a)

	if err := a.Apply(ctx); err != nil {
		res := done(StatusFailed, err.Error())
		if actions.IsFatal(err) || ctx.Err() != nil {
			fmt.Fprintf(e.Out, "     %s %v\n", color.BoldRed("fatal:"), err)
			return res, fmt.Errorf("%s: %w", a.Describe(), err)
		}
		fmt.Fprintf(e.Out, "     %s %v\n", color.Red("failed:"), err)
		return res, nil
	}

	// Postcondition. Only a clean "still unsatisfied" fails the action; an
	// uncheckable or erroring probe leaves the successful apply standing.
	if checkable {
		ok, err := a.Satisfied(ctx)
		if err == nil && !ok {
			reason := "applied but postcondition still unsatisfied"
			fmt.Fprintf(e.Out, "     %s %s\n", color.Red("failed:"), reason)
			return done(StatusFailed, reason), nil
		}
	}
	return done(StatusApplied, ""), nil
}

// preserve copies the paths an action is about to overwrite into the backup
// directory. Backups are best-effort: a failed copy is reported but never
// blocks the apply.
func (e *Executor) preserve(a actions.Action) {
	if e.Backup == nil {
		return
	}
	b, ok := a.(actions.Backupper)
	if !ok {
		return
	}
	for _, path := range b.BackupPaths() {
		saved, err := e.Backup.Save(path)
		if err != nil {
			fmt.Fprintf(e.Out, "     %s %v\n", color.Yellow("backup:"), err)
			continue
		}
		if saved != "" && e.Verbose {
			fmt.Fprintf(e.Out, "     backed up %s\n", path)
		}
	}
}

// record appends the result to the audit log. Dry runs change nothing and are
// not history.
func (e *Executor) record(res Result) {
	if e.DryRun {
		return
	}
	audit.Log(audit.Entry{
		Command: e.Command,
		Kind:    string(res.Action.Kind()),
		Action:  res.Action.Describe(),
		Outcome: string(res.Status),
		Reason:  res.Reason,
	})
}
