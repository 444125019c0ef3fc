package actions

import (
	"context"
	"fmt"

	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/shell"
)

// RunAction executes an inline shell command declared in the manifest.
//
// Idempotency comes from the declared marker: Creates names a path whose
// existence satisfies the entry, Check a command whose zero exit does. With
// neither marker the state is not checkable and the command runs on every
// invocation.
type RunAction struct {
	Command string
	Creates string // path, may contain ~ and $VARS
	Check   string // shell command
}

func (a *RunAction) Kind() Kind { return KindRun }

func (a *RunAction) Describe() string {
	switch {
	case a.Creates != "":
		return fmt.Sprintf("run %q (creates %s)", a.Command, a.Creates)
	case a.Check != "":
		return fmt.Sprintf("run %q (unless %q)", a.Command, a.Check)
	default:
		return fmt.Sprintf("run %q", a.Command)
	}
}

func (a *RunAction) Satisfied(ctx context.Context) (bool, error) {
	switch {
	case a.Creates != "":
		return fileExists(platform.ExpandPath(a.Creates)), nil
	case a.Check != "":
		return shell.Eval(ctx, a.Check)
	default:
		return false, ErrNotCheckable
	}
}

func (a *RunAction) Apply(ctx context.Context) error {
	out, err := shell.Capture(ctx, a.Command)
	if err != nil {
		return outputErr(err, out)
	}
	return nil
}
