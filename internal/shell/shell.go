// Package shell runs manifest-supplied commands and external tools,
// capturing their output so failures can be reported in the tool's own words.
package shell

import (
	"context"
	"os/exec"
)

// Run executes command through "sh -c" and returns an error on non-zero exit.
func Run(ctx context.Context, command string) error {
	return shellCmd(ctx, command).Run()
}

// Eval executes command through "sh -c" and reports whether it exited 0.
// A non-zero exit is not treated as a Go error; only execution failures are.
func Eval(ctx context.Context, command string) (exitsZero bool, err error) {
	runErr := shellCmd(ctx, command).Run()
	if runErr == nil {
		return true, nil
	}
	if _, ok := runErr.(*exec.ExitError); ok {
		return false, nil // non-zero exit is expected and not an error
	}
	return false, runErr // real execution failure (shell not found, etc.)
}

// Capture executes command through "sh -c" and returns its combined
// stdout+stderr. On non-zero exit the output is still returned alongside the
// error so callers can surface the failing tool's text verbatim.
func Capture(ctx context.Context, command string) (string, error) {
	out, err := shellCmd(ctx, command).CombinedOutput()
	return string(out), err
}

// Exec runs an argv-style command (no shell interpretation) and returns its
// combined stdout+stderr, with the same output-on-failure contract as Capture.
func Exec(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

func shellCmd(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", "-c", command)
}
