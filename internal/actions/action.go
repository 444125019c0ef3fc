package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Kind identifies the state an action manages.
type Kind string

const (
	KindBootstrap Kind = "bootstrap"
	KindPackage   Kind = "package"
	KindUser      Kind = "user"
	KindSSHKey    Kind = "sshkey"
	KindRun       Kind = "run"
	KindBinary    Kind = "binary"
	KindSetting   Kind = "setting"
	KindFile      Kind = "file"
)

// Action is a single idempotent step produced by the planner and consumed by
// the executor.
//
// Satisfied is the precondition probe: side-effect free, and re-evaluated at
// execution time rather than trusted from planning time, so the decision
// reflects the machine as it is when the action runs. After Apply succeeds
// the executor evaluates Satisfied once more as the postcondition.
type Action interface {
	// Kind returns the action's kind.
	Kind() Kind
	// Describe returns a human-readable summary of the action.
	Describe() string
	// Satisfied reports whether the desired state is already in place.
	Satisfied(ctx context.Context) (bool, error)
	// Apply performs the effect.
	Apply(ctx context.Context) error
}

// ErrNotCheckable is returned by Satisfied when an action has no way to probe
// its own state (a run entry without creates/check, a package manager with no
// query command). The executor treats it as "not yet applied" before the
// action runs and trusts Apply's success afterwards.
var ErrNotCheckable = errors.New("state not checkable")

// Credential is an artifact generated by an action that the operator needs to
// see and copy elsewhere, such as a freshly generated SSH public key.
type Credential struct {
	Name        string
	PublicKey   string // authorized_keys line
	Fingerprint string // SHA256:... form
}

// Credentialer is implemented by actions that generate credentials. The
// executor collects credentials from applied actions for the final report.
type Credentialer interface {
	Credential() (Credential, bool)
}

// Backupper is implemented by actions that overwrite files the operator may
// want preserved. The executor snapshots the returned paths before Apply.
type Backupper interface {
	BackupPaths() []string
}

// FatalError marks an error that must abort the run instead of being recorded
// as a per-action failure.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the executor aborts on it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// euid is a seam for tests.
var euid = os.Geteuid

// elevate prepends sudo when not already running as root.
func elevate(args []string) []string {
	if euid() == 0 {
		return args
	}
	return append([]string{"sudo"}, args...)
}

// outputErr attaches a tool's combined output to its error so failure reasons
// carry the tool's own words.
func outputErr(err error, out string) error {
	out = strings.TrimSpace(out)
	if out == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, out)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
