package actions

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"strings"

	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/shell"
)

// UserAction provisions a local account. Creation needs root (sudo is
// prepended when running unprivileged); the precondition only needs the user
// database. System is a linux notion and is ignored on macOS.
type UserAction struct {
	Name    string
	Groups  []string
	Shell   string
	System  bool
	HomeDir string // override; empty picks the OS default
	Family  platform.Family
}

func (a *UserAction) Kind() Kind { return KindUser }

func (a *UserAction) Describe() string {
	if len(a.Groups) > 0 {
		return fmt.Sprintf("create user %q (groups %s)", a.Name, strings.Join(a.Groups, ","))
	}
	return fmt.Sprintf("create user %q", a.Name)
}

func (a *UserAction) Satisfied(ctx context.Context) (bool, error) {
	_, err := user.Lookup(a.Name)
	if err == nil {
		return true, nil
	}
	var unknown user.UnknownUserError
	if errors.As(err, &unknown) {
		return false, nil
	}
	return false, err
}

func (a *UserAction) Apply(ctx context.Context) error {
	switch a.Family {
	case platform.FamilyLinux:
		return a.applyLinux(ctx)
	case platform.FamilyMacOS:
		return a.applyMacOS(ctx)
	default:
		return fmt.Errorf("cannot create users on %s", a.Family)
	}
}

func (a *UserAction) applyLinux(ctx context.Context) error {
	args := []string{"useradd", "-m"}
	if a.System {
		args = append(args, "-r")
	}
	if a.Shell != "" {
		args = append(args, "-s", a.Shell)
	}
	if a.HomeDir != "" {
		args = append(args, "-d", a.HomeDir)
	}
	if len(a.Groups) > 0 {
		args = append(args, "-G", strings.Join(a.Groups, ","))
	}
	args = append(args, a.Name)

	args = elevate(args)
	out, err := shell.Exec(ctx, args[0], args[1:]...)
	if err != nil {
		return outputErr(err, out)
	}
	return nil
}

func (a *UserAction) applyMacOS(ctx context.Context) error {
	args := []string{"sysadminctl", "-addUser", a.Name}
	if a.Shell != "" {
		args = append(args, "-shell", a.Shell)
	}
	if a.HomeDir != "" {
		args = append(args, "-home", a.HomeDir)
	}

	args = elevate(args)
	out, err := shell.Exec(ctx, args[0], args[1:]...)
	if err != nil {
		return outputErr(err, out)
	}

	for _, group := range a.Groups {
		gargs := elevate([]string{"dseditgroup", "-o", "edit", "-a", a.Name, "-t", "user", group})
		out, err := shell.Exec(ctx, gargs[0], gargs[1:]...)
		if err != nil {
			return outputErr(fmt.Errorf("add to group %s: %w", group, err), out)
		}
	}
	return nil
}
