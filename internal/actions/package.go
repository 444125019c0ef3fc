package actions

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rigup-sh/rigup/internal/shell"
)

// PackageAction installs a package via a package manager.
//
// Satisfied queries the manager's own database (rpm -q, dpkg -s, brew list),
// which is guaranteed side-effect free. Managers without a usable query
// command (mas, nix) report ErrNotCheckable and are installed
// unconditionally. When Version is set and the manager can report an
// installed version, the installed version must match it as a prefix.
type PackageAction struct {
	Name    string
	Manager string // e.g. "brew", "yum", "apt-get"
	Version string // optional version constraint, prefix match
}

func (a *PackageAction) Kind() Kind { return KindPackage }

func (a *PackageAction) Describe() string {
	if a.Version != "" {
		return fmt.Sprintf("install package %q@%s via %s", a.Name, a.Version, a.Manager)
	}
	return fmt.Sprintf("install package %q via %s", a.Name, a.Manager)
}

func (a *PackageAction) Satisfied(ctx context.Context) (bool, error) {
	check := checkArgs(a.Manager, a.Name)
	if check == nil {
		return false, ErrNotCheckable
	}
	ok, err := execSucceeds(ctx, check)
	if err != nil || !ok {
		return false, err
	}
	if a.Version == "" {
		return true, nil
	}

	query := versionArgs(a.Manager, a.Name)
	if query == nil {
		return true, nil // installed; version not verifiable for this manager
	}
	out, err := shell.Exec(ctx, query[0], query[1:]...)
	if err != nil {
		return true, nil // installed; a failing version query does not force a reinstall
	}
	return versionMatches(installedVersion(a.Manager, out), a.Version), nil
}

func (a *PackageAction) Apply(ctx context.Context) error {
	args, err := installArgs(a.Manager, a.Name)
	if err != nil {
		return err
	}
	if needsRoot(a.Manager) {
		args = elevate(args)
	}
	out, err := shell.Exec(ctx, args[0], args[1:]...)
	if err != nil {
		return outputErr(err, out)
	}
	return nil
}

// execSucceeds runs a query command and maps a non-zero exit to false rather
// than an error, keeping Satisfied quiet about "not installed".
func execSucceeds(ctx context.Context, args []string) (bool, error) {
	_, err := shell.Exec(ctx, args[0], args[1:]...)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// installArgs returns the command + arguments needed to install pkg with the
// given manager. Root elevation is the caller's concern.
func installArgs(manager, pkg string) ([]string, error) {
	switch manager {
	case "brew":
		return []string{"brew", "install", pkg}, nil
	case "brew-cask":
		return []string{"brew", "install", "--cask", pkg}, nil
	case "mas":
		return []string{"mas", "install", pkg}, nil
	case "apt", "apt-get":
		return []string{"apt-get", "install", "-y", pkg}, nil
	case "dnf":
		return []string{"dnf", "install", "-y", pkg}, nil
	case "yum":
		return []string{"yum", "install", "-y", pkg}, nil
	case "pacman":
		return []string{"pacman", "-S", "--noconfirm", pkg}, nil
	case "zypper":
		return []string{"zypper", "--non-interactive", "install", pkg}, nil
	case "apk":
		return []string{"apk", "add", pkg}, nil
	case "snap":
		return []string{"snap", "install", pkg}, nil
	case "flatpak":
		return []string{"flatpak", "install", "-y", pkg}, nil
	case "nix":
		return []string{"nix-env", "-iA", pkg}, nil
	default:
		return nil, fmt.Errorf("unknown package manager: %q", manager)
	}
}

// checkArgs returns a command whose zero exit means pkg is installed, or nil
// when the manager cannot be queried cleanly.
func checkArgs(manager, pkg string) []string {
	switch manager {
	case "brew":
		return []string{"brew", "list", "--versions", pkg}
	case "brew-cask":
		return []string{"brew", "list", "--cask", "--versions", pkg}
	case "apt", "apt-get":
		return []string{"dpkg", "-s", pkg}
	case "dnf", "yum", "zypper":
		return []string{"rpm", "-q", pkg}
	case "pacman":
		return []string{"pacman", "-Q", pkg}
	case "apk":
		return []string{"apk", "info", "-e", pkg}
	case "snap":
		return []string{"snap", "list", pkg}
	case "flatpak":
		return []string{"flatpak", "info", pkg}
	default:
		return nil // mas, nix, unknown: not checkable
	}
}

// versionArgs returns a command that prints the installed version of pkg, or
// nil when the manager cannot report one.
func versionArgs(manager, pkg string) []string {
	switch manager {
	case "brew":
		return []string{"brew", "list", "--versions", pkg}
	case "apt", "apt-get":
		return []string{"dpkg-query", "-W", "-f=${Version}", pkg}
	case "dnf", "yum", "zypper":
		return []string{"rpm", "-q", "--qf", "%{VERSION}", pkg}
	case "pacman":
		return []string{"pacman", "-Q", pkg}
	default:
		return nil
	}
}

// installedVersion extracts the version from a version query's output.
// brew and pacman print "name version [...]"; dpkg-query and rpm print the
// bare version.
func installedVersion(manager, out string) string {
	out = strings.TrimSpace(out)
	switch manager {
	case "brew", "pacman":
		fields := strings.Fields(out)
		if len(fields) >= 2 {
			return fields[1]
		}
		return ""
	default:
		return out
	}
}

// versionMatches reports whether installed satisfies the want constraint as a
// prefix, ignoring a leading "v" on either side.
func versionMatches(installed, want string) bool {
	installed = strings.TrimPrefix(installed, "v")
	want = strings.TrimPrefix(want, "v")
	if installed == "" {
		return false
	}
	return strings.HasPrefix(installed, want)
}

func needsRoot(manager string) bool {
	switch manager {
	case "apt", "apt-get", "dnf", "yum", "pacman", "zypper", "apk", "snap":
		return true
	}
	return false
}
