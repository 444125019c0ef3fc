// Package platform resolves the operating-system family the tool runs on
// and maps package managers and filesystem paths onto it.
package platform

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Family is the closed set of operating-system families rigup can bootstrap.
// Callers switch over it exhaustively instead of comparing GOOS strings.
type Family int

const (
	FamilyUnsupported Family = iota
	FamilyLinux
	FamilyMacOS
)

// String returns the manifest-facing name of the family.
func (f Family) String() string {
	switch f {
	case FamilyLinux:
		return "linux"
	case FamilyMacOS:
		return "macos"
	default:
		return "unsupported"
	}
}

// ParseFamily maps a manifest tag to a Family. Accepts "darwin" and "osx"
// as aliases for macos.
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(s) {
	case "linux":
		return FamilyLinux, true
	case "macos", "darwin", "osx":
		return FamilyMacOS, true
	default:
		return FamilyUnsupported, false
	}
}

// UnsupportedPlatformError reports a GOOS value rigup cannot bootstrap.
// It is fatal: probing fails and no action ever runs.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q: rigup supports linux and macos", e.GOOS)
}

// DetectFamily maps a GOOS value to its Family.
func DetectFamily(goos string) (Family, error) {
	switch goos {
	case "linux":
		return FamilyLinux, nil
	case "darwin":
		return FamilyMacOS, nil
	default:
		return FamilyUnsupported, &UnsupportedPlatformError{GOOS: goos}
	}
}

// Detect returns the Family of the running process.
func Detect() (Family, error) {
	return DetectFamily(runtime.GOOS)
}

// ManagerCandidates lists the package managers probed for on each family,
// in preference order. The first one found on PATH wins. brew trails the
// linux list so a system manager is preferred over linuxbrew.
func ManagerCandidates(f Family) []string {
	switch f {
	case FamilyMacOS:
		return []string{"brew"}
	case FamilyLinux:
		return []string{"apt-get", "apt", "dnf", "yum", "pacman", "zypper", "apk", "brew"}
	default:
		return nil
	}
}

// ManagerFamily maps a package manager name to the family it is bound to.
// ok is false for managers that run anywhere (brew, nix, flatpak) and for
// unknown names.
func ManagerFamily(manager string) (f Family, ok bool) {
	switch manager {
	case "mas":
		return FamilyMacOS, true
	case "apt", "apt-get", "dnf", "yum", "pacman", "zypper", "apk", "snap":
		return FamilyLinux, true
	default:
		return FamilyUnsupported, false
	}
}

// ExpandPath expands a leading "~/", "~", or "~name/" and environment
// variables in path. "~name" resolves through the OS user database, so it
// stays literal until that user exists; callers that require a resolved
// path must check for a remaining "~" prefix.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	case strings.HasPrefix(path, "~"):
		name, rest, _ := strings.Cut(path[1:], "/")
		if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
			path = filepath.Join(u.HomeDir, rest)
		}
	}
	return os.ExpandEnv(path)
}
