// Package probe inspects the machine rigup is about to bootstrap: OS family,
// package-manager availability, existing users and SSH keys, and per-run
// facts used for templating and tag gating. Probing is read-only.
package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/sshutil"
)

// Result is the machine snapshot taken once per run. Read-only afterward;
// action preconditions re-check live state instead of trusting it.
type Result struct {
	Family   platform.Family
	Manager  string   // preferred package manager, "" when none found
	Managers []string // every candidate manager found on PATH
	Users    map[string]bool
	Keys     []sshutil.PublicKey

	Hostname string
	Arch     string
	User     string
	UID      int
	Home     string
	Tags     []string
}

// Run gathers the probe result for the running machine. It fails with
// *platform.UnsupportedPlatformError on a GOOS rigup cannot bootstrap.
func Run(ctx context.Context) (*Result, error) {
	family, err := platform.Detect()
	if err != nil {
		return nil, err
	}
	return run(ctx, family)
}

func run(ctx context.Context, family platform.Family) (*Result, error) {
	r := &Result{Family: family, Arch: runtime.GOARCH}

	for _, m := range platform.ManagerCandidates(family) {
		if _, err := exec.LookPath(m); err == nil {
			r.Managers = append(r.Managers, m)
		}
	}
	if len(r.Managers) > 0 {
		r.Manager = r.Managers[0]
	}

	if h, err := os.Hostname(); err == nil {
		r.Hostname = h
	}

	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	r.User = u.Username
	r.Home = u.HomeDir
	if uid, err := strconv.Atoi(u.Uid); err == nil {
		r.UID = uid
	}

	r.Users = listUsers(ctx, family)
	r.Keys = sshutil.ScanDir(filepath.Join(r.Home, ".ssh"))
	r.Tags = machineTags(family, r.Hostname, r.Arch)
	return r, nil
}

// Facts returns the template data exposed to manifest entries.
func (r *Result) Facts() map[string]any {
	return map[string]any{
		"Family":   r.Family.String(),
		"Arch":     r.Arch,
		"Hostname": r.Hostname,
		"User":     r.User,
		"Home":     r.Home,
		"Manager":  r.Manager,
	}
}

// HasManager reports whether name was found on PATH during the probe.
func (r *Result) HasManager(name string) bool {
	return slices.Contains(r.Managers, name)
}

// HasUser reports whether the probe saw an account with this name.
func (r *Result) HasUser(name string) bool {
	return r.Users[name]
}

// Matches reports whether the machine's tags satisfy an entry's only/except
// constraints: every except tag must be absent, and when only is non-empty
// at least one of its tags must be present.
func (r *Result) Matches(only, except []string) bool {
	for _, t := range except {
		if slices.Contains(r.Tags, t) {
			return false
		}
	}
	if len(only) == 0 {
		return true
	}
	for _, t := range only {
		if slices.Contains(r.Tags, t) {
			return true
		}
	}
	return false
}

// machineTags derives the per-run tag set. Tags are never persisted; a
// machine is re-described on every run.
func machineTags(family platform.Family, hostname, arch string) []string {
	tags := []string{family.String()}
	if family == platform.FamilyMacOS {
		tags = append(tags, "darwin")
	}
	tags = append(tags, arch)
	if hostname != "" {
		tags = append(tags, hostname)
	}
	return tags
}

// listUsers enumerates existing accounts, best-effort. Preconditions re-check
// through the user database at execution time, so gaps here only affect the
// probe display.
func listUsers(ctx context.Context, family platform.Family) map[string]bool {
	switch family {
	case platform.FamilyLinux:
		f, err := os.Open("/etc/passwd")
		if err != nil {
			return map[string]bool{}
		}
		defer f.Close()
		return parsePasswd(f)
	case platform.FamilyMacOS:
		out, err := exec.CommandContext(ctx, "dscl", ".", "-list", "/Users").Output()
		if err != nil {
			return map[string]bool{}
		}
		users := map[string]bool{}
		for _, line := range strings.Split(string(out), "\n") {
			if name := strings.TrimSpace(line); name != "" {
				users[name] = true
			}
		}
		return users
	}
	return map[string]bool{}
}

func parsePasswd(r io.Reader) map[string]bool {
	users := map[string]bool{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, _, ok := strings.Cut(line, ":")
		if ok && name != "" {
			users[name] = true
		}
	}
	return users
}
