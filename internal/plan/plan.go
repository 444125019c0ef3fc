// Package plan turns a manifest and a probe result into the ordered list of
// actions a run will execute. Building a plan is pure data transformation:
// no command runs, no file is written, and identical inputs always produce
// the identical sequence.
package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rigup-sh/rigup/internal/actions"
	"github.com/rigup-sh/rigup/internal/ageutil"
	"github.com/rigup-sh/rigup/internal/manifest"
	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/probe"
	"github.com/rigup-sh/rigup/internal/template"
)

// Phases order the plan so dependencies land before their dependents:
// a package manager exists before packages install, packages before files
// (a dotfile may configure a just-installed tool), and users before every
// action that resolves a path in their home. Within a phase, manifest
// declaration order is kept.
const (
	phaseBootstrap = iota
	phasePackage
	phaseUser
	phaseSSHKey
	phaseTool // run, binary, setting
	phaseFile
	phaseCount
)

// InvalidManifestError reports an entry that can never apply on the probed
// machine. It is fatal: planning fails and no action runs.
type InvalidManifestError struct {
	Index  int    // 1-based entry position
	Entry  string // e.g. `package "vim"`
	Reason string
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("manifest entry %d (%s): %s", e.Index, e.Entry, e.Reason)
}

// Build plans the run. Entries gated off this machine by only/except tags or
// by a per-family destination that has no value here are dropped silently;
// entries that could never apply here (a linux-only manager pinned on macos,
// a defaults setting off macos, a binary with no source for this family, a
// relative file source in a directory-less remote manifest) fail with
// *InvalidManifestError.
func Build(m *manifest.Manifest, pr *probe.Result) ([]actions.Action, error) {
	facts := pr.Facts()
	phases := make([][]actions.Action, phaseCount)
	needBrew := false
	var ageKey *ageutil.Key

	for i, raw := range m.Entries {
		entry, err := template.RenderEntry(raw, facts)
		if err != nil {
			return nil, invalid(i, raw, err.Error())
		}
		if !pr.Matches(entry.Only, entry.Except) {
			continue
		}

		switch entry.Type() {
		case "package":
			mgr, err := resolveManager(entry.Manager, pr)
			if err != nil {
				return nil, invalid(i, entry, err.Error())
			}
			if isBrew(mgr) && !pr.HasManager("brew") {
				needBrew = true
			}
			phases[phasePackage] = append(phases[phasePackage], &actions.PackageAction{
				Name:    entry.Package,
				Manager: mgr,
				Version: entry.Version,
			})

		case "user":
			phases[phaseUser] = append(phases[phaseUser], &actions.UserAction{
				Name:    entry.User,
				Groups:  entry.Groups,
				Shell:   entry.Shell,
				System:  entry.System,
				HomeDir: entry.Home,
				Family:  pr.Family,
			})

		case "sshkey":
			phases[phaseSSHKey] = append(phases[phaseSSHKey], &actions.SSHKeyAction{
				Path:    entry.SSHKey,
				Type:    entry.KeyType,
				Bits:    entry.Bits,
				Comment: entry.Comment,
			})

		case "run":
			phases[phaseTool] = append(phases[phaseTool], &actions.RunAction{
				Command: entry.Run,
				Creates: entry.Creates,
				Check:   entry.Check,
			})

		case "binary":
			src := entry.Source.For(pr.Family)
			if src == "" {
				return nil, invalid(i, entry, fmt.Sprintf("no source URL for %s", pr.Family))
			}
			installTo := entry.InstallTo
			if installTo == "" {
				installTo = "~/.local/bin"
			}
			phases[phaseTool] = append(phases[phaseTool], &actions.BinaryAction{
				Name:      entry.Binary,
				Version:   entry.Version,
				SourceURL: src,
				InstallTo: installTo,
			})

		case "setting":
			if pr.Family != platform.FamilyMacOS {
				return nil, invalid(i, entry, "defaults settings require macos; gate the entry with only: [macos]")
			}
			phases[phaseTool] = append(phases[phaseTool], &actions.SettingAction{
				Domain: entry.Setting,
				Key:    entry.Key,
				Value:  entry.Value,
			})

		case "file":
			dest := entry.Destination.For(pr.Family)
			if dest == "" {
				continue // declared for another family only
			}
			if m.Dir == "" && !filepath.IsAbs(entry.File) {
				return nil, invalid(i, entry, "relative source with no manifest directory; remote manifests need absolute file sources")
			}
			var mode os.FileMode
			if entry.Mode != "" {
				mode, err = manifest.ParseMode(entry.Mode)
				if err != nil {
					return nil, invalid(i, entry, err.Error())
				}
			}
			if entry.Encrypted && ageKey == nil {
				ageKey = ageutil.FromEnv()
			}
			phases[phaseFile] = append(phases[phaseFile], &actions.FileAction{
				Source:      resolveSource(m.Dir, entry.File),
				Destination: dest,
				Mode:        mode,
				Owner:       entry.Owner,
				Link:        entry.Link,
				Encrypted:   entry.Encrypted,
				AgeKey:      ageKey,
			})

		default:
			return nil, invalid(i, entry, "declares nothing rigup can apply")
		}
	}

	if needBrew {
		phases[phaseBootstrap] = append(phases[phaseBootstrap], &actions.BootstrapAction{Manager: "brew"})
	}

	var out []actions.Action
	for _, phase := range phases {
		out = append(out, phase...)
	}
	return out, nil
}

// resolveManager picks the package manager for an entry: the entry's pin if
// set, else the probed manager, else Homebrew on macOS (the bootstrap phase
// installs it). Pins bound to the wrong family are impossible, not skips.
func resolveManager(pin string, pr *probe.Result) (string, error) {
	if pin == "" {
		if pr.Manager != "" {
			return pr.Manager, nil
		}
		if pr.Family == platform.FamilyMacOS {
			return "brew", nil
		}
		return "", fmt.Errorf("no package manager found on this machine")
	}
	if isBrew(pin) {
		return pin, nil // Homebrew bootstraps on either family
	}
	if mf, ok := platform.ManagerFamily(pin); ok && mf != pr.Family {
		return "", fmt.Errorf("manager %q targets %s, this machine is %s", pin, mf, pr.Family)
	}
	return pin, nil
}

func isBrew(manager string) bool {
	return manager == "brew" || manager == "brew-cask"
}

// resolveSource anchors a relative file source at the manifest's directory.
// Build rejects relative sources in directory-less manifests before this runs.
func resolveSource(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

func invalid(index int, entry manifest.Entry, reason string) error {
	label := entry.Type()
	if t := entry.Target(); t != "" {
		label = fmt.Sprintf("%s %q", entry.Type(), t)
	}
	return &InvalidManifestError{Index: index + 1, Entry: label, Reason: reason}
}
