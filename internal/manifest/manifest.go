// Package manifest defines the declarative desired-state document rigup
// consumes: an ordered list of entries describing packages, users, files,
// SSH keys, commands, binaries, and settings a machine should have.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rigup-sh/rigup/internal/platform"
)

//go:embed default.yaml
var defaultYAML []byte

// Manifest is the parsed desired-state document. Immutable once loaded.
type Manifest struct {
	Name    string  `yaml:"name,omitempty"`
	Entries []Entry `yaml:"entries"`

	// Dir is the directory the manifest was loaded from. Relative file
	// sources resolve against it. Empty for the bundled manifest.
	Dir string `yaml:"-"`
}

// Entry declares one piece of desired machine state. The entry kind is
// determined by which field is populated.
type Entry struct {
	// Package installation
	Package string `yaml:"package,omitempty"`
	Manager string `yaml:"manager,omitempty"` // pin a manager instead of the probed one
	Version string `yaml:"version,omitempty"`

	// User account
	User   string   `yaml:"user,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
	Shell  string   `yaml:"shell,omitempty"`
	System bool     `yaml:"system,omitempty"`
	Home   string   `yaml:"home,omitempty"`

	// File copy / symlink
	File        string    `yaml:"file,omitempty"`
	Destination FamilyMap `yaml:"destination,omitempty"`
	Mode        string    `yaml:"mode,omitempty"`  // octal, e.g. "0644"
	Owner       string    `yaml:"owner,omitempty"` // chown target, honoured when running as root
	Link        bool      `yaml:"link,omitempty"`  // symlink instead of copy
	Encrypted   bool      `yaml:"encrypted,omitempty"`

	// SSH key generation
	SSHKey  string `yaml:"ssh_key,omitempty"`  // private key path
	KeyType string `yaml:"key_type,omitempty"` // ed25519 (default) | rsa | ecdsa
	Bits    int    `yaml:"bits,omitempty"`     // rsa only
	Comment string `yaml:"comment,omitempty"`

	// Shell command
	Run     string `yaml:"run,omitempty"`
	Creates string `yaml:"creates,omitempty"` // path whose existence marks the command satisfied
	Check   string `yaml:"check,omitempty"`   // command whose zero exit marks it satisfied

	// Standalone binary download
	Binary    string    `yaml:"binary,omitempty"`
	Source    FamilyMap `yaml:"source,omitempty"`
	InstallTo string    `yaml:"install_to,omitempty"` // default ~/.local/bin

	// macOS defaults setting
	Setting string `yaml:"setting,omitempty"` // defaults domain
	Key     string `yaml:"key,omitempty"`
	Value   any    `yaml:"value,omitempty"`

	// Machine gating
	Only   []string `yaml:"only,omitempty"`
	Except []string `yaml:"except,omitempty"`
}

// Type returns the entry's kind, determined by which field is populated.
func (e Entry) Type() string {
	switch {
	case e.Package != "":
		return "package"
	case e.User != "":
		return "user"
	case e.File != "":
		return "file"
	case e.SSHKey != "":
		return "sshkey"
	case e.Run != "":
		return "run"
	case e.Binary != "":
		return "binary"
	case e.Setting != "":
		return "setting"
	default:
		return "unknown"
	}
}

// Target returns the entry's primary target string, for descriptions and
// audit entries.
func (e Entry) Target() string {
	switch e.Type() {
	case "package":
		return e.Package
	case "user":
		return e.User
	case "file":
		return e.File
	case "sshkey":
		return e.SSHKey
	case "run":
		return e.Run
	case "binary":
		return e.Binary
	case "setting":
		return e.Setting + " " + e.Key
	default:
		return ""
	}
}

// FamilyMap holds a string that may vary per OS family. It unmarshals from
// either a plain scalar (same value everywhere) or a {linux:, macos:} map.
type FamilyMap struct {
	Default string
	Linux   string
	MacOS   string
}

func (m *FamilyMap) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&m.Default)
	case yaml.MappingNode:
		var aux struct {
			Linux string `yaml:"linux"`
			MacOS string `yaml:"macos"`
		}
		if err := value.Decode(&aux); err != nil {
			return err
		}
		m.Linux, m.MacOS = aux.Linux, aux.MacOS
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a {linux, macos} map", value.Line)
}

func (m FamilyMap) MarshalYAML() (any, error) {
	if m.Linux == "" && m.MacOS == "" {
		return m.Default, nil
	}
	aux := struct {
		Linux string `yaml:"linux,omitempty"`
		MacOS string `yaml:"macos,omitempty"`
	}{m.Linux, m.MacOS}
	return aux, nil
}

// For returns the value for family f, falling back to the plain form.
func (m FamilyMap) For(f platform.Family) string {
	switch f {
	case platform.FamilyLinux:
		if m.Linux != "" {
			return m.Linux
		}
	case platform.FamilyMacOS:
		if m.MacOS != "" {
			return m.MacOS
		}
	}
	return m.Default
}

// IsZero reports whether no value was provided in any form.
func (m FamilyMap) IsZero() bool {
	return m.Default == "" && m.Linux == "" && m.MacOS == ""
}

// Load reads, parses, and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		m.Dir = filepath.Dir(abs)
	}
	return m, nil
}

// Parse parses and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Default returns the bundled starter manifest.
func Default() (*Manifest, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns the raw bundled manifest, commented for editing.
func DefaultYAML() []byte {
	return defaultYAML
}

func (m *Manifest) validate() error {
	for i, e := range m.Entries {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return nil
}

func validateEntry(e Entry) error {
	kinds := 0
	for _, field := range []string{e.Package, e.User, e.File, e.SSHKey, e.Run, e.Binary, e.Setting} {
		if field != "" {
			kinds++
		}
	}
	if kinds == 0 {
		return fmt.Errorf("declares nothing: set one of package, user, file, ssh_key, run, binary, setting")
	}
	if kinds > 1 {
		return fmt.Errorf("declares %d kinds at once; split it into separate entries", kinds)
	}

	switch e.Type() {
	case "file":
		if e.Destination.IsZero() {
			return fmt.Errorf("file %q has no destination", e.File)
		}
		if e.Mode != "" {
			if _, err := ParseMode(e.Mode); err != nil {
				return err
			}
		}
		if e.Link && e.Encrypted {
			return fmt.Errorf("file %q cannot be both link and encrypted", e.File)
		}
	case "sshkey":
		switch e.KeyType {
		case "", "ed25519", "rsa", "ecdsa":
		default:
			return fmt.Errorf("ssh_key %q: unknown key_type %q", e.SSHKey, e.KeyType)
		}
		if e.Bits != 0 && e.KeyType != "rsa" {
			return fmt.Errorf("ssh_key %q: bits only applies to rsa keys", e.SSHKey)
		}
	case "run":
		if e.Creates != "" && e.Check != "" {
			return fmt.Errorf("run entry sets both creates and check; pick one")
		}
	case "setting":
		if e.Key == "" {
			return fmt.Errorf("setting %q has no key", e.Setting)
		}
		if e.Value == nil {
			return fmt.Errorf("setting %q %q has no value", e.Setting, e.Key)
		}
	case "binary":
		if e.Source.IsZero() {
			return fmt.Errorf("binary %q has no source", e.Binary)
		}
	}
	return nil
}

// ParseMode parses an octal file mode string such as "0644" or "600".
func ParseMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	return os.FileMode(n), nil
}
