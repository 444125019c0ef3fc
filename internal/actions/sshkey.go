package actions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/shell"
	"github.com/rigup-sh/rigup/internal/sshutil"
)

// SSHKeyAction generates an SSH keypair with ssh-keygen. The pair counts as
// present when both halves exist; a private key whose .pub went missing is
// repaired by re-deriving the public half instead of regenerating.
//
// The action never sets a passphrase. Key custody beyond generation is the
// operator's business.
type SSHKeyAction struct {
	Path    string // private key path, may contain ~ and $VARS
	Type    string // ed25519 (default) | rsa | ecdsa
	Bits    int    // rsa only
	Comment string
}

func (a *SSHKeyAction) Kind() Kind { return KindSSHKey }

func (a *SSHKeyAction) Describe() string {
	return fmt.Sprintf("generate ssh key %s (%s)", a.Path, a.keyType())
}

func (a *SSHKeyAction) Satisfied(ctx context.Context) (bool, error) {
	priv := platform.ExpandPath(a.Path)
	return fileExists(priv) && fileExists(priv+".pub"), nil
}

func (a *SSHKeyAction) Apply(ctx context.Context) error {
	priv := platform.ExpandPath(a.Path)
	if strings.HasPrefix(priv, "~") {
		return fmt.Errorf("cannot resolve %q: user not present yet", a.Path)
	}

	if fileExists(priv) && !fileExists(priv+".pub") {
		return a.derivePublic(ctx, priv)
	}

	if err := os.MkdirAll(filepath.Dir(priv), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	args := []string{"ssh-keygen", "-q", "-t", a.keyType(), "-f", priv, "-N", ""}
	if a.keyType() == "rsa" && a.Bits > 0 {
		args = append(args, "-b", strconv.Itoa(a.Bits))
	}
	if a.Comment != "" {
		args = append(args, "-C", a.Comment)
	}
	out, err := shell.Exec(ctx, args[0], args[1:]...)
	if err != nil {
		return outputErr(err, out)
	}
	return nil
}

// derivePublic regenerates the .pub file from an existing private key.
func (a *SSHKeyAction) derivePublic(ctx context.Context, priv string) error {
	out, err := exec.CommandContext(ctx, "ssh-keygen", "-y", "-f", priv).Output()
	if err != nil {
		return fmt.Errorf("derive public key from %s: %w", priv, err)
	}
	return os.WriteFile(priv+".pub", out, 0o644)
}

// Credential surfaces the public key so the operator can copy it elsewhere.
func (a *SSHKeyAction) Credential() (Credential, bool) {
	key, err := sshutil.ReadFile(platform.ExpandPath(a.Path) + ".pub")
	if err != nil {
		return Credential{}, false
	}
	return Credential{
		Name:        "ssh key " + a.Path,
		PublicKey:   key.Line,
		Fingerprint: key.Fingerprint,
	}, true
}

func (a *SSHKeyAction) keyType() string {
	if a.Type == "" {
		return "ed25519"
	}
	return a.Type
}
