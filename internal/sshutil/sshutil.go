// Package sshutil parses and fingerprints SSH public keys so probe results
// and reports can show what a machine already has.
package sshutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// PublicKey describes one parsed SSH public key.
type PublicKey struct {
	Path        string // file the key was read from, empty when parsed from memory
	Type        string // wire type, e.g. "ssh-ed25519"
	Fingerprint string // SHA256:... fingerprint
	Comment     string
	Line        string // the original authorized_keys line, trimmed
}

// Parse parses a single authorized_keys-format line.
func Parse(data []byte) (PublicKey, error) {
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	return PublicKey{
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
		Comment:     comment,
		Line:        line,
	}, nil
}

// ReadFile parses the public key stored at path.
func ReadFile(path string) (PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PublicKey{}, err
	}
	key, err := Parse(data)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%s: %w", path, err)
	}
	key.Path = path
	return key, nil
}

// ScanDir parses every *.pub file under dir, in lexical order. Unreadable or
// malformed files are skipped; a missing directory yields no keys.
func ScanDir(dir string) []PublicKey {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.pub"))
	keys := make([]PublicKey, 0, len(matches))
	for _, m := range matches {
		key, err := ReadFile(m)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
