package actions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rigup-sh/rigup/internal/ageutil"
	"github.com/rigup-sh/rigup/internal/platform"
)

// FileAction places a file (or a whole directory tree) from the manifest
// repository onto the system, by copy or by symlink.
//
// Satisfied compares content, not timestamps: a copied destination counts as
// in place when its bytes equal the source's effective plaintext, its mode
// matches Mode (when set), and its owner matches Owner (when set). For a
// directory source the mode check covers each placed file, matching what
// Apply enforces; directories are created 0755. A link destination counts
// when the symlink resolves to the absolute source.
//
// Encrypted sources are stored with an ".age" extension and decrypted on the
// way out; the comparison decrypts to a temp file so Satisfied stays accurate.
type FileAction struct {
	Source      string // resolved repo-side path
	Destination string // system-side path; may contain ~, ~name, $VARS; trailing "/" appends the source basename
	Mode        os.FileMode
	Owner       string // chown target, honoured when running with enough privilege
	Link        bool
	Encrypted   bool
	AgeKey      *ageutil.Key
}

func (a *FileAction) Kind() Kind { return KindFile }

// Target returns the expanded destination path. A "~name" destination stays
// literal until that user exists; Apply refuses to write such a path.
func (a *FileAction) Target() string {
	expanded := platform.ExpandPath(a.Destination)
	if strings.HasSuffix(a.Destination, "/") {
		return filepath.Join(expanded, a.baseName())
	}
	return expanded
}

// baseName is the destination file name implied by the source, without a
// trailing ".age" on encrypted entries.
func (a *FileAction) baseName() string {
	return strings.TrimSuffix(filepath.Base(a.Source), ".age")
}

func (a *FileAction) Describe() string {
	enc := ""
	if a.Encrypted {
		enc = " [encrypted]"
	}
	verb := "copy"
	if a.Link {
		verb = "link"
	}
	return fmt.Sprintf("%s %s -> %s%s", verb, a.baseName(), a.Target(), enc)
}

func (a *FileAction) Satisfied(ctx context.Context) (bool, error) {
	target := a.Target()
	if strings.HasPrefix(target, "~") {
		return false, nil // owner's account does not exist yet
	}

	if a.Link {
		linkDest, err := os.Readlink(target)
		if err != nil {
			return false, nil // missing or not a symlink
		}
		abs, err := filepath.Abs(a.sourcePath())
		if err != nil {
			return false, nil
		}
		return linkDest == abs, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return false, nil
	}

	if info.IsDir() {
		equal, err := treesEqual(a.Source, target, a.Mode)
		if err != nil || !equal {
			return false, err
		}
	} else {
		equal, err := a.contentEqual(target)
		if err != nil || !equal {
			return false, err
		}
		if a.Mode != 0 && info.Mode().Perm() != a.Mode.Perm() {
			return false, nil
		}
	}

	if a.Owner != "" {
		ok, err := ownedBy(info, a.Owner)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (a *FileAction) Apply(ctx context.Context) error {
	target := a.Target()
	if strings.HasPrefix(target, "~") {
		return fmt.Errorf("cannot resolve %q: user not present yet", a.Destination)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	if a.Link {
		return createSymlink(a.sourcePath(), target)
	}

	info, err := os.Stat(a.sourcePath())
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if info.IsDir() {
		if a.Encrypted {
			return fmt.Errorf("encrypted directories are not supported: %s", a.Source)
		}
		if err := copyTree(a.Source, target, a.Mode); err != nil {
			return fmt.Errorf("copy directory: %w", err)
		}
		return a.enforceOwner(target)
	}

	if a.Encrypted {
		if a.AgeKey == nil {
			return fmt.Errorf("encrypted file %s requires an age key; set RIGUP_AGE_IDENTITY or RIGUP_AGE_PASSPHRASE", a.Source)
		}
		if err := a.AgeKey.DecryptFile(a.sourcePath(), target); err != nil {
			return err
		}
	} else {
		if err := copyFile(a.sourcePath(), target); err != nil {
			return err
		}
	}

	if a.Mode != 0 {
		if err := os.Chmod(target, a.Mode.Perm()); err != nil {
			return fmt.Errorf("chmod %s to %04o: %w", target, a.Mode.Perm(), err)
		}
	}
	return a.enforceOwner(target)
}

// BackupPaths names the destination so the executor can preserve whatever
// rigup is about to overwrite.
func (a *FileAction) BackupPaths() []string {
	return []string{a.Target()}
}

// sourcePath is the on-disk source, with ".age" appended for encrypted entries.
func (a *FileAction) sourcePath() string {
	if a.Encrypted {
		return ageutil.SourcePath(a.Source)
	}
	return a.Source
}

// contentEqual compares the destination against the source's plaintext.
func (a *FileAction) contentEqual(target string) (bool, error) {
	if !a.Encrypted {
		return filesEqual(a.Source, target)
	}
	if a.AgeKey == nil {
		return false, nil // cannot compare; Apply reports the missing key
	}
	tmp, err := os.CreateTemp("", "rigup-cmp-*")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := a.AgeKey.DecryptFile(a.sourcePath(), tmpPath); err != nil {
		return false, err
	}
	return filesEqual(tmpPath, target)
}

func (a *FileAction) enforceOwner(target string) error {
	if a.Owner == "" {
		return nil
	}
	u, err := user.Lookup(a.Owner)
	if err != nil {
		return fmt.Errorf("resolve owner %q: %w", a.Owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("owner %q has non-numeric uid %q", a.Owner, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("owner %q has non-numeric gid %q", a.Owner, u.Gid)
	}
	return chownTree(target, uid, gid)
}

// ownedBy reports whether info's uid matches the named user's.
func ownedBy(info os.FileInfo, owner string) (bool, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true, nil // no uid on this filesystem; do not loop on re-apply
	}
	u, err := user.Lookup(owner)
	if err != nil {
		return false, fmt.Errorf("resolve owner %q: %w", owner, err)
	}
	return strconv.FormatUint(uint64(st.Uid), 10) == u.Uid, nil
}

// --- helpers -----------------------------------------------------------------

func createSymlink(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("remove existing destination: %w", err)
		}
	}
	return os.Symlink(abs, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}
	return out.Close()
}

func filesEqual(a, b string) (bool, error) {
	aData, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	bData, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aData, bData), nil
}

// copyTree recursively copies the src directory into dst. When mode is
// non-zero every copied file is chmodded to it.
func copyTree(src, dst string, mode os.FileMode) error {
	src = filepath.Clean(src)
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		if mode != 0 {
			return os.Chmod(target, mode.Perm())
		}
		return nil
	})
}

// treesEqual reports whether every file under src exists under dst with equal
// content and, when mode is non-zero, with mode's permission bits, the same
// per-file mode copyTree enforces. Extra files under dst are tolerated.
func treesEqual(src, dst string, mode os.FileMode) (bool, error) {
	src = filepath.Clean(src)
	equal := true
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		placed := filepath.Join(dst, rel)
		same, err := filesEqual(path, placed)
		if err != nil {
			equal = false
			return fs.SkipAll
		}
		if !same {
			equal = false
			return fs.SkipAll
		}
		if mode != 0 {
			info, err := os.Stat(placed)
			if err != nil || info.Mode().Perm() != mode.Perm() {
				equal = false
				return fs.SkipAll
			}
		}
		return nil
	})
	return equal, err
}

func chownTree(path string, uid, gid int) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return chown(path, uid, gid)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return chown(p, uid, gid)
	})
}

func chown(path string, uid, gid int) error {
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}
