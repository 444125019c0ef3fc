// Package backup preserves files rigup is about to overwrite. Each run gets
// its own timestamped directory under the backup root, mirroring the absolute
// path of everything saved, so the operator can diff or restore by hand.
// Nothing is ever read back by rigup itself.
package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir collects pre-overwrite copies for a single run. The run directory is
// created on the first save, so a run that overwrites nothing leaves no trace.
type Dir struct {
	root  string // e.g. ~/.local/share/rigup/backups
	run   string // root/<stamp>, created lazily
	saved map[string]bool
}

// New returns a Dir that stores this run's copies under root/<timestamp>.
func New(root string) *Dir {
	stamp := time.Now().Format("20060102-150405")
	return &Dir{
		root:  root,
		run:   filepath.Join(root, stamp),
		saved: make(map[string]bool),
	}
}

// DefaultRoot returns the backup root under the user's data directory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "rigup", "backups"), nil
}

// Path returns the directory this run's copies land in. It may not exist yet.
func (d *Dir) Path() string {
	return d.run
}

// Save copies the file or directory at path into the run directory, keeping
// its absolute path as the layout. A path that does not exist is a no-op:
// there is nothing to preserve. Saving the same path twice keeps the first
// copy, which is the pre-run state.
func (d *Dir) Save(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	if d.saved[abs] {
		return d.dest(abs), nil
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}

	dest := d.dest(abs)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}

	if info.IsDir() {
		err = copyDir(abs, dest)
	} else {
		err = copyFile(abs, dest)
	}
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	d.saved[abs] = true
	return dest, nil
}

// dest maps an absolute path into the run directory, e.g. /home/mg/.vimrc
// becomes <run>/home/mg/.vimrc.
func (d *Dir) dest(abs string) string {
	rel := strings.TrimPrefix(abs, string(os.PathSeparator))
	return filepath.Join(d.run, rel)
}

func copyDir(src, dst string) error {
	src = filepath.Clean(src)
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
