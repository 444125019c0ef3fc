package actions

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rigup-sh/rigup/internal/platform"
	"github.com/rigup-sh/rigup/internal/shell"
)

// BinaryAction downloads a pre-built binary from a URL, extracts it from a
// tar.gz or zip archive when the URL points at one, and installs it into a
// directory.
//
// Satisfied checks for the installed file; when Version is set it is also
// substring-matched against `<binary> --version` output, so stale installs
// are refreshed. A binary that does not answer --version counts as present.
type BinaryAction struct {
	Name      string
	Version   string
	SourceURL string // resolved for the probed family
	InstallTo string // destination directory, may contain ~ and $VARS
}

func (a *BinaryAction) Kind() Kind { return KindBinary }

func (a *BinaryAction) Describe() string {
	v := ""
	if a.Version != "" {
		v = "@" + a.Version
	}
	return fmt.Sprintf("install binary %s%s -> %s", a.Name, v, platform.ExpandPath(a.InstallTo))
}

func (a *BinaryAction) Satisfied(ctx context.Context) (bool, error) {
	dest := a.destPath()
	if !fileExists(dest) {
		return false, nil
	}
	if a.Version == "" {
		return true, nil
	}
	out, err := shell.Exec(ctx, dest, "--version")
	if err != nil {
		return true, nil // present but mute; do not re-download forever
	}
	return strings.Contains(out, a.Version), nil
}

func (a *BinaryAction) Apply(ctx context.Context) error {
	destDir := platform.ExpandPath(a.InstallTo)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}

	// Download to a temp file.
	tmpFile, err := os.CreateTemp("", "rigup-bin-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := downloadTo(ctx, a.SourceURL, tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("download %s: %w", a.SourceURL, err)
	}
	tmpFile.Close()

	destPath := filepath.Join(destDir, a.Name)

	// Extract or install depending on the URL extension.
	lower := strings.ToLower(a.SourceURL)
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		if err := extractFromTarGz(tmpPath, a.Name, destPath); err != nil {
			return fmt.Errorf("extract %s from archive: %w", a.Name, err)
		}
	case strings.HasSuffix(lower, ".zip"):
		if err := extractFromZip(tmpPath, a.Name, destPath); err != nil {
			return fmt.Errorf("extract %s from zip: %w", a.Name, err)
		}
	default:
		// Treat as a plain binary.
		if err := os.Rename(tmpPath, destPath); err != nil {
			if err := copyFile(tmpPath, destPath); err != nil {
				return fmt.Errorf("install binary: %w", err)
			}
		}
	}

	return os.Chmod(destPath, 0o755)
}

func (a *BinaryAction) destPath() string {
	return filepath.Join(platform.ExpandPath(a.InstallTo), a.Name)
}

// --- download ----------------------------------------------------------------

func downloadTo(ctx context.Context, url string, dst *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "rigup/1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	_, err = io.Copy(dst, resp.Body)
	return err
}

// --- extraction --------------------------------------------------------------

func extractFromTarGz(archivePath, binaryName, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Match the binary by its base name.
		if filepath.Base(hdr.Name) == binaryName {
			return writeBinary(tr, destPath)
		}
	}
	return fmt.Errorf("binary %q not found in archive", binaryName)
}

func extractFromZip(archivePath, binaryName, destPath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if filepath.Base(f.Name) == binaryName {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			return writeBinary(rc, destPath)
		}
	}
	return fmt.Errorf("binary %q not found in zip", binaryName)
}

func writeBinary(r io.Reader, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
