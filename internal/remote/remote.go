// Package remote fetches manifests over HTTP so a fresh machine can be
// bootstrapped straight from a URL, with an optional sha256 pin for
// tamper-proofing. Fetching is stateless: nothing is cached on disk.
package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rigup-sh/rigup/internal/manifest"
)

// maxManifestSize bounds a fetched manifest. Anything larger is not a
// manifest.
const maxManifestSize = 1 << 20

// IsURL reports whether ref names a remote manifest rather than a local file.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// FetchManifest downloads and parses the manifest at ref. A "#sha256=<hex>"
// fragment pins the expected content checksum; a mismatch is fatal. Remote
// manifests have no directory, so their file sources must be absolute paths.
func FetchManifest(ctx context.Context, ref string) (*manifest.Manifest, error) {
	url, pin, err := splitPin(ref)
	if err != nil {
		return nil, err
	}

	data, err := download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", url, err)
	}

	if pin != "" {
		sum := fmt.Sprintf("%x", sha256.Sum256(data))
		if sum != pin {
			return nil, fmt.Errorf("manifest %s: checksum mismatch (pinned %s, got %s)", url, pin, sum)
		}
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", url, err)
	}
	return m, nil
}

// splitPin separates an optional "#sha256=<hex>" fragment from the URL.
func splitPin(ref string) (url, pin string, err error) {
	url, frag, found := strings.Cut(ref, "#")
	if !found {
		return url, "", nil
	}
	pin, ok := strings.CutPrefix(frag, "sha256=")
	if !ok {
		return "", "", fmt.Errorf("manifest URL fragment %q: only #sha256=<hex> is supported", frag)
	}
	pin = strings.ToLower(pin)
	if raw, err := hex.DecodeString(pin); err != nil || len(raw) != sha256.Size {
		return "", "", fmt.Errorf("manifest checksum pin %q: want 64 hex digits", pin)
	}
	return url, pin, nil
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "rigup/1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("manifest exceeds %d bytes", maxManifestSize)
	}
	return data, nil
}
