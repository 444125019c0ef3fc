package actions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
)

// BrewInstallURL is the official Homebrew installer script.
const BrewInstallURL = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"

// brewPaths are the locations the installer may put brew without touching
// this process's PATH.
var brewPaths = []string{
	"/opt/homebrew/bin/brew",
	"/usr/local/bin/brew",
	"/home/linuxbrew/.linuxbrew/bin/brew",
}

// BootstrapAction installs a package manager the probe did not find. Only
// Homebrew ships a self-serve installer; the system managers come with the
// OS, so the planner only ever emits this for brew.
type BootstrapAction struct {
	Manager string // "brew"
	URL     string // installer script URL, defaults to BrewInstallURL
}

func (a *BootstrapAction) Kind() Kind { return KindBootstrap }

func (a *BootstrapAction) Describe() string {
	return fmt.Sprintf("bootstrap package manager %s", a.Manager)
}

func (a *BootstrapAction) Satisfied(ctx context.Context) (bool, error) {
	if _, err := exec.LookPath(a.Manager); err == nil {
		return true, nil
	}
	if a.Manager == "brew" && installedBrew() != "" {
		return true, nil
	}
	return false, nil
}

func (a *BootstrapAction) Apply(ctx context.Context) error {
	url := a.URL
	if url == "" {
		url = BrewInstallURL
	}

	script, err := fetchScript(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch installer: %w", err)
	}
	defer os.Remove(script)

	cmd := exec.CommandContext(ctx, "bash", script)
	cmd.Env = append(os.Environ(), "NONINTERACTIVE=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return outputErr(err, string(out))
	}

	// The installer drops brew outside PATH; make it visible to the rest of
	// the run so the package phase can use it.
	if bin := installedBrew(); bin != "" {
		dir := strings.TrimSuffix(bin, "/brew")
		os.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	return nil
}

// fetchScript downloads an installer script to an executable temp file and
// returns its path. The caller removes it.
func fetchScript(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "rigup/1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "rigup-*.sh")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func installedBrew() string {
	for _, p := range brewPaths {
		if fileExists(p) {
			return p
		}
	}
	return ""
}
