package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPackageDescribe(t *testing.T) {
	a := &PackageAction{Name: "vim", Manager: "yum"}
	if got := a.Describe(); got != `install package "vim" via yum` {
		t.Errorf("Describe() = %q", got)
	}
	a.Version = "9.1"
	if got := a.Describe(); !strings.Contains(got, "@9.1") {
		t.Errorf("Describe() with version = %q", got)
	}
	if a.Kind() != KindPackage {
		t.Errorf("Kind() = %q", a.Kind())
	}
}

func TestInstallArgs(t *testing.T) {
	tests := []struct {
		manager string
		want    []string
	}{
		{"brew", []string{"brew", "install", "htop"}},
		{"brew-cask", []string{"brew", "install", "--cask", "htop"}},
		{"yum", []string{"yum", "install", "-y", "htop"}},
		{"dnf", []string{"dnf", "install", "-y", "htop"}},
		{"apt-get", []string{"apt-get", "install", "-y", "htop"}},
		{"apt", []string{"apt-get", "install", "-y", "htop"}},
		{"pacman", []string{"pacman", "-S", "--noconfirm", "htop"}},
		{"apk", []string{"apk", "add", "htop"}},
		{"snap", []string{"snap", "install", "htop"}},
		{"nix", []string{"nix-env", "-iA", "htop"}},
	}
	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			got, err := installArgs(tt.manager, "htop")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("installArgs = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestInstallArgsUnknown(t *testing.T) {
	if _, err := installArgs("portage", "htop"); err == nil {
		t.Error("expected error for unknown manager")
	}
}

func TestCheckArgs(t *testing.T) {
	if args := checkArgs("yum", "vim"); args == nil || args[0] != "rpm" {
		t.Errorf("checkArgs(yum) = %v, want rpm query", args)
	}
	if args := checkArgs("apt", "vim"); args == nil || args[0] != "dpkg" {
		t.Errorf("checkArgs(apt) = %v, want dpkg query", args)
	}
	if args := checkArgs("mas", "vim"); args != nil {
		t.Errorf("checkArgs(mas) = %v, want nil", args)
	}
	if args := checkArgs("nix", "vim"); args != nil {
		t.Errorf("checkArgs(nix) = %v, want nil", args)
	}
}

func TestSatisfiedNotCheckable(t *testing.T) {
	a := &PackageAction{Name: "Xcode", Manager: "mas"}
	_, err := a.Satisfied(context.Background())
	if !errors.Is(err, ErrNotCheckable) {
		t.Errorf("Satisfied error = %v, want ErrNotCheckable", err)
	}
}

func TestInstalledVersion(t *testing.T) {
	tests := []struct {
		manager string
		out     string
		want    string
	}{
		{"brew", "vim 9.1.0 9.0.2\n", "9.1.0"},
		{"pacman", "vim 9.1.0-1\n", "9.1.0-1"},
		{"yum", "9.1.0\n", "9.1.0"},
		{"apt", " 2:9.1.0-1ubuntu1 ", "2:9.1.0-1ubuntu1"},
		{"brew", "vim\n", ""},
	}
	for _, tt := range tests {
		if got := installedVersion(tt.manager, tt.out); got != tt.want {
			t.Errorf("installedVersion(%s, %q) = %q, want %q", tt.manager, tt.out, got, tt.want)
		}
	}
}

func TestVersionMatches(t *testing.T) {
	tests := []struct {
		installed string
		want      string
		match     bool
	}{
		{"9.1.0", "9.1", true},
		{"9.1.0", "9.1.0", true},
		{"9.1.0", "9.2", false},
		{"v1.2.3", "1.2", true},
		{"1.2.3", "v1.2", true},
		{"", "9", false},
	}
	for _, tt := range tests {
		if got := versionMatches(tt.installed, tt.want); got != tt.match {
			t.Errorf("versionMatches(%q, %q) = %v, want %v", tt.installed, tt.want, got, tt.match)
		}
	}
}

func TestNeedsRoot(t *testing.T) {
	if !needsRoot("yum") || !needsRoot("apt-get") {
		t.Error("system managers need root")
	}
	if needsRoot("brew") || needsRoot("flatpak") {
		t.Error("user-level managers do not need root")
	}
}
