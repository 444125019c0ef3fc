package actions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestFatal(t *testing.T) {
	base := errors.New("home directory unwritable")
	err := Fatal(base)
	if !IsFatal(err) {
		t.Error("IsFatal(Fatal(err)) = false")
	}
	if !errors.Is(err, base) {
		t.Error("Fatal should wrap the original error")
	}
	if err.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), base.Error())
	}
}

func TestFatalNil(t *testing.T) {
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should be nil")
	}
}

func TestIsFatalPlainError(t *testing.T) {
	if IsFatal(errors.New("plain")) {
		t.Error("plain errors are not fatal")
	}
}

func TestIsFatalWrapped(t *testing.T) {
	err := fmt.Errorf("run aborted: %w", Fatal(errors.New("ctx canceled")))
	if !IsFatal(err) {
		t.Error("IsFatal should see through %w wrapping")
	}
}

func TestElevate(t *testing.T) {
	orig := euid
	defer func() { euid = orig }()

	euid = func() int { return 0 }
	got := elevate([]string{"useradd", "mg"})
	if len(got) != 2 || got[0] != "useradd" {
		t.Errorf("elevate as root = %v", got)
	}

	euid = func() int { return 1000 }
	got = elevate([]string{"useradd", "mg"})
	if len(got) != 3 || got[0] != "sudo" || got[1] != "useradd" {
		t.Errorf("elevate as user = %v", got)
	}
}

func TestOutputErr(t *testing.T) {
	base := errors.New("exit status 1")

	err := outputErr(base, "  No package vim available.\n")
	if !errors.Is(err, base) {
		t.Error("outputErr should wrap the original error")
	}
	want := "exit status 1: No package vim available."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if err := outputErr(base, "   \n"); err != base {
		t.Errorf("blank output should return the error unchanged, got %v", err)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "exists.txt")
	os.WriteFile(f, []byte("x"), 0o644)

	if !fileExists(f) {
		t.Error("expected true for existing file")
	}
	if fileExists(filepath.Join(dir, "nope.txt")) {
		t.Error("expected false for non-existing file")
	}
}
