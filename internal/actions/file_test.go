package actions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileTarget(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		destination string
		encrypted   bool
		want        string
	}{
		{"full path", "/repo/vimrc", "/home/mg/.vimrc", false, "/home/mg/.vimrc"},
		{"trailing slash appends basename", "/repo/vimrc", "/home/mg/", false, "/home/mg/vimrc"},
		{"encrypted strips .age", "/repo/netrc.age", "/home/mg/", true, "/home/mg/netrc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &FileAction{Source: tt.source, Destination: tt.destination, Encrypted: tt.encrypted}
			if got := a.Target(); got != tt.want {
				t.Errorf("Target() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileDescribe(t *testing.T) {
	a := &FileAction{Source: "/repo/vimrc", Destination: "/home/mg/.vimrc"}
	if got := a.Describe(); got != "copy vimrc -> /home/mg/.vimrc" {
		t.Errorf("Describe() = %q", got)
	}
	a.Link = true
	if got := a.Describe(); !strings.HasPrefix(got, "link ") {
		t.Errorf("link Describe() = %q", got)
	}
	a.Link = false
	a.Encrypted = true
	if got := a.Describe(); !strings.Contains(got, "[encrypted]") {
		t.Errorf("encrypted Describe() = %q", got)
	}
	if a.Kind() != KindFile {
		t.Errorf("Kind() = %q", a.Kind())
	}
}

func TestFileApplyThenSatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vimrc")
	dst := filepath.Join(dir, "home", ".vimrc")
	os.WriteFile(src, []byte("set nocompatible\n"), 0o644)

	a := &FileAction{Source: src, Destination: dst, Mode: 0o644}
	ctx := context.Background()

	ok, err := a.Satisfied(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Satisfied before apply = true")
	}

	if err := a.Apply(ctx); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "set nocompatible\n" {
		t.Errorf("copied content = %q", data)
	}

	ok, err = a.Satisfied(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Satisfied after apply = false")
	}
}

func TestFileSatisfiedContentDrift(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vimrc")
	dst := filepath.Join(dir, ".vimrc")
	os.WriteFile(src, []byte("new"), 0o644)
	os.WriteFile(dst, []byte("old"), 0o644)

	a := &FileAction{Source: src, Destination: dst}
	ok, err := a.Satisfied(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("drifted destination should not be satisfied")
	}
}

func TestFileSatisfiedModeDrift(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "netrc")
	dst := filepath.Join(dir, ".netrc")
	os.WriteFile(src, []byte("machine x"), 0o644)
	os.WriteFile(dst, []byte("machine x"), 0o644)

	a := &FileAction{Source: src, Destination: dst, Mode: 0o600}
	ok, err := a.Satisfied(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("wrong mode should not be satisfied")
	}

	if err := a.Apply(context.Background()); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode after apply = %04o, want 0600", info.Mode().Perm())
	}
}

func TestFileLinkApplyThenSatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "gitconfig")
	dst := filepath.Join(dir, ".gitconfig")
	os.WriteFile(src, []byte("[user]"), 0o644)

	a := &FileAction{Source: src, Destination: dst, Link: true}
	ctx := context.Background()

	if ok, _ := a.Satisfied(ctx); ok {
		t.Fatal("Satisfied before link = true")
	}
	if err := a.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := a.Satisfied(ctx); !ok {
		t.Error("Satisfied after link = false")
	}

	target, err := os.Readlink(dst)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(src)
	if target != abs {
		t.Errorf("link target = %q, want %q", target, abs)
	}
}

func TestFileLinkWrongTargetNotSatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	other := filepath.Join(dir, "b")
	dst := filepath.Join(dir, "link")
	os.WriteFile(src, []byte("a"), 0o644)
	os.WriteFile(other, []byte("b"), 0o644)
	os.Symlink(other, dst)

	a := &FileAction{Source: src, Destination: dst, Link: true}
	if ok, _ := a.Satisfied(context.Background()); ok {
		t.Error("symlink to the wrong file should not be satisfied")
	}

	if err := a.Apply(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ok, _ := a.Satisfied(context.Background()); !ok {
		t.Error("Apply should replace the wrong symlink")
	}
}

func TestFileDirectoryApplyThenSatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "nvim")
	os.MkdirAll(filepath.Join(src, "lua"), 0o755)
	os.WriteFile(filepath.Join(src, "init.lua"), []byte("-- init"), 0o644)
	os.WriteFile(filepath.Join(src, "lua", "opts.lua"), []byte("-- opts"), 0o644)

	dst := filepath.Join(dir, "config", "nvim")
	a := &FileAction{Source: src, Destination: dst}
	ctx := context.Background()

	if ok, _ := a.Satisfied(ctx); ok {
		t.Fatal("Satisfied before apply = true")
	}
	if err := a.Apply(ctx); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "lua", "opts.lua"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "-- opts" {
		t.Errorf("copied nested file = %q", data)
	}

	if ok, _ := a.Satisfied(ctx); !ok {
		t.Error("Satisfied after directory copy = false")
	}

	// Drift one file and re-check.
	os.WriteFile(filepath.Join(dst, "init.lua"), []byte("-- changed"), 0o644)
	if ok, _ := a.Satisfied(ctx); ok {
		t.Error("drifted tree should not be satisfied")
	}
}

func TestFileDirectoryModeApplyThenSatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ssh")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "config"), []byte("Host *"), 0o644)
	os.WriteFile(filepath.Join(src, "known_hosts"), []byte("example"), 0o644)

	dst := filepath.Join(dir, "home", ".ssh")
	a := &FileAction{Source: src, Destination: dst, Mode: 0o600}
	ctx := context.Background()

	if err := a.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dst, "config"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("placed file mode = %04o, want 0600", info.Mode().Perm())
	}
	if ok, _ := a.Satisfied(ctx); !ok {
		t.Error("Satisfied after directory apply with mode = false")
	}

	// A placed file whose mode drifts must trigger a re-apply.
	os.Chmod(filepath.Join(dst, "config"), 0o644)
	if ok, _ := a.Satisfied(ctx); ok {
		t.Error("drifted file mode should not be satisfied")
	}
	if err := a.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := a.Satisfied(ctx); !ok {
		t.Error("Satisfied after re-apply = false")
	}
}

func TestFileUnresolvedUserHome(t *testing.T) {
	a := &FileAction{Source: "/repo/vimrc", Destination: "~no-such-user-xyz/.vimrc"}

	if ok, _ := a.Satisfied(context.Background()); ok {
		t.Error("unresolvable ~name should not be satisfied")
	}
	err := a.Apply(context.Background())
	if err == nil || !strings.Contains(err.Error(), "user not present") {
		t.Errorf("Apply error = %v, want user-not-present", err)
	}
}

func TestFileBackupPaths(t *testing.T) {
	a := &FileAction{Source: "/repo/vimrc", Destination: "/home/mg/.vimrc"}
	paths := a.BackupPaths()
	if len(paths) != 1 || paths[0] != "/home/mg/.vimrc" {
		t.Errorf("BackupPaths() = %v", paths)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	os.WriteFile(src, []byte("hello"), 0o644)

	if err := copyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "hello" {
		t.Errorf("copied data = %q", data)
	}
}

func TestFilesEqual(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	c := filepath.Join(dir, "c.txt")
	os.WriteFile(a, []byte("same"), 0o644)
	os.WriteFile(b, []byte("same"), 0o644)
	os.WriteFile(c, []byte("different"), 0o644)

	if eq, err := filesEqual(a, b); err != nil || !eq {
		t.Errorf("filesEqual(a, b) = %v, %v", eq, err)
	}
	if eq, err := filesEqual(a, c); err != nil || eq {
		t.Errorf("filesEqual(a, c) = %v, %v", eq, err)
	}
	if _, err := filesEqual(a, filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCreateSymlinkOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.txt")
	dst := filepath.Join(dir, "symlink.txt")
	os.WriteFile(src, []byte("data"), 0o644)
	os.WriteFile(dst, []byte("old regular file"), 0o644)

	if err := createSymlink(src, dst); err != nil {
		t.Fatal(err)
	}
	target, err := os.Readlink(dst)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(src)
	if target != abs {
		t.Errorf("symlink target = %q, want %q", target, abs)
	}
}

func TestCopyTreeWithMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tree")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644)

	dst := filepath.Join(dir, "out")
	if err := copyTree(src, dst, 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dst, "f"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("copied mode = %04o, want 0600", info.Mode().Perm())
	}
}

func TestTreesEqualToleratesExtras(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	os.MkdirAll(src, 0o755)
	os.MkdirAll(dst, 0o755)
	os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dst, "f"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dst, "extra"), []byte("y"), 0o644)

	eq, err := treesEqual(src, dst, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("extra destination files should not break equality")
	}
}

func TestTreesEqualChecksFileModes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	os.MkdirAll(src, 0o755)
	os.MkdirAll(dst, 0o755)
	os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dst, "f"), []byte("x"), 0o600)

	if eq, err := treesEqual(src, dst, 0o600); err != nil || !eq {
		t.Errorf("matching modes = %v, %v, want equal", eq, err)
	}
	if eq, err := treesEqual(src, dst, 0o644); err != nil || eq {
		t.Errorf("mismatched modes = %v, %v, want unequal", eq, err)
	}
}
