package template

import (
	"testing"

	"github.com/rigup-sh/rigup/internal/manifest"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		input string
		facts map[string]any
		want  string
	}{
		{"simple", "hello {{ .Hostname }}", map[string]any{"Hostname": "devbox"}, "hello devbox"},
		{"multiple", "{{ .User }}@{{ .Hostname }}", map[string]any{"User": "mg", "Hostname": "devbox"}, "mg@devbox"},
		{"no template", "plain text", map[string]any{"x": "y"}, "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input, tt.facts)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{ .bad", nil)
	if err == nil {
		t.Error("expected error for invalid template")
	}
}

func TestRenderEmpty(t *testing.T) {
	got, err := Render("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("Render('') = %q", got)
	}
}

func TestRenderEntry(t *testing.T) {
	entry := manifest.Entry{
		SSHKey:  "~/.ssh/id_ed25519",
		Comment: "{{ .User }}@{{ .Hostname }}",
	}
	facts := map[string]any{"User": "mg", "Hostname": "devbox"}
	result, err := RenderEntry(entry, facts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Comment != "mg@devbox" {
		t.Errorf("Comment = %q, want %q", result.Comment, "mg@devbox")
	}
	if result.SSHKey != "~/.ssh/id_ed25519" {
		t.Errorf("SSHKey = %q", result.SSHKey)
	}
}

func TestRenderEntryMultipleFields(t *testing.T) {
	entry := manifest.Entry{
		Binary:    "nvim",
		Source:    manifest.FamilyMap{Default: "https://example.com/{{ .Arch }}/nvim.tar.gz"},
		InstallTo: "{{ .Home }}/.local/bin",
	}
	facts := map[string]any{"Arch": "arm64", "Home": "/home/mg"}
	result, err := RenderEntry(entry, facts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Source.Default != "https://example.com/arm64/nvim.tar.gz" {
		t.Errorf("Source = %q", result.Source.Default)
	}
	if result.InstallTo != "/home/mg/.local/bin" {
		t.Errorf("InstallTo = %q", result.InstallTo)
	}
}

func TestRenderEntryPreservesNonStrings(t *testing.T) {
	entry := manifest.Entry{
		Setting: "com.apple.dock",
		Key:     "autohide",
		Value:   true,
	}
	result, err := RenderEntry(entry, map[string]any{"Hostname": "devbox"})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := result.Value.(bool); !ok || !v {
		t.Errorf("Value = %v (%T), want true bool", result.Value, result.Value)
	}
}

func TestRenderEntryNoFacts(t *testing.T) {
	entry := manifest.Entry{Package: "git", Manager: "brew"}
	result, err := RenderEntry(entry, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Package != "git" || result.Manager != "brew" {
		t.Errorf("entry changed with no facts: %+v", result)
	}
}

func TestRenderEntryInvalidTemplate(t *testing.T) {
	entry := manifest.Entry{Package: "{{ .bad"}
	_, err := RenderEntry(entry, map[string]any{"x": "y"})
	if err == nil {
		t.Error("expected error for invalid template in entry")
	}
}
