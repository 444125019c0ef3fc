// Package template renders Go template strings against a fact map.
// Manifest entries use {{ .Hostname }}-style expressions in their string
// fields to vary per machine.
package template

import (
	"bytes"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/rigup-sh/rigup/internal/manifest"
)

// Render executes the Go template string s with facts as the data object.
func Render(s string, facts map[string]any) (string, error) {
	t, err := template.New("").Option("missingkey=zero").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, facts); err != nil {
		return "", fmt.Errorf("execute template %q: %w", s, err)
	}
	return buf.String(), nil
}

// RenderEntry renders all string fields of entry that may contain Go template
// expressions. It works by marshalling the entry to YAML, rendering the
// resulting string as a template, then unmarshalling back. This approach
// automatically covers every string field without explicit enumeration.
func RenderEntry(entry manifest.Entry, facts map[string]any) (manifest.Entry, error) {
	if len(facts) == 0 {
		return entry, nil
	}

	data, err := yaml.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("marshal entry for template rendering: %w", err)
	}

	rendered, err := Render(string(data), facts)
	if err != nil {
		return entry, fmt.Errorf("render entry: %w", err)
	}

	var result manifest.Entry
	if err := yaml.Unmarshal([]byte(rendered), &result); err != nil {
		return entry, fmt.Errorf("unmarshal rendered entry: %w", err)
	}
	return result, nil
}
