package remote

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleManifest = `name: remote
entries:
  - package: git
  - package: vim
`

func TestIsURL(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://example.com/rigup.yaml", true},
		{"http://example.com/rigup.yaml", true},
		{"rigup.yaml", false},
		{"/etc/rigup.yaml", false},
		{"ftp://example.com/rigup.yaml", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.ref); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestFetchManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "rigup/") {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, sampleManifest)
	}))
	defer srv.Close()

	m, err := FetchManifest(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "remote" || len(m.Entries) != 2 {
		t.Errorf("manifest = %+v", m)
	}
	if m.Dir != "" {
		t.Errorf("remote manifest Dir = %q, want empty", m.Dir)
	}
}

func TestFetchManifestPinned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleManifest)
	}))
	defer srv.Close()

	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(sampleManifest)))
	m, err := FetchManifest(context.Background(), srv.URL+"#sha256="+sum)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 2 {
		t.Errorf("entries = %d", len(m.Entries))
	}
}

func TestFetchManifestPinMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleManifest)
	}))
	defer srv.Close()

	wrong := strings.Repeat("ab", 32)
	_, err := FetchManifest(context.Background(), srv.URL+"#sha256="+wrong)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("error = %v", err)
	}
}

func TestFetchManifestBadPin(t *testing.T) {
	tests := []struct {
		name string
		frag string
	}{
		{"wrong scheme", "#md5=abcd"},
		{"short digest", "#sha256=abcd"},
		{"non-hex digest", "#sha256=" + strings.Repeat("z", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FetchManifest(context.Background(), "https://example.com/rigup.yaml"+tt.frag)
			if err == nil {
				t.Fatal("expected error before any network call")
			}
			if strings.Contains(err.Error(), "mismatch") {
				t.Errorf("malformed pin reported as a checksum mismatch: %v", err)
			}
		})
	}
}

func TestFetchManifestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := FetchManifest(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error on 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v", err)
	}
}

func TestFetchManifestInvalidYAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "entries: [not: [valid")
	}))
	defer srv.Close()

	_, err := FetchManifest(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFetchManifestInvalidEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Syntactically fine, semantically empty: the entry declares nothing.
		fmt.Fprint(w, "entries:\n  - mode: \"0644\"\n")
	}))
	defer srv.Close()

	_, err := FetchManifest(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected validation error")
	}
}
