// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewManifestDefaults(t *testing.T) {
	t.Parallel()

	m := NewManifest("com.example.lib", "", "", "", "")

	if m.DisplayName != "com.example.lib" {
		t.Errorf("DisplayName = %q, want package name fallback", m.DisplayName)
	}
	if m.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", m.Version)
	}
	if m.Unity != "2019.4" || m.UnityRelease != "0f1" {
		t.Errorf("engine pair = %q/%q, want 2019.4/0f1", m.Unity, m.UnityRelease)
	}
	if m.Type != "library" {
		t.Errorf("Type = %q, want library", m.Type)
	}
	if m.Keywords == nil || m.Dependencies == nil {
		t.Error("keyword and dependency collections should be non-nil")
	}
}

func TestManifestMarshalExtraWinsLast(t *testing.T) {
	t.Parallel()

	m := NewManifest("com.example.lib", "Example", "2.0.0", "", "")
	m.SetExtra("version", "9.9.9")
	m.SetExtra("publishConfig", map[string]any{"registry": "https://npm.pkg.github.com/@acme"})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got["version"] != "9.9.9" {
		t.Errorf("version = %v, extra field should override the typed field", got["version"])
	}
	pc, ok := got["publishConfig"].(map[string]any)
	if !ok {
		t.Fatalf("publishConfig missing or wrong shape: %v", got["publishConfig"])
	}
	if pc["registry"] != "https://npm.pkg.github.com/@acme" {
		t.Errorf("publishConfig.registry = %v", pc["registry"])
	}
}

func TestManifestRoundTripPreservesUnknownFields(t *testing.T) {
	t.Parallel()

	doc := `{
		"name": "com.example.lib",
		"version": "1.2.3",
		"displayName": "Example",
		"repository": {"type": "git", "url": "https://example.com/repo.git"},
		"customField": 42
	}`

	var m Manifest
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if m.Name != "com.example.lib" || m.Version != "1.2.3" {
		t.Errorf("typed fields not parsed: %+v", m)
	}
	if _, ok := m.Extra["repository"]; !ok {
		t.Error("repository should land in Extra")
	}
	if _, ok := m.Extra["customField"]; !ok {
		t.Error("customField should land in Extra")
	}

	data, err := json.Marshal(&m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal round-trip: %v", err)
	}
	if _, ok := got["repository"]; !ok {
		t.Error("repository lost on round-trip")
	}
	if got["customField"] != float64(42) {
		t.Errorf("customField = %v, want 42", got["customField"])
	}
}

func TestWriteAndReadManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManifest("com.example.lib", "Example", "1.0.0", "A test package", "Someone")
	m.Dependencies = map[string]string{"com.other.lib": "2.0.0"}

	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		t.Fatalf("read manifest file: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Error("manifest file should end with a newline")
	}

	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if got.Name != m.Name || got.Version != m.Version || got.Author != m.Author {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
	if got.Dependencies["com.other.lib"] != "2.0.0" {
		t.Errorf("dependencies not preserved: %v", got.Dependencies)
	}
}
