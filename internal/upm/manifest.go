// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFileName is the manifest file written at every package root.
const ManifestFileName = "package.json"

// Default engine compatibility pair stamped into every generated manifest.
const (
	defaultUnity        = "2019.4"
	defaultUnityRelease = "0f1"
)

// Manifest is the package.json document consumed by the engine's package
// system. Known fields are typed; anything else round-trips through Extra.
type Manifest struct {
	Name         string
	DisplayName  string
	Version      string
	Description  string
	Author       string
	Unity        string
	UnityRelease string
	Keywords     []string
	Dependencies map[string]string
	Type         string
	Namespace    string

	// Extra holds fields outside the typed contract. It is merged last on
	// serialization and may override any typed field.
	Extra map[string]any
}

// NewManifest builds a manifest with the generator defaults applied: version
// "1.0.0" when unset, empty keyword and dependency collections, the fixed
// engine compatibility pair, and type "library".
func NewManifest(name, displayName, version, description, author string) *Manifest {
	if displayName == "" {
		displayName = name
	}
	if version == "" {
		version = "1.0.0"
	}
	return &Manifest{
		Name:         name,
		DisplayName:  displayName,
		Version:      version,
		Description:  description,
		Author:       author,
		Unity:        defaultUnity,
		UnityRelease: defaultUnityRelease,
		Keywords:     []string{},
		Dependencies: map[string]string{},
		Type:         "library",
	}
}

// typedFields returns the manifest's typed fields as a generic map, the base
// that Extra is overlaid onto.
func (m *Manifest) typedFields() map[string]any {
	fields := map[string]any{
		"name":         m.Name,
		"displayName":  m.DisplayName,
		"version":      m.Version,
		"description":  m.Description,
		"author":       m.Author,
		"unity":        m.Unity,
		"unityRelease": m.UnityRelease,
		"keywords":     m.Keywords,
		"dependencies": m.Dependencies,
		"type":         m.Type,
	}
	if m.Keywords == nil {
		fields["keywords"] = []string{}
	}
	if m.Dependencies == nil {
		fields["dependencies"] = map[string]string{}
	}
	if m.Namespace != "" {
		fields["namespace"] = m.Namespace
	}
	return fields
}

// manifestKeys is the set of keys owned by typed fields; everything else
// belongs to Extra on parse.
var manifestKeys = map[string]bool{
	"name": true, "displayName": true, "version": true, "description": true,
	"author": true, "unity": true, "unityRelease": true, "keywords": true,
	"dependencies": true, "type": true, "namespace": true,
}

// MarshalJSON serializes the typed fields with Extra merged last.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	fields := m.typedFields()
	for k, v := range m.Extra {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON splits the document into typed fields and Extra so unknown
// keys survive a round trip.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	assign := func(key string, dest any) error {
		if v, ok := raw[key]; ok {
			return json.Unmarshal(v, dest)
		}
		return nil
	}

	for key, dest := range map[string]any{
		"name": &m.Name, "displayName": &m.DisplayName, "version": &m.Version,
		"description": &m.Description, "author": &m.Author, "unity": &m.Unity,
		"unityRelease": &m.UnityRelease, "keywords": &m.Keywords,
		"dependencies": &m.Dependencies, "type": &m.Type, "namespace": &m.Namespace,
	} {
		if err := assign(key, dest); err != nil {
			return fmt.Errorf("manifest field %q: %w", key, err)
		}
	}

	m.Extra = nil
	for k, v := range raw {
		if manifestKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("manifest field %q: %w", k, err)
		}
		m.Extra[k] = value
	}

	return nil
}

// SetExtra records an extra field, creating the map on first use.
func (m *Manifest) SetExtra(key string, value any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
}

// WriteManifest serializes the manifest to package.json under packageDir.
// The file is written once per build and never mutated afterwards.
func WriteManifest(packageDir string, m *Manifest) error {
	data, err := marshalIndented(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(packageDir, ManifestFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest parses the package.json inside packageDir.
func ReadManifest(packageDir string) (*Manifest, error) {
	path := filepath.Join(packageDir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// marshalIndented renders two-space-indented JSON without HTML escaping, the
// form the engine's own tooling writes.
func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
