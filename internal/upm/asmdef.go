// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type (
	// VersionDefine is a compile define activated when a named package
	// matches a version expression.
	VersionDefine struct {
		Name       string `json:"name"`
		Expression string `json:"expression"`
		Define     string `json:"define"`
	}

	// AssemblyDefinition is the .asmdef document defining a compiled-code
	// boundary inside a package. One is generated per source package with a
	// configured namespace; packages without a namespace get none.
	AssemblyDefinition struct {
		Name                  string
		RootNamespace         string
		References            []string
		IncludePlatforms      []string
		ExcludePlatforms      []string
		AllowUnsafeCode       bool
		OverrideReferences    bool
		PrecompiledReferences []string
		AutoReferenced        bool
		DefineConstraints     []string
		VersionDefines        []VersionDefine
		NoEngineReferences    bool

		// Extra fields merge last and may override any of the above.
		Extra map[string]any
	}
)

// NewAssemblyDefinition builds an assembly definition with the generator
// defaults: no platform restrictions, unsafe code off, auto-referenced on.
func NewAssemblyDefinition(name, rootNamespace string) *AssemblyDefinition {
	return &AssemblyDefinition{
		Name:                  name,
		RootNamespace:         rootNamespace,
		References:            []string{},
		IncludePlatforms:      []string{},
		ExcludePlatforms:      []string{},
		PrecompiledReferences: []string{},
		AutoReferenced:        true,
		DefineConstraints:     []string{},
		VersionDefines:        []VersionDefine{},
	}
}

// MarshalJSON serializes the typed fields with Extra merged last.
func (a *AssemblyDefinition) MarshalJSON() ([]byte, error) {
	orEmpty := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	defines := a.VersionDefines
	if defines == nil {
		defines = []VersionDefine{}
	}

	fields := map[string]any{
		"name":                  a.Name,
		"rootNamespace":         a.RootNamespace,
		"references":            orEmpty(a.References),
		"includePlatforms":      orEmpty(a.IncludePlatforms),
		"excludePlatforms":      orEmpty(a.ExcludePlatforms),
		"allowUnsafeCode":       a.AllowUnsafeCode,
		"overrideReferences":    a.OverrideReferences,
		"precompiledReferences": orEmpty(a.PrecompiledReferences),
		"autoReferenced":        a.AutoReferenced,
		"defineConstraints":     orEmpty(a.DefineConstraints),
		"versionDefines":        defines,
		"noEngineReferences":    a.NoEngineReferences,
	}
	for k, v := range a.Extra {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// AsmdefFileName returns the assembly definition filename for a module name.
func AsmdefFileName(name string) string {
	return name + ".asmdef"
}

// WriteAssemblyDefinition serializes the assembly definition into dir,
// conventionally the package's Runtime folder.
func WriteAssemblyDefinition(dir string, a *AssemblyDefinition) error {
	data, err := marshalIndented(a)
	if err != nil {
		return fmt.Errorf("encode assembly definition: %w", err)
	}

	path := filepath.Join(dir, AsmdefFileName(a.Name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write assembly definition: %w", err)
	}
	return nil
}
