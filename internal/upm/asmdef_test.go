// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAssemblyDefinitionMarshal(t *testing.T) {
	t.Parallel()

	a := NewAssemblyDefinition("Example_Lib", "Example.Lib")
	a.References = []string{"Unity.TextMeshPro"}
	a.IncludePlatforms = []string{"Editor"}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got["name"] != "Example_Lib" {
		t.Errorf("name = %v", got["name"])
	}
	if got["rootNamespace"] != "Example.Lib" {
		t.Errorf("rootNamespace = %v", got["rootNamespace"])
	}
	if got["autoReferenced"] != true {
		t.Error("autoReferenced should default to true")
	}
	if got["allowUnsafeCode"] != false {
		t.Error("allowUnsafeCode should default to false")
	}
	// Nil slices must serialize as empty arrays, never null.
	for _, key := range []string{"references", "includePlatforms", "excludePlatforms", "defineConstraints", "versionDefines"} {
		if _, ok := got[key].([]any); !ok {
			t.Errorf("%s should serialize as an array, got %T", key, got[key])
		}
	}
}

func TestAssemblyDefinitionExtraOverrides(t *testing.T) {
	t.Parallel()

	a := NewAssemblyDefinition("Lib", "Lib")
	a.Extra = map[string]any{"autoReferenced": false, "customField": "x"}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got["autoReferenced"] != false {
		t.Error("extra field should override the typed default")
	}
	if got["customField"] != "x" {
		t.Error("extra field should pass through")
	}
}

func TestWriteAssemblyDefinition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := NewAssemblyDefinition("Example_Lib", "Example.Lib")

	if err := WriteAssemblyDefinition(dir, a); err != nil {
		t.Fatalf("WriteAssemblyDefinition: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Example_Lib.asmdef"))
	if err != nil {
		t.Fatalf("asmdef file not written under the module name: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("asmdef is not valid JSON: %v", err)
	}
}
