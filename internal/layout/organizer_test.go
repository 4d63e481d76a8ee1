// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func testOrganizer() *Organizer {
	o := NewOrganizer(log.New(io.Discard))
	o.RemoveProjectFiles = false
	o.NormalizeNamespaces = false
	return o
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLayoutSourceWithoutRuntimeConvention(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(src, "Foo.cs"), "class Foo {}")
	writeFile(t, filepath.Join(src, "sub", "Bar.cs"), "class Bar {}")

	o := testOrganizer()
	runtimeDir, err := o.LayoutSource(src, out)
	if err != nil {
		t.Fatalf("LayoutSource: %v", err)
	}

	if runtimeDir != filepath.Join(out, "Runtime") {
		t.Errorf("runtime dir = %s", runtimeDir)
	}
	for _, want := range []string{
		filepath.Join(out, "Runtime", "Foo.cs"),
		filepath.Join(out, "Runtime", "sub", "Bar.cs"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Errorf("missing %s", want)
		}
	}
}

func TestLayoutSourceRuntimeConventionPreserved(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(src, "Runtime", "Foo.cs"), "class Foo {}")
	writeFile(t, filepath.Join(src, "Editor", "FooEditor.cs"), "class FooEditor {}")
	writeFile(t, filepath.Join(src, "notes.txt"), "hi")

	o := testOrganizer()
	runtimeDir, err := o.LayoutSource(src, out)
	if err != nil {
		t.Fatalf("LayoutSource: %v", err)
	}

	if _, err := os.Stat(filepath.Join(runtimeDir, "Foo.cs")); err != nil {
		t.Error("Runtime content should be copied as-is")
	}
	// No Runtime/Runtime nesting.
	if _, err := os.Stat(filepath.Join(runtimeDir, "Runtime")); err == nil {
		t.Error("Runtime/Runtime nesting must not be introduced")
	}
	// Siblings land at the package root.
	if _, err := os.Stat(filepath.Join(out, "Editor", "FooEditor.cs")); err != nil {
		t.Error("Editor sibling should land at the package root")
	}
	if _, err := os.Stat(filepath.Join(out, "notes.txt")); err != nil {
		t.Error("top-level file sibling should land at the package root")
	}
}

func TestLayoutSourceMissingSource(t *testing.T) {
	t.Parallel()

	o := testOrganizer()
	if _, err := o.LayoutSource(filepath.Join(t.TempDir(), "nope"), t.TempDir()); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}

func TestLayoutBinariesFlatCopyOverwrites(t *testing.T) {
	t.Parallel()

	srcA := t.TempDir()
	srcB := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(srcA, "Lib.dll"), "first")
	writeFile(t, filepath.Join(srcB, "Lib.dll"), "second")

	o := testOrganizer()
	pluginsDir, err := o.LayoutBinaries([]string{
		filepath.Join(srcA, "Lib.dll"),
		filepath.Join(srcB, "Lib.dll"),
	}, out)
	if err != nil {
		t.Fatalf("LayoutBinaries: %v", err)
	}

	if pluginsDir != filepath.Join(out, "Plugins") {
		t.Errorf("plugins dir = %s", pluginsDir)
	}
	data, err := os.ReadFile(filepath.Join(pluginsDir, "Lib.dll"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("later file should silently overwrite, got %q", data)
	}
}

func TestCleanRuntimeRemovesArtifacts(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(src, "Foo.cs"), "class Foo {}")
	writeFile(t, filepath.Join(src, "Lib.csproj"), "<Project/>")
	writeFile(t, filepath.Join(src, "deep", "Other.sln"), "")
	writeFile(t, filepath.Join(src, "README.md"), "# hi")
	writeFile(t, filepath.Join(src, ".vs", "state.bin"), "x")
	writeFile(t, filepath.Join(src, "AssemblyInfo.cs"), "")

	o := testOrganizer()
	o.RemoveProjectFiles = true
	runtimeDir, err := o.LayoutSource(src, out)
	if err != nil {
		t.Fatalf("LayoutSource: %v", err)
	}

	if _, err := os.Stat(filepath.Join(runtimeDir, "Foo.cs")); err != nil {
		t.Error("source file should survive cleanup")
	}
	for _, gone := range []string{
		filepath.Join(runtimeDir, "Lib.csproj"),
		filepath.Join(runtimeDir, "deep", "Other.sln"),
		filepath.Join(runtimeDir, "README.md"),
		filepath.Join(runtimeDir, ".vs"),
		filepath.Join(runtimeDir, "AssemblyInfo.cs"),
	} {
		if _, err := os.Stat(gone); err == nil {
			t.Errorf("%s should have been removed", gone)
		}
	}
}
