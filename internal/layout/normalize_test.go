// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeFileScopedNamespace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.cs")
	writeFile(t, path, "using System;\n\nnamespace Example.Lib;\n\npublic class Foo\n{\n}\n")

	o := NewOrganizer(log.New(io.Discard))
	if err := o.normalizeTree(dir); err != nil {
		t.Fatalf("normalizeTree: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	if strings.Contains(got, "namespace Example.Lib;") {
		t.Error("file-scoped declaration should be rewritten")
	}
	if !strings.Contains(got, "namespace Example.Lib\n{\n") {
		t.Errorf("expected block-scoped declaration, got:\n%s", got)
	}
	if !strings.HasSuffix(got, "}\n") {
		t.Errorf("closing brace should be appended at end of file, got:\n%s", got)
	}
}

func TestNormalizeOnlyFirstDeclaration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Two.cs")
	writeFile(t, path, "namespace First;\nclass A {}\n// namespace-looking text below is left alone\nnamespace Second;\n")

	o := NewOrganizer(log.New(io.Discard))
	if err := o.normalizeTree(dir); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	if !strings.Contains(got, "namespace First\n{\n") {
		t.Error("first declaration should be rewritten")
	}
	if !strings.Contains(got, "namespace Second;") {
		t.Error("subsequent declarations should be left untouched")
	}
}

func TestNormalizeLeavesBlockFormAlone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Block.cs")
	original := "namespace Example\n{\n    class Foo {}\n}\n"
	writeFile(t, path, original)

	o := NewOrganizer(log.New(io.Discard))
	if err := o.normalizeTree(dir); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Errorf("block-form file should be untouched, got:\n%s", data)
	}
}

func TestNormalizeSkipsNonCSharpFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	original := "namespace NotCode;\n"
	writeFile(t, path, original)

	o := NewOrganizer(log.New(io.Discard))
	if err := o.normalizeTree(dir); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Error("non-C# files should not be rewritten")
	}
}
