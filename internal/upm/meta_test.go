// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImporterFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  string
		isDir bool
		want  Importer
	}{
		{"Runtime/Foo.cs", false, ImporterMono},
		{"Runtime/Lib.asmdef", false, ImporterAsmdef},
		{"Plugins/Native.dll", false, ImporterPlugin},
		{"Plugins/Native.DLL", false, ImporterPlugin},
		{"package.json", false, ImporterTextScript},
		{"README.md", false, ImporterTextScript},
		{"data.xml", false, ImporterTextScript},
		{"config.yaml", false, ImporterTextScript},
		{"notes.yml", false, ImporterTextScript},
		{"LICENSE", false, ImporterDefault},
		{"image.png", false, ImporterDefault},
		{"Runtime", true, ImporterDefault},
		{"something.cs", true, ImporterDefault},
	}

	for _, tt := range tests {
		if got := ImporterFor(tt.path, tt.isDir); got != tt.want {
			t.Errorf("ImporterFor(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestNewGUIDShape(t *testing.T) {
	t.Parallel()

	guid := NewGUID()
	if len(guid) != 32 {
		t.Fatalf("guid length = %d, want 32", len(guid))
	}
	if strings.Contains(guid, "-") {
		t.Errorf("guid %q should not contain dashes", guid)
	}
	if guid == NewGUID() {
		t.Error("two fresh guids should differ")
	}
}

func TestWriteMetaNeverOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	asset := filepath.Join(dir, "Foo.cs")
	if err := os.WriteFile(asset, []byte("class Foo {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteMeta(asset, false); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	first, err := os.ReadFile(asset + MetaSuffix)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteMeta(asset, false); err != nil {
		t.Fatalf("WriteMeta second run: %v", err)
	}
	second, err := os.ReadFile(asset + MetaSuffix)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Error("existing sidecar was rewritten; identifier churned")
	}
}

func TestGenerateMetaFilesIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runtime := filepath.Join(dir, "Runtime")
	if err := os.MkdirAll(runtime, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{
		filepath.Join(runtime, "Foo.cs"),
		filepath.Join(dir, "package.json"),
		filepath.Join(dir, "LICENSE"),
	} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := GenerateMetaFiles(dir); err != nil {
		t.Fatalf("GenerateMetaFiles: %v", err)
	}

	// Every asset including the directory gets a sidecar; the root does not.
	for _, want := range []string{
		runtime + MetaSuffix,
		filepath.Join(runtime, "Foo.cs") + MetaSuffix,
		filepath.Join(dir, "package.json") + MetaSuffix,
		filepath.Join(dir, "LICENSE") + MetaSuffix,
	} {
		if _, err := os.Stat(want); err != nil {
			t.Errorf("missing sidecar %s", want)
		}
	}
	if _, err := os.Stat(dir + MetaSuffix); err == nil {
		t.Error("package root should not get a sidecar")
	}

	snapshot := func() map[string]string {
		out := map[string]string{}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, MetaSuffix) {
				return err
			}
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			out[path] = string(data)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	before := snapshot()
	if err := GenerateMetaFiles(dir); err != nil {
		t.Fatalf("GenerateMetaFiles second run: %v", err)
	}
	after := snapshot()

	if len(before) != len(after) {
		t.Fatalf("sidecar count changed: %d -> %d (sidecars for sidecars?)", len(before), len(after))
	}
	for path, content := range before {
		if after[path] != content {
			t.Errorf("sidecar %s changed on re-run", path)
		}
	}
}

func TestMetaContentDirectory(t *testing.T) {
	t.Parallel()

	content := metaContent("abc123", ImporterDefault, true)
	if !strings.Contains(content, "folderAsset: yes") {
		t.Error("directory sidecar should carry folderAsset: yes")
	}
	if !strings.HasPrefix(content, "fileFormatVersion: 2\n") {
		t.Error("sidecar should start with fileFormatVersion: 2")
	}
	if !strings.Contains(content, "guid: abc123\n") {
		t.Error("sidecar should carry the guid")
	}
}
