// SPDX-License-Identifier: MPL-2.0

package upm

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MetaSuffix is appended to an asset path to form its sidecar path.
const MetaSuffix = ".meta"

// Importer classifies an asset for the engine's import pipeline.
type Importer string

// Importer types recognized by the sidecar generator.
const (
	ImporterMono       Importer = "MonoImporter"
	ImporterAsmdef     Importer = "AssemblyDefinitionImporter"
	ImporterPlugin     Importer = "PluginImporter"
	ImporterTextScript Importer = "TextScriptImporter"
	ImporterDefault    Importer = "DefaultImporter"
)

// textExtensions maps structured-text extensions to the text importer.
var textExtensions = map[string]bool{
	".json": true, ".txt": true, ".md": true,
	".xml": true, ".yaml": true, ".yml": true,
}

// ImporterFor classifies a path by extension. Directories always classify as
// the default importer; unknown extensions fall back to it too.
func ImporterFor(path string, isDir bool) Importer {
	if isDir {
		return ImporterDefault
	}
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".cs":
		return ImporterMono
	case ext == ".asmdef":
		return ImporterAsmdef
	case ext == ".dll":
		return ImporterPlugin
	case textExtensions[ext]:
		return ImporterTextScript
	default:
		return ImporterDefault
	}
}

// NewGUID mints a sidecar identifier: a random 128-bit value rendered as 32
// hex digits. Collision probability is negligible at this size.
func NewGUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// metaContent renders the sidecar document for one asset.
func metaContent(guid string, importer Importer, isDir bool) string {
	var b strings.Builder

	b.WriteString("fileFormatVersion: 2\n")
	fmt.Fprintf(&b, "guid: %s\n", guid)
	if isDir {
		b.WriteString("folderAsset: yes\n")
	}
	fmt.Fprintf(&b, "%s:\n", importer)
	b.WriteString("  externalObjects: {}\n")

	switch importer {
	case ImporterMono:
		b.WriteString("  serializedVersion: 2\n")
		b.WriteString("  defaultReferences: []\n")
		b.WriteString("  executionOrder: 0\n")
		b.WriteString("  icon: {instanceID: 0}\n")
	case ImporterPlugin:
		b.WriteString("  serializedVersion: 2\n")
		b.WriteString("  iconMap: {}\n")
		b.WriteString("  executionOrder: {}\n")
		b.WriteString("  isPreloaded: 0\n")
		b.WriteString("  isOverridable: 0\n")
		b.WriteString("  isExplicitlyReferenced: 0\n")
		b.WriteString("  validateReferences: 1\n")
	}

	b.WriteString("  userData: \n")
	b.WriteString("  assetBundleName: \n")
	b.WriteString("  assetBundleVariant: \n")

	return b.String()
}

// WriteMeta writes the sidecar for assetPath. An existing sidecar is left
// untouched so identifiers never churn across re-runs.
func WriteMeta(assetPath string, isDir bool) error {
	metaPath := assetPath + MetaSuffix
	if _, err := os.Stat(metaPath); err == nil {
		return nil
	}

	content := metaContent(NewGUID(), ImporterFor(assetPath, isDir), isDir)
	if err := os.WriteFile(metaPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// GenerateMetaFiles walks the package tree and writes a sidecar beside every
// file and directory that lacks one. The walk includes directories but not
// the root itself; sidecar files themselves are skipped. The operation is
// idempotent: a second run generates nothing new.
func GenerateMetaFiles(packageDir string) error {
	return filepath.WalkDir(packageDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == packageDir {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), MetaSuffix) {
			return nil
		}
		if err := WriteMeta(path, d.IsDir()); err != nil {
			return fmt.Errorf("sidecar for %s: %w", path, err)
		}
		return nil
	})
}
