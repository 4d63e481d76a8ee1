// SPDX-License-Identifier: MPL-2.0

// Package layout arranges acquired files into the package directory
// convention: a Runtime folder for compiled-from-source payloads, a Plugins
// folder for prebuilt binaries, and optional cleanup and source
// normalization passes over the Runtime tree.
package layout

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Fixed payload folder names inside a package directory.
const (
	RuntimeDirName = "Runtime"
	PluginsDirName = "Plugins"
	EditorDirName  = "Editor"
)

// Organizer copies acquired sources and binaries into the package layout.
type Organizer struct {
	// RemoveProjectFiles enables the cleanup pass that strips build-tool
	// artifacts from the Runtime folder.
	RemoveProjectFiles bool

	// NormalizeNamespaces enables rewriting file-scoped namespace
	// declarations into block form.
	NormalizeNamespaces bool

	logger *log.Logger
}

// NewOrganizer creates an Organizer with both optional passes enabled.
func NewOrganizer(logger *log.Logger) *Organizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Organizer{
		RemoveProjectFiles:  true,
		NormalizeNamespaces: true,
		logger:              logger,
	}
}

// LayoutSource copies a fetched source tree into packageDir and returns the
// Runtime folder path.
//
// When the source already follows the Runtime convention, its Runtime folder
// is copied as-is and every other top-level entry lands at the package root,
// preserving structures like an Editor folder without introducing
// Runtime/Runtime nesting. Otherwise the whole tree is treated as runtime
// content and copied into a fresh Runtime folder.
func (o *Organizer) LayoutSource(sourceDir, packageDir string) (string, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return "", fmt.Errorf("source path not found: %w", err)
	}

	runtimeDir := filepath.Join(packageDir, RuntimeDirName)

	srcRuntime := filepath.Join(sourceDir, RuntimeDirName)
	if info, err := os.Stat(srcRuntime); err == nil && info.IsDir() {
		if err := copyTree(srcRuntime, runtimeDir); err != nil {
			return "", fmt.Errorf("copy runtime folder: %w", err)
		}

		entries, err := os.ReadDir(sourceDir)
		if err != nil {
			return "", fmt.Errorf("read source directory: %w", err)
		}
		for _, entry := range entries {
			if entry.Name() == RuntimeDirName {
				continue
			}
			src := filepath.Join(sourceDir, entry.Name())
			dest := filepath.Join(packageDir, entry.Name())
			if entry.IsDir() {
				if err := copyTree(src, dest); err != nil {
					return "", fmt.Errorf("copy %s: %w", entry.Name(), err)
				}
			} else if err := copyFile(src, dest); err != nil {
				return "", fmt.Errorf("copy %s: %w", entry.Name(), err)
			}
		}
	} else {
		if err := copyTree(sourceDir, runtimeDir); err != nil {
			return "", fmt.Errorf("copy source tree: %w", err)
		}
	}

	if o.RemoveProjectFiles {
		if err := o.cleanRuntime(runtimeDir); err != nil {
			return "", err
		}
	}
	if o.NormalizeNamespaces {
		if err := o.normalizeTree(runtimeDir); err != nil {
			return "", err
		}
	}

	o.logger.Info("organized source into runtime structure", "dir", runtimeDir)
	return runtimeDir, nil
}

// LayoutBinaries copies binary files into a flat Plugins folder under
// packageDir and returns its path. Files are not deduplicated: a later file
// with the same base name silently overwrites an earlier one.
func (o *Organizer) LayoutBinaries(files []string, packageDir string) (string, error) {
	pluginsDir := filepath.Join(packageDir, PluginsDirName)
	if err := os.MkdirAll(pluginsDir, 0o755); err != nil {
		return "", fmt.Errorf("create plugins folder: %w", err)
	}

	for _, file := range files {
		dest := filepath.Join(pluginsDir, filepath.Base(file))
		if err := copyFile(file, dest); err != nil {
			return "", fmt.Errorf("copy binary %s: %w", filepath.Base(file), err)
		}
	}

	o.logger.Info("organized binaries into plugins structure", "dir", pluginsDir, "count", len(files))
	return pluginsDir, nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
