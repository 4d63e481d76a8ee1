// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Build-tool artifacts that have no place in a package payload. Patterns
// match against slash-separated paths relative to the Runtime folder.
var artifactFilePatterns = []string{
	"**/*.csproj",
	"**/*.sln",
	"**/*.vcxproj",
	"**/*.vcxproj.filters",
	"**/*.vcxproj.user",
	"**/*.suo",
	"**/*.user",
	"**/packages.config",
	"**/app.config",
	"**/web.config",
	"**/AssemblyInfo.cs",
	"**/GlobalAssemblyInfo.cs",
	"**/Directory.Build.props",
	"**/Directory.Build.targets",
	"**/.editorconfig",
	"**/.gitignore",
	"**/.gitattributes",
	"**/README.md",
	"**/LICENSE",
	"**/CHANGELOG.md",
	"**/CONTRIBUTING.md",
}

// IDE metadata folders removed wholesale.
var artifactDirPatterns = []string{
	"**/.vs",
	"**/.vscode",
	"**/.idea",
}

// cleanRuntime strips build-tool artifacts from the Runtime tree. Documentation
// files are removed too since the manifest carries description and license
// information, and the package root gets its own curated copies.
func (o *Organizer) cleanRuntime(runtimeDir string) error {
	removed := 0

	// Directories first so that removing a tree does not leave the walk
	// visiting files inside it.
	var doomedDirs []string
	err := filepath.WalkDir(runtimeDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == runtimeDir || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(runtimeDir, path)
		if err != nil {
			return err
		}
		if matchesAny(artifactDirPatterns, filepath.ToSlash(rel)) {
			doomedDirs = append(doomedDirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan runtime folder: %w", err)
	}
	for _, dir := range doomedDirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove artifact directory: %w", err)
		}
		removed++
	}

	var doomedFiles []string
	err = filepath.WalkDir(runtimeDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(runtimeDir, path)
		if err != nil {
			return err
		}
		if matchesAny(artifactFilePatterns, filepath.ToSlash(rel)) {
			doomedFiles = append(doomedFiles, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan runtime folder: %w", err)
	}
	for _, file := range doomedFiles {
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("remove artifact file: %w", err)
		}
		removed++
	}

	if removed > 0 {
		o.logger.Info("removed project artifacts from runtime folder", "count", removed)
	}
	return nil
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}
