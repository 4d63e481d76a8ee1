// SPDX-License-Identifier: MPL-2.0

package nuget

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

type (
	// Dependency is a package dependency declared in a nuspec manifest.
	Dependency struct {
		ID      string `xml:"id,attr"`
		Version string `xml:"version,attr"`
	}

	// nuspec mirrors the subset of the .nuspec document we read. Dependencies
	// may appear directly under <dependencies> or inside per-framework
	// <group> elements; both paths are collected.
	nuspec struct {
		Metadata struct {
			Dependencies struct {
				Direct []Dependency `xml:"dependency"`
				Groups []struct {
					TargetFramework string       `xml:"targetFramework,attr"`
					Dependencies    []Dependency `xml:"dependency"`
				} `xml:"group"`
			} `xml:"dependencies"`
		} `xml:"metadata"`
	}
)

// Dependencies reads the nuspec file inside an unpacked package and returns
// its declared dependencies. A package without a nuspec, or with one we
// cannot parse, yields an empty list; the condition is logged, not fatal.
func (c *Client) Dependencies(extractDir string) []Dependency {
	matches, err := filepath.Glob(filepath.Join(extractDir, "*.nuspec"))
	if err != nil || len(matches) == 0 {
		c.logger.Warn("no nuspec file found", "package", extractDir)
		return nil
	}

	deps, err := parseNuspec(matches[0])
	if err != nil {
		c.logger.Warn("failed to parse nuspec", "file", matches[0], "err", err)
		return nil
	}
	return deps
}

func parseNuspec(path string) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nuspec: %w", err)
	}

	var doc nuspec
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode nuspec: %w", err)
	}

	var deps []Dependency
	for _, dep := range doc.Metadata.Dependencies.Direct {
		if dep.ID != "" && dep.Version != "" {
			deps = append(deps, dep)
		}
	}
	for _, group := range doc.Metadata.Dependencies.Groups {
		for _, dep := range group.Dependencies {
			if dep.ID != "" && dep.Version != "" {
				deps = append(deps, dep)
			}
		}
	}
	return deps, nil
}
