// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"upmwrap/internal/issue"
)

const (
	// PackagesFileName is the package list file inside the config directory.
	PackagesFileName = "packages.yaml"
	// SettingsFileName is the settings file inside the config directory.
	SettingsFileName = "settings.yaml"
)

// Config is the loaded configuration for one upmwrap run. It is read once at
// startup and treated as immutable during a build; only AddGitPackage and
// RemovePackage mutate it, and only Save writes it back.
type Config struct {
	// Dir is the configuration directory holding both YAML files.
	Dir string

	Settings Settings
	List     PackageList
}

// Load reads packages.yaml and settings.yaml from dir. Missing files are not
// errors: a missing package list yields an empty list and missing settings
// yield defaults, matching first-run behavior.
func Load(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	if err := cfg.loadPackages(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSettings() error {
	v := viper.New()
	v.SetConfigFile(filepath.Join(c.Dir, SettingsFileName))
	v.SetConfigType("yaml")

	v.SetDefault("templates_dir", "templates")
	v.SetDefault("output_dir", "packages")
	v.SetDefault("work_dir", ".upmwrap-work")
	v.SetDefault("build.remove_csharp_project_files", true)
	v.SetDefault("build.normalize_namespaces", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing settings file falls back to pure defaults.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(filepath.Join(c.Dir, SettingsFileName)).
				WithSuggestion("Check the YAML syntax of settings.yaml").
				Wrap(err).
				BuildError()
		}
	}

	if err := v.Unmarshal(&c.Settings); err != nil {
		return issue.NewErrorContext().
			WithOperation("parse settings").
			WithResource(filepath.Join(c.Dir, SettingsFileName)).
			Wrap(err).
			BuildError()
	}

	return nil
}

func (c *Config) loadPackages() error {
	path := filepath.Join(c.Dir, PackagesFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.List = PackageList{}
			return nil
		}
		return fmt.Errorf("read package list: %w", err)
	}

	if err := yaml.Unmarshal(data, &c.List); err != nil {
		return issue.NewErrorContext().
			WithOperation("parse package list").
			WithResource(path).
			WithSuggestion("Check the YAML syntax of packages.yaml").
			Wrap(err).
			BuildError()
	}

	return nil
}

// Save writes the package list back to packages.yaml. Settings are never
// written by upmwrap.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(&c.List)
	if err != nil {
		return fmt.Errorf("encode package list: %w", err)
	}

	path := filepath.Join(c.Dir, PackagesFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write package list: %w", err)
	}

	return nil
}

// GitPackage returns the git package entry with the given name, or nil.
func (c *Config) GitPackage(name string) *GitPackage {
	for i := range c.List.Packages {
		if c.List.Packages[i].Name == name {
			return &c.List.Packages[i]
		}
	}
	return nil
}

// NuGetPackage returns the NuGet package entry with the given name, or nil.
func (c *Config) NuGetPackage(name string) *NuGetPackage {
	for i := range c.List.NuGetPackages {
		if c.List.NuGetPackages[i].Name == name {
			return &c.List.NuGetPackages[i]
		}
	}
	return nil
}

// Kind reports whether name is configured as a git package, a NuGet package,
// or not at all. The git list is consulted first, so a name present in both
// lists builds as a git package.
func (c *Config) Kind(name string) PackageKind {
	if c.GitPackage(name) != nil {
		return KindGit
	}
	if c.NuGetPackage(name) != nil {
		return KindNuGet
	}
	return KindUnknown
}

// AllPackageNames returns every configured package name, git entries first.
func (c *Config) AllPackageNames() []string {
	names := make([]string, 0, len(c.List.Packages)+len(c.List.NuGetPackages))
	for i := range c.List.Packages {
		if c.List.Packages[i].Name != "" {
			names = append(names, c.List.Packages[i].Name)
		}
	}
	for i := range c.List.NuGetPackages {
		if c.List.NuGetPackages[i].Name != "" {
			names = append(names, c.List.NuGetPackages[i].Name)
		}
	}
	return names
}

// AddGitPackage appends a git package entry. It does not write to disk;
// call Save afterwards.
func (c *Config) AddGitPackage(pkg GitPackage) error {
	if pkg.Name == "" {
		return fmt.Errorf("package name is required")
	}
	if c.Kind(pkg.Name) != KindUnknown {
		return fmt.Errorf("package %q already configured", pkg.Name)
	}
	c.List.Packages = append(c.List.Packages, pkg)
	return nil
}

// RemovePackage removes the named entry from either list. Returns false if
// no entry matched.
func (c *Config) RemovePackage(name string) bool {
	for i := range c.List.Packages {
		if c.List.Packages[i].Name == name {
			c.List.Packages = append(c.List.Packages[:i], c.List.Packages[i+1:]...)
			return true
		}
	}
	for i := range c.List.NuGetPackages {
		if c.List.NuGetPackages[i].Name == name {
			c.List.NuGetPackages = append(c.List.NuGetPackages[:i], c.List.NuGetPackages[i+1:]...)
			return true
		}
	}
	return false
}

// resolveDir resolves a settings path against the parent of the config
// directory, so a project keeps its config, output, and work directories
// side by side by default.
func (c *Config) resolveDir(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(c.Dir), path)
}

// TemplatesDir returns the resolved templates directory.
func (c *Config) TemplatesDir() string { return c.resolveDir(c.Settings.TemplatesDir) }

// OutputDir returns the resolved package output directory.
func (c *Config) OutputDir() string { return c.resolveDir(c.Settings.OutputDir) }

// WorkDir returns the resolved working directory for clones and downloads.
func (c *Config) WorkDir() string { return c.resolveDir(c.Settings.WorkDir) }
