// SPDX-License-Identifier: MPL-2.0

// Package publish pushes built packages to npm-compatible registries. Each
// supported registry gets exactly one transport: GitHub Packages goes
// through the npm CLI, npmjs through the registry's HTTP upload API, and
// OpenUPM accepts no automated submission at all.
package publish

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"upmwrap/internal/issue"
	"upmwrap/internal/upm"
)

// Registry identifies a publish target.
type Registry string

const (
	RegistryGitHub  Registry = "github"
	RegistryNpmjs   Registry = "npmjs"
	RegistryOpenUPM Registry = "openupm"
)

// Default registry endpoints.
const (
	githubRegistryURL = "https://npm.pkg.github.com"
	npmjsRegistryURL  = "https://registry.npmjs.org"
)

// Publisher pushes one built package directory to a registry.
type Publisher interface {
	// Publish uploads the package at dir. A version that already exists on
	// the registry is logged and not treated as an error.
	Publish(ctx context.Context, dir string) error

	// CheckExists reports whether name@version is already on the registry.
	CheckExists(ctx context.Context, name, version string) (bool, error)
}

// Options configure a Publisher. Zero values fall back to environment
// variables and registry defaults.
type Options struct {
	// Token authenticates against the registry. Falls back to GITHUB_TOKEN
	// for GitHub Packages and NPM_TOKEN for npmjs.
	Token string

	// Owner is the scope prefix for scoped package names. Falls back to the
	// owner half of GITHUB_REPOSITORY, then PACKAGE_OWNER.
	Owner string

	// RegistryURL overrides the registry endpoint.
	RegistryURL string

	Logger *log.Logger
}

// New creates the publisher for the given registry.
func New(registry Registry, opts Options) (Publisher, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Owner == "" {
		opts.Owner = ownerFromEnv()
	}

	switch registry {
	case RegistryGitHub:
		if opts.Token == "" {
			opts.Token = os.Getenv("GITHUB_TOKEN")
		}
		if opts.RegistryURL == "" {
			opts.RegistryURL = githubRegistryURL
		}
		if opts.Token == "" {
			return nil, issue.NewErrorContext().
				WithOperation("configure publisher").
				WithResource(string(registry)).
				WithSuggestion("Pass --token or set the GITHUB_TOKEN environment variable").
				BuildError()
		}
		if opts.Owner == "" {
			return nil, issue.NewErrorContext().
				WithOperation("configure publisher").
				WithResource(string(registry)).
				WithSuggestion("Pass --owner or set github.owner in settings.yaml").
				BuildError()
		}
		return newNpmPublisher(opts), nil

	case RegistryNpmjs:
		if opts.Token == "" {
			opts.Token = os.Getenv("NPM_TOKEN")
		}
		if opts.RegistryURL == "" {
			opts.RegistryURL = npmjsRegistryURL
		}
		if opts.Token == "" {
			return nil, issue.NewErrorContext().
				WithOperation("configure publisher").
				WithResource(string(registry)).
				WithSuggestion("Pass --token or set the NPM_TOKEN environment variable").
				BuildError()
		}
		return newHTTPPublisher(opts), nil

	case RegistryOpenUPM:
		return &manualPublisher{logger: opts.Logger}, nil

	default:
		return nil, issue.NewErrorContext().
			WithOperation("configure publisher").
			WithResource(string(registry)).
			WithSuggestion(`Supported registries are "github", "npmjs", and "openupm"`).
			BuildError()
	}
}

func ownerFromEnv() string {
	// GitHub Actions populates GITHUB_REPOSITORY as "owner/repo".
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		if owner, _, ok := strings.Cut(slug, "/"); ok && owner != "" {
			return owner
		}
	}
	return os.Getenv("PACKAGE_OWNER")
}

// scopedName prefixes name with the owner scope unless it is already scoped.
func scopedName(name, owner string) string {
	if strings.HasPrefix(name, "@") || owner == "" {
		return name
	}
	return fmt.Sprintf("@%s/%s", owner, name)
}

// stage copies the package into scratchDir/package and rewrites its manifest
// for the target registry: the name gains the owner scope, a repository
// pointer is added, and registryURL (when non-empty) lands in publishConfig.
// It returns the staged package directory and the rewritten manifest.
func stage(packageDir, scratchDir, owner, registryURL string) (string, *upm.Manifest, error) {
	manifest, err := upm.ReadManifest(packageDir)
	if err != nil {
		return "", nil, err
	}

	staged := filepath.Join(scratchDir, "package")
	if err := copyTree(packageDir, staged); err != nil {
		return "", nil, fmt.Errorf("stage package copy: %w", err)
	}

	originalName := manifest.Name
	manifest.Name = scopedName(originalName, owner)
	if owner != "" {
		manifest.SetExtra("repository", map[string]any{
			"type": "git",
			"url":  fmt.Sprintf("https://github.com/%s/%s.git", owner, originalName),
		})
	}
	if registryURL != "" {
		manifest.SetExtra("publishConfig", map[string]any{"registry": registryURL})
	}

	if err := upm.WriteManifest(staged, manifest); err != nil {
		return "", nil, err
	}
	return staged, manifest, nil
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
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	out, err := os.Create(dest)
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
