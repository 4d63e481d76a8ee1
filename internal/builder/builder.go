// SPDX-License-Identifier: MPL-2.0

// Package builder orchestrates the whole pipeline for one package: acquire
// sources, lay them out, generate the manifest and sidecars, and curate the
// license and README at the package root.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"upmwrap/internal/config"
	"upmwrap/internal/gitfetch"
	"upmwrap/internal/issue"
	"upmwrap/internal/layout"
	"upmwrap/internal/nuget"
	"upmwrap/internal/upm"
)

type (
	// Builder runs the build pipeline against a loaded configuration. Packages
	// are processed strictly one at a time; fetched clones and downloads live
	// under the config's work directory and persist across runs.
	Builder struct {
		cfg       *config.Config
		fetcher   *gitfetch.Fetcher
		nuget     *nuget.Client
		organizer *layout.Organizer
		logger    *log.Logger
	}

	// Option adjusts a Builder after its defaults are constructed.
	Option func(*Builder)
)

// WithNuGetClient replaces the registry client, primarily for test servers.
func WithNuGetClient(c *nuget.Client) Option {
	return func(b *Builder) { b.nuget = c }
}

// New creates a Builder, its working directories included.
func New(cfg *config.Config, logger *log.Logger, opts ...Option) (*Builder, error) {
	if logger == nil {
		logger = log.Default()
	}

	fetcher, err := gitfetch.NewFetcher(cfg.WorkDir(), logger)
	if err != nil {
		return nil, err
	}
	client, err := nuget.NewClient(filepath.Join(cfg.WorkDir(), "nuget"), logger)
	if err != nil {
		return nil, err
	}

	organizer := layout.NewOrganizer(logger)
	organizer.RemoveProjectFiles = cfg.Settings.Build.RemoveProjectFiles
	organizer.NormalizeNamespaces = cfg.Settings.Build.NormalizeNamespaces

	b := &Builder{
		cfg:       cfg,
		fetcher:   fetcher,
		nuget:     client,
		organizer: organizer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// BuildPackage builds the named package and returns its output directory.
func (b *Builder) BuildPackage(ctx context.Context, name string) (string, error) {
	b.logger.Info("building package", "name", name)

	switch b.cfg.Kind(name) {
	case config.KindGit:
		return b.buildGitPackage(ctx, name)
	case config.KindNuGet:
		return b.buildNuGetPackage(ctx, name)
	default:
		return "", issue.NewErrorContext().
			WithOperation("build package").
			WithResource(name).
			WithSuggestion("Check the package name against 'upmwrap list'").
			WithSuggestion("Add it first with 'upmwrap add'").
			BuildError()
	}
}

// BuildAll builds every configured package in configuration order. The first
// failure aborts the batch; packages built so far are returned alongside the
// error.
func (b *Builder) BuildAll(ctx context.Context) ([]string, error) {
	var built []string
	for _, name := range b.cfg.AllPackageNames() {
		dir, err := b.BuildPackage(ctx, name)
		if err != nil {
			return built, fmt.Errorf("build package %q: %w", name, err)
		}
		built = append(built, dir)
	}
	b.logger.Info("built all packages", "count", len(built))
	return built, nil
}

func (b *Builder) buildGitPackage(ctx context.Context, name string) (string, error) {
	pkg := b.cfg.GitPackage(name)

	repoPath, err := b.fetcher.CloneOrUpdate(ctx, pkg.Source.URL, pkg.Source.Ref, name)
	if err != nil {
		return "", err
	}

	extractPath := pkg.ExtractPath
	if extractPath == "" {
		extractPath = "."
	}
	sourceDir := filepath.Join(repoPath, extractPath)
	if _, err := os.Stat(sourceDir); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("locate extract path").
			WithResource(extractPath).
			WithSuggestion("Check the extract_path entry against the repository layout").
			Wrap(err).
			BuildError()
	}

	outDir, err := b.freshOutputDir(name)
	if err != nil {
		return "", err
	}

	runtimeDir, err := b.organizer.LayoutSource(sourceDir, outDir)
	if err != nil {
		return "", err
	}

	manifest := b.gitManifest(pkg)
	if err := upm.WriteManifest(outDir, manifest); err != nil {
		return "", err
	}

	if pkg.Namespace != "" {
		asmdef := b.assemblyDefinition(pkg)
		if err := upm.WriteAssemblyDefinition(runtimeDir, asmdef); err != nil {
			return "", err
		}
	}

	b.copyLicense(repoPath, outDir)
	b.writeReadme(repoPath, outDir, readmeInfo{
		Name:        pkg.Name,
		DisplayName: manifest.DisplayName,
		Version:     pkg.Version,
		Namespace:   pkg.Namespace,
		SourceURL:   pkg.Source.URL,
	})

	if err := upm.GenerateMetaFiles(outDir); err != nil {
		return "", err
	}

	b.logger.Info("package built", "name", name, "dir", outDir)
	return outDir, nil
}

func (b *Builder) buildNuGetPackage(ctx context.Context, name string) (string, error) {
	pkg := b.cfg.NuGetPackage(name)

	framework := pkg.Framework
	if framework == "" {
		framework = "netstandard2.0"
	}

	extractDir, err := b.nuget.Download(ctx, pkg.NuGetID, pkg.Version)
	if err != nil {
		return "", err
	}

	dlls := b.nuget.ExtractDLLs(extractDir, framework)
	if len(dlls) == 0 {
		return "", issue.NewErrorContext().
			WithOperation("extract binaries").
			WithResource(fmt.Sprintf("%s v%s", pkg.NuGetID, pkg.Version)).
			WithSuggestion(fmt.Sprintf("No DLLs found for framework %q, try another framework entry", framework)).
			BuildError()
	}

	if deps := b.nuget.Dependencies(extractDir); len(deps) > 0 {
		ids := make([]string, len(deps))
		for i, d := range deps {
			ids[i] = fmt.Sprintf("%s %s", d.ID, d.Version)
		}
		b.logger.Warn("package declares dependencies that are not bundled",
			"name", name, "dependencies", strings.Join(ids, ", "))
	}

	outDir, err := b.freshOutputDir(name)
	if err != nil {
		return "", err
	}

	if _, err := b.organizer.LayoutBinaries(dlls, outDir); err != nil {
		return "", err
	}

	manifest := b.nugetManifest(pkg)
	if err := upm.WriteManifest(outDir, manifest); err != nil {
		return "", err
	}

	b.copyLicense(extractDir, outDir)
	b.writeReadme(extractDir, outDir, readmeInfo{
		Name:        pkg.Name,
		DisplayName: manifest.DisplayName,
		Version:     pkg.Version,
		SourceURL:   fmt.Sprintf("https://www.nuget.org/packages/%s", pkg.NuGetID),
	})

	if err := upm.GenerateMetaFiles(outDir); err != nil {
		return "", err
	}

	b.logger.Info("package built", "name", name, "dir", outDir)
	return outDir, nil
}

// CheckForUpdates reports which packages would change on the next build. A
// git package needs an update when it has never been fetched or when its
// configured ref differs from the checked-out one. NuGet packages are always
// reported; no version diffing against the registry is attempted.
func (b *Builder) CheckForUpdates() []string {
	var stale []string
	for _, name := range b.cfg.AllPackageNames() {
		switch b.cfg.Kind(name) {
		case config.KindGit:
			if b.gitPackageStale(name) {
				stale = append(stale, name)
			}
		case config.KindNuGet:
			stale = append(stale, name)
			b.logger.Info("registry package marked for update", "name", name)
		}
	}
	return stale
}

func (b *Builder) gitPackageStale(name string) bool {
	pkg := b.cfg.GitPackage(name)
	if pkg == nil {
		return false
	}

	if _, err := os.Stat(b.fetcher.RepoPath(name)); err != nil {
		return true
	}

	info := b.fetcher.Inspect(name)
	if info != nil && info.Ref != pkg.Source.Ref {
		b.logger.Info("package ref drifted", "name", name, "have", info.Ref, "want", pkg.Source.Ref)
		return true
	}
	return false
}

// Close releases acquisition resources. Fetched working trees stay on disk
// for the next run.
func (b *Builder) Close() {
	b.fetcher.Close()
}

func (b *Builder) freshOutputDir(name string) (string, error) {
	outDir := filepath.Join(b.cfg.OutputDir(), name)
	if err := os.RemoveAll(outDir); err != nil {
		return "", fmt.Errorf("clear package output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create package output directory: %w", err)
	}
	return outDir, nil
}

func (b *Builder) gitManifest(pkg *config.GitPackage) *upm.Manifest {
	m := upm.NewManifest(pkg.Name, pkg.DisplayName, pkg.Version, pkg.Description, b.author(pkg.Author))
	m.Namespace = pkg.Namespace
	if len(pkg.Keywords) > 0 {
		m.Keywords = pkg.Keywords
	}
	if len(pkg.Dependencies) > 0 {
		m.Dependencies = pkg.Dependencies
	}
	b.applyManifestExtras(m, pkg.ManifestExtra)
	return m
}

func (b *Builder) nugetManifest(pkg *config.NuGetPackage) *upm.Manifest {
	m := upm.NewManifest(pkg.Name, pkg.DisplayName, pkg.Version, pkg.Description, b.author(pkg.Author))
	if len(pkg.Keywords) > 0 {
		m.Keywords = pkg.Keywords
	}
	if len(pkg.Dependencies) > 0 {
		m.Dependencies = pkg.Dependencies
	}
	b.applyManifestExtras(m, pkg.ManifestExtra)
	return m
}

// applyManifestExtras merges per-package extra fields and, when a GitHub
// owner is configured, a publishConfig pointing the npm client at the GitHub
// registry scope. The publishConfig wins over a conflicting extra entry.
func (b *Builder) applyManifestExtras(m *upm.Manifest, extra map[string]any) {
	for k, v := range extra {
		m.SetExtra(k, v)
	}
	if owner := b.cfg.Settings.GitHub.Owner; owner != "" {
		m.SetExtra("publishConfig", map[string]any{
			"registry": fmt.Sprintf("https://npm.pkg.github.com/@%s", owner),
		})
	}
}

func (b *Builder) assemblyDefinition(pkg *config.GitPackage) *upm.AssemblyDefinition {
	name := pkg.AsmdefName
	if name == "" {
		name = strings.ReplaceAll(pkg.Name, ".", "_")
	}

	asmdef := upm.NewAssemblyDefinition(name, pkg.Namespace)
	if len(pkg.AssemblyReferences) > 0 {
		asmdef.References = pkg.AssemblyReferences
	}
	if len(pkg.Platforms) > 0 {
		asmdef.IncludePlatforms = pkg.Platforms
	}
	if len(pkg.DefineConstraints) > 0 {
		asmdef.DefineConstraints = pkg.DefineConstraints
	}
	for _, vd := range pkg.VersionDefines {
		asmdef.VersionDefines = append(asmdef.VersionDefines, upm.VersionDefine{
			Name:       vd.Name,
			Expression: vd.Expression,
			Define:     vd.Define,
		})
	}
	for k, v := range pkg.AsmdefExtra {
		if asmdef.Extra == nil {
			asmdef.Extra = make(map[string]any)
		}
		asmdef.Extra[k] = v
	}
	return asmdef
}

func (b *Builder) author(author string) string {
	if author != "" {
		return author
	}
	return b.cfg.Settings.Defaults.Author
}
