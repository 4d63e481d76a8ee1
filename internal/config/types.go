// SPDX-License-Identifier: MPL-2.0

package config

type (
	// SourceSpec locates a git repository at a specific ref.
	SourceSpec struct {
		Type string `yaml:"type,omitempty"`
		URL  string `yaml:"url"`
		Ref  string `yaml:"ref"`
	}

	// VersionDefine is a version-conditional compile define carried into the
	// assembly definition.
	VersionDefine struct {
		Name       string `yaml:"name"`
		Expression string `yaml:"expression,omitempty"`
		Define     string `yaml:"define"`
	}

	// GitPackage describes a package wrapped from a git repository.
	GitPackage struct {
		Name        string     `yaml:"name"`
		Source      SourceSpec `yaml:"source"`
		ExtractPath string     `yaml:"extract_path,omitempty"`

		DisplayName  string            `yaml:"display_name,omitempty"`
		Version      string            `yaml:"version,omitempty"`
		Description  string            `yaml:"description,omitempty"`
		Author       string            `yaml:"author,omitempty"`
		Keywords     []string          `yaml:"keywords,omitempty"`
		Dependencies map[string]string `yaml:"dependencies,omitempty"`

		// Namespace enables assembly definition generation; empty means no
		// asmdef is produced.
		Namespace          string          `yaml:"namespace,omitempty"`
		AsmdefName         string          `yaml:"asmdef_name,omitempty"`
		AssemblyReferences []string        `yaml:"assembly_references,omitempty"`
		Platforms          []string        `yaml:"platforms,omitempty"`
		DefineConstraints  []string        `yaml:"define_constraints,omitempty"`
		VersionDefines     []VersionDefine `yaml:"version_defines,omitempty"`

		// ManifestExtra and AsmdefExtra are free-form fields merged last into
		// the generated manifest and assembly definition. They may override
		// any generated field.
		ManifestExtra map[string]any `yaml:"package_json_extra,omitempty"`
		AsmdefExtra   map[string]any `yaml:"asmdef_extra,omitempty"`
	}

	// NuGetPackage describes a package wrapped from the NuGet registry.
	NuGetPackage struct {
		Name      string `yaml:"name"`
		NuGetID   string `yaml:"nuget_id"`
		Version   string `yaml:"version"`
		Framework string `yaml:"framework,omitempty"`

		DisplayName  string            `yaml:"display_name,omitempty"`
		Description  string            `yaml:"description,omitempty"`
		Author       string            `yaml:"author,omitempty"`
		Keywords     []string          `yaml:"keywords,omitempty"`
		Dependencies map[string]string `yaml:"dependencies,omitempty"`

		ManifestExtra map[string]any `yaml:"package_json_extra,omitempty"`
	}

	// PackageList is the document shape of packages.yaml.
	PackageList struct {
		Packages      []GitPackage   `yaml:"packages"`
		NuGetPackages []NuGetPackage `yaml:"nuget_packages,omitempty"`
	}

	// Defaults are fallback values applied to every generated manifest.
	Defaults struct {
		Author string `mapstructure:"author" yaml:"author,omitempty"`
	}

	// GitHubSettings configure publishing to GitHub Packages.
	GitHubSettings struct {
		Owner       string `mapstructure:"owner" yaml:"owner,omitempty"`
		Repository  string `mapstructure:"repository" yaml:"repository,omitempty"`
		RegistryURL string `mapstructure:"registry_url" yaml:"registry_url,omitempty"`
		Token       string `mapstructure:"token" yaml:"token,omitempty"`
	}

	// BuildSettings toggle the optional layout passes.
	BuildSettings struct {
		RemoveProjectFiles  bool `mapstructure:"remove_csharp_project_files" yaml:"remove_csharp_project_files"`
		NormalizeNamespaces bool `mapstructure:"normalize_namespaces" yaml:"normalize_namespaces"`
	}

	// Settings is the document shape of settings.yaml.
	Settings struct {
		TemplatesDir string         `mapstructure:"templates_dir"`
		OutputDir    string         `mapstructure:"output_dir"`
		WorkDir      string         `mapstructure:"work_dir"`
		Defaults     Defaults       `mapstructure:"defaults"`
		GitHub       GitHubSettings `mapstructure:"github"`
		Build        BuildSettings  `mapstructure:"build"`
	}
)

// PackageKind distinguishes the two acquisition strategies.
type PackageKind string

const (
	// KindGit marks a package built from a cloned git repository.
	KindGit PackageKind = "git"
	// KindNuGet marks a package built from a downloaded NuGet artifact.
	KindNuGet PackageKind = "nuget"
	// KindUnknown marks a name with no configuration entry.
	KindUnknown PackageKind = "unknown"
)
