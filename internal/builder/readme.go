// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

// Conventional license filenames, probed in order. The first hit is copied
// to the package root under the canonical name.
var licenseNames = []string{
	"LICENSE",
	"LICENSE.txt",
	"LICENSE.md",
	"License",
	"License.txt",
	"License.md",
	"license",
	"license.txt",
	"license.md",
	"COPYING",
	"COPYING.txt",
	"COPYRIGHT",
	"COPYRIGHT.txt",
}

// Conventional README filenames, probed in order.
var readmeNames = []string{
	"README.md",
	"README.MD",
	"Readme.md",
	"readme.md",
	"README.txt",
	"README.rst",
	"README",
	"readme",
}

// Organizations rendered by their proper name in the disclaimer rather than
// the generic "the <segment> organization" form.
var wellKnownOrgs = map[string]bool{
	"microsoft": true,
	"google":    true,
	"facebook":  true,
	"meta":      true,
	"apple":     true,
	"oracle":    true,
	"ibm":       true,
	"amazon":    true,
	"aws":       true,
}

type readmeInfo struct {
	Name        string
	DisplayName string
	Version     string
	Namespace   string
	SourceURL   string
}

// copyLicense propagates the source license to the package root as LICENSE.
// A missing license is not an error.
func (b *Builder) copyLicense(sourceDir, packageDir string) {
	for _, name := range licenseNames {
		src := filepath.Join(sourceDir, name)
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			continue
		}

		data, err := os.ReadFile(src)
		if err != nil {
			b.logger.Warn("failed to read license file", "file", name, "err", err)
			return
		}
		dest := filepath.Join(packageDir, "LICENSE")
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			b.logger.Warn("failed to copy license file", "err", err)
			return
		}
		b.logger.Info("copied license file", "from", name)
		return
	}
	b.logger.Info("no license file found in source")
}

// writeReadme generates the package README: a disclaimer header, then the
// original README content when one exists (or a generic fallback), then a
// package information footer.
func (b *Builder) writeReadme(sourceDir, packageDir string, info readmeInfo) {
	var sb strings.Builder

	sb.WriteString(disclaimer(info.DisplayName, info.SourceURL))

	if original, name, ok := b.readOriginalReadme(sourceDir); ok {
		sb.WriteString("## Original Package Documentation\n\n")
		sb.WriteString(original)
		b.logger.Info("included original readme content", "from", name)
	} else {
		sb.WriteString("## Package Information\n\n")
		fmt.Fprintf(&sb, "This package wraps functionality from: %s\n\n", info.SourceURL)
		sb.WriteString("Please refer to the original repository for documentation and usage examples.\n")
	}

	sb.WriteString("\n---\n\n## Unity Package Information\n\n")
	fmt.Fprintf(&sb, "- **Package Name**: `%s`\n", info.Name)
	if info.Version != "" {
		fmt.Fprintf(&sb, "- **Version**: %s\n", info.Version)
	}
	if info.Namespace != "" {
		fmt.Fprintf(&sb, "- **Namespace**: `%s`\n", info.Namespace)
	}
	if info.SourceURL != "" {
		fmt.Fprintf(&sb, "- **Original Source**: %s\n", info.SourceURL)
	}

	dest := filepath.Join(packageDir, "README.md")
	if err := os.WriteFile(dest, []byte(sb.String()), 0o644); err != nil {
		b.logger.Warn("failed to write readme", "err", err)
		return
	}
	b.logger.Info("generated package readme", "file", dest)
}

// readOriginalReadme finds and decodes the source README, trying UTF-8 first
// and falling back to Latin-1 for legacy files.
func (b *Builder) readOriginalReadme(sourceDir string) (content, name string, ok bool) {
	for _, candidate := range readmeNames {
		path := filepath.Join(sourceDir, candidate)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("failed to read original readme", "file", candidate, "err", err)
			return "", "", false
		}

		if utf8.Valid(data) {
			return string(data), candidate, true
		}
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			b.logger.Warn("failed to decode original readme", "file", candidate, "err", err)
			return "", "", false
		}
		return string(decoded), candidate, true
	}
	return "", "", false
}

// disclaimer renders the header block naming the presumed maintaining
// organization, derived from the first path segment of a GitHub source URL.
func disclaimer(displayName, sourceURL string) string {
	author := "the original package author"
	if strings.Contains(sourceURL, "github.com") {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(sourceURL, "https://github.com/"), ".git")
		if parts := strings.Split(trimmed, "/"); len(parts) >= 1 && parts[0] != "" {
			org := parts[0]
			if wellKnownOrgs[strings.ToLower(org)] {
				author = cases.Title(language.English).String(org)
			} else {
				author = fmt.Sprintf("the %s organization", org)
			}
		}
	}

	return fmt.Sprintf(`# %s

> **⚠️ IMPORTANT DISCLAIMER ⚠️**
>
> This Unity package is a community-created wrapper and is **NOT officially
> affiliated with, endorsed by, or supported by %s**.
>
> - The wrapper author has **no affiliation** with %s
> - This package is provided **as-is** for Unity developers' convenience
> - For official support, please refer to the original repository
> - Use at your own risk in production environments

---

`, displayName, author, author)
}
