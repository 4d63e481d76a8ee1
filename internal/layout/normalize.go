// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches a file-scoped namespace declaration: `namespace Foo.Bar;` on its
// own line, possibly indented.
var fileScopedNamespaceRe = regexp.MustCompile(`^(\s*)namespace\s+([A-Za-z_][A-Za-z0-9_.]*)\s*;\s*$`)

// normalizeTree rewrites file-scoped namespace declarations in C# sources
// under dir into the block-scoped form some toolchain versions require. Only
// the first declaration in a file is rewritten; a file that already uses
// block form is left untouched.
func (o *Organizer) normalizeTree(dir string) error {
	normalized := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".cs") {
			return nil
		}
		changed, err := normalizeFile(path)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", filepath.Base(path), err)
		}
		if changed {
			normalized++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if normalized > 0 {
		o.logger.Info("converted file-scoped namespaces to block form", "count", normalized)
	}
	return nil
}

func normalizeFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	lines := strings.Split(string(data), "\n")
	match := -1
	var indent, name string
	for i, line := range lines {
		if m := fileScopedNamespaceRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			match = i
			indent = m[1]
			name = m[2]
			break
		}
	}
	if match < 0 {
		return false, nil
	}

	var out bytes.Buffer
	for i, line := range lines {
		if i == match {
			out.WriteString(indent + "namespace " + name + "\n")
			out.WriteString(indent + "{\n")
			continue
		}
		out.WriteString(line)
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}
	if !strings.HasSuffix(out.String(), "\n") {
		out.WriteString("\n")
	}
	out.WriteString(indent + "}\n")

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out.Bytes(), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}
