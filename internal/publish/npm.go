// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"upmwrap/internal/issue"
)

// npmPublisher publishes through the npm CLI. Used for GitHub Packages,
// which the CLI handles well once an .npmrc carries the scope mapping and
// auth token.
type npmPublisher struct {
	token       string
	owner       string
	registryURL string
	logger      *log.Logger
}

func newNpmPublisher(opts Options) *npmPublisher {
	return &npmPublisher{
		token:       opts.Token,
		owner:       opts.Owner,
		registryURL: opts.RegistryURL,
		logger:      opts.Logger,
	}
}

func (p *npmPublisher) Publish(ctx context.Context, dir string) error {
	scratch, err := os.MkdirTemp("", "upmwrap-publish-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	staged, manifest, err := stage(dir, scratch, p.owner, p.registryURL)
	if err != nil {
		return err
	}

	p.logger.Info("publishing package", "name", manifest.Name, "version", manifest.Version, "registry", p.registryURL)

	if err := p.writeNpmrc(scratch); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "npm", "publish", "--access", "public")
	cmd.Dir = staged
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return p.classifyFailure(stderr.String(), err)
	}

	p.logger.Info("published package", "name", manifest.Name, "version", manifest.Version)
	return nil
}

// classifyFailure maps npm CLI failures onto the publish failure taxonomy:
// version conflicts warn, missing auth is fatal with remediation, anything
// else is fatal as-is.
func (p *npmPublisher) classifyFailure(stderr string, runErr error) error {
	switch {
	case strings.Contains(stderr, "EPUBLISHCONFLICT"),
		strings.Contains(stderr, "cannot publish over the previously published version"):
		p.logger.Warn("package version already exists on registry", "detail", firstLine(stderr))
		return nil

	case strings.Contains(stderr, "ENEEDAUTH"), strings.Contains(stderr, "need auth"):
		return issue.NewErrorContext().
			WithOperation("authenticate with registry").
			WithResource(p.registryURL).
			WithSuggestion(fmt.Sprintf("Run 'npm login --scope=@%s --registry=%s'", p.owner, p.registryURL)).
			WithSuggestion("Check that the token has the packages:write scope").
			Wrap(runErr).
			BuildError()

	default:
		return issue.NewErrorContext().
			WithOperation("publish package").
			WithResource(p.registryURL).
			WithSuggestion("Inspect the npm error output below").
			Wrap(fmt.Errorf("%w: %s", runErr, strings.TrimSpace(stderr))).
			BuildError()
	}
}

func (p *npmPublisher) CheckExists(ctx context.Context, name, version string) (bool, error) {
	spec := fmt.Sprintf("%s@%s", scopedName(name, p.owner), version)
	cmd := exec.CommandContext(ctx, "npm", "view", spec, "version", "--registry="+p.registryURL)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("run npm view: %w", err)
	}
	return true, nil
}

// writeNpmrc drops registry auth config next to the staged package so the
// npm CLI picks it up without touching the user's own configuration.
func (p *npmPublisher) writeNpmrc(scratchDir string) error {
	host := strings.TrimPrefix(strings.TrimPrefix(p.registryURL, "https:"), "http:")
	content := fmt.Sprintf("@%s:registry=%s\n%s/:_authToken=%s\n",
		p.owner, p.registryURL, host, p.token)

	path := filepath.Join(scratchDir, ".npmrc")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write npm auth config: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
