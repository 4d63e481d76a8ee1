// SPDX-License-Identifier: MPL-2.0

// Package nuget downloads and unpacks NuGet registry artifacts so their
// prebuilt assemblies can be wrapped into packages.
package nuget

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultFramework is the target framework probed when a package entry does
// not name one.
const DefaultFramework = "netstandard2.0"

// downloadTimeout bounds each artifact download attempt. There is no retry;
// the only recovery is the documented fallback endpoint.
const downloadTimeout = 30 * time.Second

type (
	// Client downloads NuGet packages into a working directory, one
	// subdirectory per id+version.
	Client struct {
		workDir    string
		httpClient *http.Client
		logger     *log.Logger
		endpoints  EndpointFunc
	}

	// EndpointFunc returns the ordered list of download URLs to try for an
	// id+version pair. The first URL is the primary endpoint; each later one
	// is a fallback.
	EndpointFunc func(id, version string) []string

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// defaultEndpoints targets nuget.org: the v2 package endpoint first, the v3
// flat container as fallback.
func defaultEndpoints(id, version string) []string {
	lower := strings.ToLower(id)
	return []string{
		fmt.Sprintf("https://www.nuget.org/api/v2/package/%s/%s", id, version),
		fmt.Sprintf("https://api.nuget.org/v3-flatcontainer/%s/%s/%s.%s.nupkg", lower, version, lower, version),
	}
}

// WithHTTPClient sets a custom HTTP client, useful for tests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(n *Client) { n.httpClient = c }
}

// WithEndpoints overrides the registry endpoints, primarily for test servers.
func WithEndpoints(fn EndpointFunc) ClientOption {
	return func(n *Client) { n.endpoints = fn }
}

// NewClient creates a Client rooted at workDir, creating the directory if
// needed.
func NewClient(workDir string, logger *log.Logger, opts ...ClientOption) (*Client, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create nuget working directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		workDir:    workDir,
		httpClient: &http.Client{Timeout: downloadTimeout},
		logger:     logger,
		endpoints:  defaultEndpoints,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Download fetches the artifact for id@version and unpacks it. The extraction
// directory is recreated fresh on every call, so a stale prior extraction for
// the same id+version never leaks into the result. Both registry endpoints
// failing, or an artifact that is not a valid zip, are fatal.
func (c *Client) Download(ctx context.Context, id, version string) (string, error) {
	c.logger.Info("downloading registry package", "id", id, "version", version)

	packageDir := filepath.Join(c.workDir, fmt.Sprintf("nuget_%s_%s", id, version))
	if err := os.RemoveAll(packageDir); err != nil {
		return "", fmt.Errorf("clear package directory: %w", err)
	}
	if err := os.MkdirAll(packageDir, 0o755); err != nil {
		return "", fmt.Errorf("create package directory: %w", err)
	}

	nupkgPath := filepath.Join(packageDir, fmt.Sprintf("%s.%s.nupkg", id, version))

	var lastErr error
	downloaded := false
	for _, url := range c.endpoints(id, version) {
		c.logger.Debug("trying endpoint", "url", url)
		if err := c.downloadTo(ctx, url, nupkgPath); err != nil {
			lastErr = err
			continue
		}
		downloaded = true
		break
	}
	if !downloaded {
		return "", fmt.Errorf("download %s@%s from all registry endpoints: %w", id, version, lastErr)
	}

	extractDir := filepath.Join(packageDir, fmt.Sprintf("%s.%s", id, version))
	if err := unzip(nupkgPath, extractDir); err != nil {
		return "", fmt.Errorf("unpack %s@%s: %w", id, version, err)
	}

	c.logger.Info("downloaded registry package", "id", id, "version", version, "path", extractDir)
	return extractDir, nil
}

func (c *Client) downloadTo(ctx context.Context, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// ExtractDLLs returns the assembly files for the requested framework inside an
// unpacked package. It probes a fixed ordered list of lib folder candidates
// and returns the first folder that contains any; an empty result is a
// soft-fail, logged with the folders that were actually present so the
// configuration can be corrected.
func (c *Client) ExtractDLLs(extractDir, framework string) []string {
	if framework == "" {
		framework = DefaultFramework
	}
	c.logger.Info("extracting assemblies", "framework", framework)

	candidates := []string{
		filepath.Join("lib", framework),
		filepath.Join("lib", strings.ReplaceAll(framework, ".", "")),
		filepath.Join("lib", "netstandard2.0"),
		filepath.Join("lib", "netstandard20"),
		filepath.Join("lib", "net6.0"),
		filepath.Join("lib", "net5.0"),
		filepath.Join("lib", "netcoreapp3.1"),
		"lib",
	}

	for _, candidate := range candidates {
		dir := filepath.Join(extractDir, candidate)
		matches, err := filepath.Glob(filepath.Join(dir, "*.dll"))
		if err != nil || len(matches) == 0 {
			continue
		}
		c.logger.Info("found framework directory", "dir", dir, "assemblies", len(matches))
		return matches
	}

	c.logger.Warn("no assemblies found for framework", "framework", framework, "package", extractDir)
	if available := availableFrameworks(filepath.Join(extractDir, "lib")); len(available) > 0 {
		c.logger.Info("available frameworks", "frameworks", available)
	}
	return nil
}

func availableFrameworks(libDir string) []string {
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}

// unzip extracts a zip archive to dest, guarding against entries that escape
// the destination directory.
func unzip(archivePath, dest string) (err error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("not a valid zip archive: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, file := range reader.File {
		destPath := filepath.Join(dest, filepath.FromSlash(file.Name))

		rel, relErr := filepath.Rel(dest, destPath)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("invalid path in archive: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if mkErr := os.MkdirAll(destPath, 0o755); mkErr != nil {
				return fmt.Errorf("create directory: %w", mkErr)
			}
			continue
		}

		if mkErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkErr != nil {
			return fmt.Errorf("create parent directory: %w", mkErr)
		}
		if exErr := extractFile(file, destPath); exErr != nil {
			return fmt.Errorf("extract %s: %w", file.Name, exErr)
		}
	}
	return nil
}

func extractFile(file *zip.File, destPath string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	mode := file.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, rc) //nolint:gosec // archives come from the configured registry
	return err
}
