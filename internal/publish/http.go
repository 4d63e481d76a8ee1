// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"upmwrap/internal/issue"
	"upmwrap/internal/upm"
)

// httpPublisher talks to the registry's upload API directly: it builds the
// package tarball itself and PUTs a metadata document with the tarball
// attached. Used for npmjs, where skipping the CLI avoids shelling out for
// every package.
type httpPublisher struct {
	token       string
	owner       string
	registryURL string
	client      *http.Client
	logger      *log.Logger
}

func newHTTPPublisher(opts Options) *httpPublisher {
	return &httpPublisher{
		token:       opts.Token,
		owner:       opts.Owner,
		registryURL: strings.TrimSuffix(opts.RegistryURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      opts.Logger,
	}
}

func (p *httpPublisher) Publish(ctx context.Context, dir string) error {
	scratch, err := os.MkdirTemp("", "upmwrap-publish-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	// No publishConfig here: the upload URL is explicit.
	staged, manifest, err := stage(dir, scratch, p.owner, "")
	if err != nil {
		return err
	}

	p.logger.Info("publishing package", "name", manifest.Name, "version", manifest.Version, "registry", p.registryURL)

	tarball, err := buildTarball(staged)
	if err != nil {
		return fmt.Errorf("build package tarball: %w", err)
	}

	body, err := p.uploadDocument(manifest, tarball)
	if err != nil {
		return err
	}

	endpoint := p.registryURL + "/" + url.PathEscape(manifest.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("upload package").
			WithResource(endpoint).
			WithSuggestion("Check network connectivity to the registry").
			Wrap(err).
			BuildError()
	}
	defer resp.Body.Close()

	return p.classifyResponse(resp, manifest.Name, manifest.Version)
}

func (p *httpPublisher) classifyResponse(resp *http.Response, name, version string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.logger.Info("published package", "name", name, "version", version)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusConflict:
		p.logger.Warn("package version already exists on registry", "name", name, "version", version)
		return nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return issue.NewErrorContext().
			WithOperation("authenticate with registry").
			WithResource(p.registryURL).
			WithSuggestion("Check that NPM_TOKEN is set and has publish rights").
			Wrap(fmt.Errorf("registry returned %s", resp.Status)).
			BuildError()

	default:
		return issue.NewErrorContext().
			WithOperation("upload package").
			WithResource(p.registryURL).
			Wrap(fmt.Errorf("registry returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))).
			BuildError()
	}
}

func (p *httpPublisher) CheckExists(ctx context.Context, name, version string) (bool, error) {
	endpoint := p.registryURL + "/" + url.PathEscape(scopedName(name, p.owner)) + "/" + url.PathEscape(version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query registry: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

// uploadDocument assembles the registry publish document: the version
// metadata with its dist block, plus the tarball as a base64 attachment.
func (p *httpPublisher) uploadDocument(manifest *upm.Manifest, tarball []byte) ([]byte, error) {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	var versionDoc map[string]any
	if err := json.Unmarshal(raw, &versionDoc); err != nil {
		return nil, err
	}

	tarballName := tarballFileName(manifest.Name, manifest.Version)
	sum := sha1.Sum(tarball)
	versionDoc["_id"] = fmt.Sprintf("%s@%s", manifest.Name, manifest.Version)
	versionDoc["dist"] = map[string]any{
		"shasum":  hex.EncodeToString(sum[:]),
		"tarball": fmt.Sprintf("%s/%s/-/%s", p.registryURL, manifest.Name, tarballName),
	}

	doc := map[string]any{
		"_id":         manifest.Name,
		"name":        manifest.Name,
		"description": manifest.Description,
		"dist-tags":   map[string]string{"latest": manifest.Version},
		"versions":    map[string]any{manifest.Version: versionDoc},
		"_attachments": map[string]any{
			tarballName: map[string]any{
				"content_type": "application/octet-stream",
				"data":         base64.StdEncoding.EncodeToString(tarball),
				"length":       len(tarball),
			},
		},
	}
	return json.Marshal(doc)
}

// tarballFileName follows the registry convention: the scope marker is
// dropped and the scope separator becomes part of the file name.
func tarballFileName(name, version string) string {
	flat := strings.ReplaceAll(strings.TrimPrefix(name, "@"), "/", "-")
	return fmt.Sprintf("%s-%s.tgz", flat, version)
}

// buildTarball packs dir into a gzipped tarball with every entry under the
// conventional package/ prefix.
func buildTarball(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr := &tar.Header{
			Name:    "package/" + filepath.ToSlash(rel),
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(tw, f)
		if closeErr := f.Close(); copyErr == nil {
			copyErr = closeErr
		}
		return copyErr
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
