// SPDX-License-Identifier: MPL-2.0

// Package selfupdate upgrades the running upmwrap binary in place from
// GitHub release artifacts. Installs managed by a package manager (Homebrew,
// go install) are detected and deferred to that manager instead.
package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes bounds API response bodies so a misbehaving server cannot
// exhaust memory.
const maxResponseBytes = 10 << 20

// ErrReleaseNotFound is returned when the requested release tag does not
// exist on the repository.
var ErrReleaseNotFound = errors.New("release not found")

type (
	// Release is one GitHub release and its downloadable artifacts.
	Release struct {
		TagName string  `json:"tag_name"`
		Name    string  `json:"name"`
		Assets  []Asset `json:"assets"`
		HTMLURL string  `json:"html_url"`
	}

	// Asset is a single downloadable file attached to a release.
	Asset struct {
		Name        string `json:"name"`
		DownloadURL string `json:"browser_download_url"`
		Size        int64  `json:"size"`
	}

	// RateLimitError reports an exhausted GitHub API quota.
	RateLimitError struct {
		ResetAt time.Time
	}

	// ReleaseClient queries the GitHub Releases API for one repository.
	ReleaseClient struct {
		httpClient *http.Client
		baseURL    string
		owner      string
		repo       string
		token      string
	}

	// ReleaseClientOption configures a ReleaseClient during construction.
	ReleaseClientOption func(*ReleaseClient)
)

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded, resets at %s", e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client, useful for tests.
func WithHTTPClient(c *http.Client) ReleaseClientOption {
	return func(r *ReleaseClient) { r.httpClient = c }
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ReleaseClientOption {
	return func(r *ReleaseClient) { r.baseURL = strings.TrimRight(base, "/") }
}

// WithToken authenticates API requests, raising the rate limit.
func WithToken(token string) ReleaseClientOption {
	return func(r *ReleaseClient) { r.token = token }
}

// NewReleaseClient creates a client against the upmwrap release repository.
func NewReleaseClient(opts ...ReleaseClientOption) *ReleaseClient {
	c := &ReleaseClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.github.com",
		owner:      "upmwrap",
		repo:       "upmwrap",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the latest stable release. GitHub's latest endpoint
// already excludes drafts and prereleases.
func (c *ReleaseClient) LatestRelease(ctx context.Context) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)
	return c.fetchRelease(ctx, endpoint)
}

// ReleaseByTag fetches one release by its git tag, e.g. "v1.2.0". Returns
// ErrReleaseNotFound when the tag has no release.
func (c *ReleaseClient) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.baseURL, c.owner, c.repo, tag)
	return c.fetchRelease(ctx, endpoint)
}

func (c *ReleaseClient) fetchRelease(ctx context.Context, endpoint string) (_ *Release, err error) {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if rlErr := checkRateLimit(resp); rlErr != nil {
		return nil, rlErr
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrReleaseNotFound
	default:
		return nil, fmt.Errorf("query release: unexpected status %s", resp.Status)
	}

	var release Release
	if decErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&release); decErr != nil {
		return nil, fmt.Errorf("decode release: %w", decErr)
	}
	return &release, nil
}

// DownloadAsset streams the artifact at assetURL. The caller closes the
// returned reader.
func (c *ReleaseClient) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, assetURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: unexpected status %s", redactURL(assetURL), resp.Status)
	}
	return resp.Body, nil
}

func (c *ReleaseClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	// The token stays on known GitHub hosts so a download that redirects to a
	// third-party CDN cannot observe it.
	if c.token != "" && isTrustedHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// checkRateLimit turns an exhausted X-RateLimit-Remaining header into a
// RateLimitError. Absent or malformed headers are ignored.
func checkRateLimit(resp *http.Response) error {
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || remaining > 0 {
		return nil
	}
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	return &RateLimitError{ResetAt: time.Unix(resetUnix, 0)}
}

func isTrustedHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	// Asset downloads live on github.com when the API base is the default.
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}

// redactURL strips query and fragment before a URL lands in an error message.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
