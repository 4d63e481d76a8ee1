// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const latestReleaseJSON = `{
  "tag_name": "v1.2.0",
  "name": "v1.2.0",
  "html_url": "https://github.com/upmwrap/upmwrap/releases/tag/v1.2.0",
  "assets": [
    {"name": "upmwrap_1.2.0_linux_amd64.tar.gz", "browser_download_url": "https://example.test/a.tar.gz", "size": 42},
    {"name": "checksums.txt", "browser_download_url": "https://example.test/checksums.txt", "size": 7}
  ]
}`

func TestLatestRelease(t *testing.T) {
	t.Parallel()

	var gotPath, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		io.WriteString(w, latestReleaseJSON)
	}))
	defer srv.Close()

	c := NewReleaseClient(WithBaseURL(srv.URL))
	release, err := c.LatestRelease(t.Context())
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}

	if gotPath != "/repos/upmwrap/upmwrap/releases/latest" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("accept = %s", gotAccept)
	}
	if release.TagName != "v1.2.0" || len(release.Assets) != 2 {
		t.Errorf("release = %+v", release)
	}
	if release.Assets[0].DownloadURL != "https://example.test/a.tar.gz" {
		t.Errorf("asset URL = %q", release.Assets[0].DownloadURL)
	}
}

func TestReleaseByTagNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewReleaseClient(WithBaseURL(srv.URL))
	_, err := c.ReleaseByTag(t.Context(), "v9.9.9")
	if !errors.Is(err, ErrReleaseNotFound) {
		t.Errorf("err = %v, want ErrReleaseNotFound", err)
	}
}

func TestRateLimitSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewReleaseClient(WithBaseURL(srv.URL))
	_, err := c.LatestRelease(t.Context())
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if rlErr.ResetAt.IsZero() {
		t.Error("reset time should be parsed from the header")
	}
}

func TestTokenStaysOnTrustedHosts(t *testing.T) {
	t.Parallel()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, latestReleaseJSON)
	}))
	defer api.Close()

	var cdnAuth string
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cdnAuth = r.Header.Get("Authorization")
		io.WriteString(w, "payload")
	}))
	defer cdn.Close()

	c := NewReleaseClient(WithBaseURL(api.URL), WithToken("secret"))
	if _, err := c.LatestRelease(t.Context()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("API request auth = %q", gotAuth)
	}

	// The CDN server runs on a different host:port, so the token must not
	// travel with the download.
	body, err := c.DownloadAsset(t.Context(), cdn.URL+"/asset.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	body.Close()
	if cdnAuth != "" {
		t.Errorf("download to untrusted host leaked auth header: %q", cdnAuth)
	}
}
