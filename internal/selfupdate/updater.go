// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"
)

// maxBinaryBytes bounds the extracted binary size, so a crafted archive
// cannot act as a decompression bomb.
const maxBinaryBytes = 500 << 20

// ErrInvalidVersion indicates a version string that is not valid semver.
var ErrInvalidVersion = errors.New("invalid semantic version")

// Test seams for the running-binary lookup.
var (
	osExecutable  = os.Executable
	evalSymlinks  = filepath.EvalSymlinks
	readBuildInfo = debug.ReadBuildInfo
)

// InstallMethod identifies how the running binary was installed. Managed
// installs defer upgrades to their package manager.
type InstallMethod int

const (
	InstallUnknown InstallMethod = iota
	InstallHomebrew
	InstallGoInstall
)

func (m InstallMethod) String() string {
	switch m {
	case InstallHomebrew:
		return "homebrew"
	case InstallGoInstall:
		return "goinstall"
	default:
		return "unknown"
	}
}

// Managed reports whether upgrades should go through a package manager.
func (m InstallMethod) Managed() bool {
	return m == InstallHomebrew || m == InstallGoInstall
}

// UpgradeGuidance is the manual upgrade instruction for a managed install.
func (m InstallMethod) UpgradeGuidance() string {
	switch m {
	case InstallHomebrew:
		return "brew upgrade upmwrap"
	case InstallGoInstall:
		return "go install upmwrap@latest"
	default:
		return ""
	}
}

var homebrewPrefixes = []string{
	"/opt/homebrew/",
	"/usr/local/Cellar/",
	"/home/linuxbrew/.linuxbrew/",
}

// DetectInstallMethod classifies the install from the executable path and
// build metadata. A binary inside GOPATH/bin only counts as go-install when
// the build info confirms the module path, so a manually copied binary in
// that directory is not misclassified.
func DetectInstallMethod(execPath string) InstallMethod {
	for _, prefix := range homebrewPrefixes {
		if strings.Contains(execPath, prefix) {
			return InstallHomebrew
		}
	}
	if inGopathBin(execPath) && builtFromModule() {
		return InstallGoInstall
	}
	return InstallUnknown
}

func inGopathBin(execPath string) bool {
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		gopath = filepath.Join(home, "go")
	}
	bin := filepath.Clean(filepath.Join(gopath, "bin"))
	return strings.HasPrefix(filepath.Clean(execPath), bin+string(filepath.Separator))
}

func builtFromModule() bool {
	info, ok := readBuildInfo()
	return ok && info != nil && strings.Contains(info.Path, "upmwrap")
}

type (
	// UpgradeCheck is the outcome of comparing the running version against a
	// release.
	UpgradeCheck struct {
		CurrentVersion string
		LatestVersion  string
		// TargetRelease is nil when no applicable upgrade exists.
		TargetRelease *Release
		InstallMethod InstallMethod
		Message       string
	}

	// Updater drives the check-then-apply upgrade flow.
	Updater struct {
		client         *ReleaseClient
		currentVersion string
		logger         *log.Logger
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

// WithReleaseClient overrides the default release client.
func WithReleaseClient(c *ReleaseClient) UpdaterOption {
	return func(u *Updater) { u.client = c }
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) UpdaterOption {
	return func(u *Updater) { u.logger = logger }
}

// NewUpdater creates an Updater for the given running version.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{currentVersion: currentVersion}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewReleaseClient()
	}
	if u.logger == nil {
		u.logger = log.Default()
	}
	return u
}

// Check compares the running version against the latest release, or against
// targetVersion when given. Managed installs and non-release builds
// short-circuit without an API call; an explicit targetVersion still applies
// on a non-release build.
func (u *Updater) Check(ctx context.Context, targetVersion string) (*UpgradeCheck, error) {
	execPath, err := resolveExecPath()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}

	method := DetectInstallMethod(execPath)
	if method.Managed() {
		return &UpgradeCheck{
			CurrentVersion: u.currentVersion,
			InstallMethod:  method,
			Message:        fmt.Sprintf("Detected %s installation at %s; upgrade with: %s", method, execPath, method.UpgradeGuidance()),
		}, nil
	}

	// Development builds carry a version like "dev" that no release compares
	// against; without an explicit target there is nothing to do.
	current, currentErr := normalizeVersion(u.currentVersion)
	if currentErr != nil && targetVersion == "" {
		u.logger.Debug("current version is not a release version, skipping update check", "version", u.currentVersion)
		return &UpgradeCheck{
			CurrentVersion: u.currentVersion,
			InstallMethod:  method,
			Message:        fmt.Sprintf("Running a non-release build (%s); skipping update check.", u.currentVersion),
		}, nil
	}

	var release *Release
	if targetVersion != "" {
		tag, tagErr := normalizeVersion(targetVersion)
		if tagErr != nil {
			return nil, tagErr
		}
		release, err = u.client.ReleaseByTag(ctx, tag)
	} else {
		release, err = u.client.LatestRelease(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}

	target, err := normalizeVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("release version: %w", err)
	}

	if currentErr == nil && semver.Compare(current, target) >= 0 {
		msg := "Already up to date."
		if semver.Prerelease(current) != "" {
			msg = fmt.Sprintf("Running pre-release %s (ahead of %s).", u.currentVersion, release.TagName)
		}
		return &UpgradeCheck{
			CurrentVersion: u.currentVersion,
			LatestVersion:  release.TagName,
			InstallMethod:  method,
			Message:        msg,
		}, nil
	}

	return &UpgradeCheck{
		CurrentVersion: u.currentVersion,
		LatestVersion:  release.TagName,
		TargetRelease:  release,
		InstallMethod:  method,
		Message:        fmt.Sprintf("Upgrade available: %s -> %s", u.currentVersion, release.TagName),
	}, nil
}

// Apply downloads the release archive for the current platform, verifies it
// against checksums.txt, and atomically swaps the running binary. Temp files
// live next to the target so the final rename stays on one filesystem.
func (u *Updater) Apply(ctx context.Context, release *Release) error {
	if release == nil {
		return errors.New("release must not be nil")
	}

	execPath, err := resolveExecPath()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	// Windows locks the running binary, so in-place replacement only works
	// when an installer manages the swap.
	if runtime.GOOS == "windows" {
		return errors.New("automatic upgrade is not supported on Windows; download the new version from the releases page")
	}

	archiveName := archiveAssetName(release.TagName)
	archiveAsset, err := findAsset(release.Assets, archiveName)
	if err != nil {
		return err
	}
	checksumsAsset, err := findAsset(release.Assets, "checksums.txt")
	if err != nil {
		return err
	}

	// Fetch the small checksums file before the archive, so a missing entry
	// fails fast.
	sumsBody, err := u.client.DownloadAsset(ctx, checksumsAsset.DownloadURL)
	if err != nil {
		return fmt.Errorf("download checksums: %w", err)
	}
	sums, err := parseChecksums(sumsBody)
	sumsBody.Close()
	if err != nil {
		return fmt.Errorf("parse checksums: %w", err)
	}
	expected, ok := sums[archiveName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetChecksumMissing, archiveName)
	}

	targetDir := filepath.Dir(execPath)
	archivePath, err := u.downloadToTemp(ctx, archiveAsset.DownloadURL, targetDir)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer os.Remove(archivePath)

	if err := verifyFile(archivePath, expected); err != nil {
		return err
	}

	newBinary, err := extractBinary(archivePath, targetDir)
	if err != nil {
		return fmt.Errorf("extract binary: %w", err)
	}

	swapped := false
	defer func() {
		if !swapped {
			os.Remove(newBinary)
		}
	}()

	info, err := os.Stat(execPath)
	if err != nil {
		return fmt.Errorf("stat current binary: %w", err)
	}
	if err := os.Chmod(newBinary, info.Mode()); err != nil {
		return fmt.Errorf("set binary permissions: %w", err)
	}
	if err := os.Rename(newBinary, execPath); err != nil {
		return fmt.Errorf("replace binary: %w", err)
	}
	swapped = true
	return nil
}

// archiveAssetName is the release archive convention: the version loses its
// "v" prefix in file names.
func archiveAssetName(tag string) string {
	version := strings.TrimPrefix(tag, "v")
	return fmt.Sprintf("upmwrap_%s_%s_%s.tar.gz", version, runtime.GOOS, runtime.GOARCH)
}

func findAsset(assets []Asset, name string) (*Asset, error) {
	for i := range assets {
		if assets[i].Name == name {
			return &assets[i], nil
		}
	}
	return nil, fmt.Errorf("release has no asset %q", name)
}

func resolveExecPath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", err
	}
	return evalSymlinks(p)
}

// normalizeVersion adds the "v" prefix semver requires and validates the
// result.
func normalizeVersion(v string) (string, error) {
	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return norm, nil
}

func (u *Updater) downloadToTemp(ctx context.Context, assetURL, dir string) (_ string, err error) {
	body, err := u.client.DownloadAsset(ctx, assetURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "upmwrap-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return tmp.Name(), nil
}

// extractBinary pulls the upmwrap executable out of a tar.gz archive into a
// temp file in targetDir. Entries are matched by base name, so flat and
// nested archive layouts both work.
func extractBinary(archivePath, targetDir string) (_ string, err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	binaryName := "upmwrap"
	if runtime.GOOS == "windows" {
		binaryName = "upmwrap.exe"
	}

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return "", fmt.Errorf("read archive entry: %w", nextErr)
		}
		if filepath.Base(hdr.Name) != binaryName {
			continue
		}

		tmp, createErr := os.CreateTemp(targetDir, "upmwrap-upgrade-*")
		if createErr != nil {
			return "", fmt.Errorf("create temp binary: %w", createErr)
		}
		if _, err = io.Copy(tmp, io.LimitReader(tr, maxBinaryBytes)); err == nil {
			err = tmp.Close()
		} else {
			tmp.Close()
		}
		if err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("write binary: %w", err)
		}
		return tmp.Name(), nil
	}

	return "", fmt.Errorf("archive has no %q entry", binaryName)
}
