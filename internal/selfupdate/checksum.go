// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch indicates the downloaded artifact does not match
	// its published hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAssetChecksumMissing indicates checksums.txt has no entry for the
	// requested artifact.
	ErrAssetChecksumMissing = errors.New("no checksum entry for asset")
)

// parseChecksums reads a sha256sum-format checksums file and returns a map of
// artifact name to lowercase hex hash. Lines that do not match the
// "{hash}  {filename}" shape are skipped.
func parseChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hash, name, ok := strings.Cut(line, "  ")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || !isHexHash(hash) {
			continue
		}
		sums[name] = strings.ToLower(hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}
	if len(sums) == 0 {
		return nil, errors.New("no valid checksum entries found")
	}
	return sums, nil
}

// verifyFile streams the file at path through SHA-256 and compares the digest
// with expected (case-insensitive).
func verifyFile(path, expected string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, expected) {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, path, strings.ToLower(expected), got)
	}
	return nil
}

func isHexHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
