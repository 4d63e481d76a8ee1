// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"upmwrap/internal/issue"
)

// withConfigDir points the global --config flag at a scratch directory for
// the duration of one test.
func withConfigDir(t *testing.T, dir string) {
	t.Helper()

	orig := configDir
	configDir = dir
	t.Cleanup(func() { configDir = orig })
}

// captureCmd returns a throwaway command with buffered output streams.
func captureCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("dev version string = %q", got)
	}

	Version, Commit, BuildDate = "1.2.0", "abc1234", "2026-08-30"
	got := getVersionString()
	for _, want := range []string{"1.2.0", "abc1234", "2026-08-30"} {
		if !strings.Contains(got, want) {
			t.Errorf("version string %q missing %q", got, want)
		}
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	plain := errors.New("something broke")
	if got := formatErrorForDisplay(plain); got != "something broke" {
		t.Errorf("plain error = %q", got)
	}

	actionable := issue.NewErrorContext().
		WithOperation("build package").
		WithResource("com.example.lib").
		WithSuggestion("Run 'upmwrap list' to see configured packages").
		BuildError()
	got := formatErrorForDisplay(actionable)
	if !strings.Contains(got, "upmwrap list") {
		t.Errorf("actionable error should include its suggestions: %q", got)
	}
}

func TestFailSilencesAndReturnsExitError(t *testing.T) {
	cmd, _, stderr := captureCmd()

	err := fail(cmd, errors.New("boom"))
	if !cmd.SilenceErrors || !cmd.SilenceUsage {
		t.Error("fail should silence the framework's own error output")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("fail should return an ExitError with code 1, got %v", err)
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Errorf("stderr = %q, want the error message", stderr.String())
	}
}

func TestAddListRemoveFlow(t *testing.T) {
	withConfigDir(t, t.TempDir())

	origName, origURL, origRef, origExtract, origNS := addName, addURL, addRef, addExtractPath, addNamespace
	t.Cleanup(func() {
		addName, addURL, addRef, addExtractPath, addNamespace = origName, origURL, origRef, origExtract, origNS
	})
	addName = "com.example.lib"
	addURL = "https://github.com/example/lib.git"
	addRef = "v1.0.0"
	addExtractPath = "src"
	addNamespace = "Example.Lib"

	cmd, stdout, _ := captureCmd()
	if err := runAdd(cmd, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(stdout.String(), "com.example.lib") {
		t.Errorf("add output = %q", stdout.String())
	}

	cmd, stdout, _ = captureCmd()
	if err := runList(cmd, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "com.example.lib") || !strings.Contains(out, "v1.0.0") {
		t.Errorf("list output = %q", out)
	}

	cmd, stdout, _ = captureCmd()
	if err := runRemove(cmd, []string{"com.example.lib"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	cmd, stdout, _ = captureCmd()
	if err := runList(cmd, nil); err != nil {
		t.Fatalf("list after remove: %v", err)
	}
	if strings.Contains(stdout.String(), "com.example.lib") {
		t.Errorf("removed package still listed: %q", stdout.String())
	}
}

func TestRemoveUnknownPackageFails(t *testing.T) {
	withConfigDir(t, t.TempDir())

	cmd, _, stderr := captureCmd()
	err := runRemove(cmd, []string{"com.example.missing"})
	if err == nil {
		t.Fatal("removing an unknown package should fail")
	}
	if !strings.Contains(stderr.String(), "com.example.missing") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
