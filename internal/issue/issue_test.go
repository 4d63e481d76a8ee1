// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewErrorContext().
		WithOperation("download registry package").
		WithResource("Newtonsoft.Json v13.0.3").
		Wrap(cause).
		BuildError()

	want := "failed to download registry package: Newtonsoft.Json v13.0.3: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
}

func TestFormatSuggestions(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("publish package").
		WithSuggestion("Check that the token is set").
		WithSuggestion("Run 'upmwrap build' first").
		Build()

	out := ae.Format(false)
	if !strings.Contains(out, "• Check that the token is set") {
		t.Errorf("suggestions missing from output:\n%s", out)
	}
	if strings.Contains(out, "Error chain") {
		t.Error("non-verbose output should not include the error chain")
	}
}

func TestFormatVerboseChain(t *testing.T) {
	t.Parallel()

	inner := errors.New("no such host")
	mid := fmt.Errorf("lookup registry: %w", inner)
	ae := NewErrorContext().
		WithOperation("upload package").
		Wrap(mid).
		Build()

	out := ae.Format(true)
	if !strings.Contains(out, "Error chain:") {
		t.Fatalf("verbose output should include the chain:\n%s", out)
	}
	if !strings.Contains(out, "1. lookup registry: no such host") || !strings.Contains(out, "2. no such host") {
		t.Errorf("chain should be numbered outermost-first:\n%s", out)
	}
}

func TestBuildRequiresOperation(t *testing.T) {
	t.Parallel()

	if ae := NewErrorContext().WithResource("x").Build(); ae != nil {
		t.Error("Build without an operation should return nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Error("BuildError without an operation should return a nil error")
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if got := WrapWithOperation(nil, "anything"); got != nil {
		t.Error("wrapping nil should return nil")
	}
	got := WrapWithOperation(errors.New("boom"), "load settings")
	if got.Error() != "failed to load settings: boom" {
		t.Errorf("Error() = %q", got.Error())
	}
}
