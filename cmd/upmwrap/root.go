// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for upmwrap.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"upmwrap/internal/config"
	"upmwrap/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging and full error chains.
	verbose bool
	// configDir is the directory holding packages.yaml and settings.yaml.
	configDir string
	// outputDir overrides the configured package output directory.
	outputDir string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "upmwrap",
		Short: "Wrap OSS libraries as Unity packages",
		Long: TitleStyle.Render("upmwrap") + SubtitleStyle.Render(" - Wrap OSS libraries as Unity packages") + `

upmwrap turns git repositories and NuGet packages into Unity Package
Manager packages: it fetches sources, arranges them into the Runtime/
Plugins layout, generates package.json, .asmdef, and .meta files, and
publishes the result to npm-compatible registries.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Add a package with: upmwrap add --name com.example.lib --url <repo>
  2. Build it with: upmwrap build
  3. Publish with: upmwrap publish --registry github

` + SubtitleStyle.Render("Examples:") + `
  upmwrap build                  Build every configured package
  upmwrap build com.example.lib  Build one package
  upmwrap check                  Show packages whose refs drifted
  upmwrap watch                  Rebuild on configuration changes`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "config", "configuration directory path")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for built packages")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(selfupdateCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// newLogger builds the logger shared by all commands, honoring --verbose.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig loads the configuration directory and applies the --output
// override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		abs, absErr := filepath.Abs(outputDir)
		if absErr != nil {
			return nil, fmt.Errorf("resolve output directory: %w", absErr)
		}
		cfg.Settings.OutputDir = abs
	}
	return cfg, nil
}

// formatErrorForDisplay renders err for terminal output. Actionable errors
// get their suggestion list; --verbose adds the full error chain.
func formatErrorForDisplay(err error) string {
	var actionable *issue.ActionableError
	if errors.As(err, &actionable) {
		return actionable.Format(verbose)
	}
	return err.Error()
}

// fail prints err in its display form and returns a silent non-zero exit, so
// the formatted message is not printed a second time by the framework.
func fail(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(err))
	return &ExitError{Code: 1, Err: err}
}
