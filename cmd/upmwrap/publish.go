// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"upmwrap/internal/publish"
	"upmwrap/internal/upm"
)

var (
	publishRegistry string
	publishToken    string
	publishOwner    string
)

var publishCmd = &cobra.Command{
	Use:   "publish [package]",
	Short: "Publish built packages to a registry",
	Long: `Publish built packages. With a package name, only that package is
published; without one, every built package in the output directory is
published and individual failures do not stop the rest.

Supported registries: github (GitHub Packages, via the npm CLI), npmjs
(direct registry upload), openupm (manual submission only).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishRegistry, "registry", "github", "target registry (github, npmjs, openupm)")
	publishCmd.Flags().StringVar(&publishToken, "token", "", "registry authentication token")
	publishCmd.Flags().StringVar(&publishOwner, "owner", "", "owner/organization for scoped package names")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}

	opts := publish.Options{
		Token:  publishToken,
		Owner:  publishOwner,
		Logger: newLogger(),
	}
	// Settings fill the gaps the flags leave open.
	if opts.Token == "" {
		opts.Token = cfg.Settings.GitHub.Token
	}
	if opts.Owner == "" {
		opts.Owner = cfg.Settings.GitHub.Owner
	}
	if publish.Registry(publishRegistry) == publish.RegistryGitHub && cfg.Settings.GitHub.RegistryURL != "" {
		opts.RegistryURL = cfg.Settings.GitHub.RegistryURL
	}

	publisher, err := publish.New(publish.Registry(publishRegistry), opts)
	if err != nil {
		return fail(cmd, err)
	}

	if len(args) == 1 {
		name := args[0]
		dir := filepath.Join(cfg.OutputDir(), name)
		if _, statErr := os.Stat(filepath.Join(dir, upm.ManifestFileName)); statErr != nil {
			return fail(cmd, fmt.Errorf("package not built: %s (run 'upmwrap build %s' first)", name, name))
		}
		if pubErr := publisher.Publish(cmd.Context(), dir); pubErr != nil {
			return fail(cmd, pubErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Package published successfully: ")+ItemStyle.Render(name))
		return nil
	}

	entries, err := os.ReadDir(cfg.OutputDir())
	if err != nil {
		return fail(cmd, fmt.Errorf("read output directory: %w", err))
	}

	published := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(cfg.OutputDir(), entry.Name())
		if _, statErr := os.Stat(filepath.Join(dir, upm.ManifestFileName)); statErr != nil {
			continue
		}

		if pubErr := publisher.Publish(cmd.Context(), dir); pubErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Failed to publish "+entry.Name()+": ")+formatErrorForDisplay(pubErr))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Published: ")+ItemStyle.Render(entry.Name()))
		published++
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Successfully published %d packages", published)))
	return nil
}
