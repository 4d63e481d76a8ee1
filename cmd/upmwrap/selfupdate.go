// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"upmwrap/internal/selfupdate"
)

var (
	selfupdateCheckOnly bool
	selfupdateVersion   string
)

var selfupdateCmd = &cobra.Command{
	Use:   "selfupdate",
	Short: "Upgrade upmwrap to the latest release",
	Long: `Upgrade the running upmwrap binary to the latest GitHub release (or a
specific version with --version). The release archive is verified against
its published checksum before the binary is replaced.

Installations managed by Homebrew or go install are not touched; the
command prints the matching package manager invocation instead.`,
	Args: cobra.NoArgs,
	RunE: runSelfupdate,
}

func init() {
	selfupdateCmd.Flags().BoolVar(&selfupdateCheckOnly, "check", false, "only check for a new version, do not install")
	selfupdateCmd.Flags().StringVar(&selfupdateVersion, "version", "", "upgrade to a specific version instead of the latest")
}

func runSelfupdate(cmd *cobra.Command, args []string) error {
	var clientOpts []selfupdate.ReleaseClientOption
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		clientOpts = append(clientOpts, selfupdate.WithToken(token))
	}

	logger := newLogger()
	updater := selfupdate.NewUpdater(Version,
		selfupdate.WithReleaseClient(selfupdate.NewReleaseClient(clientOpts...)),
		selfupdate.WithLogger(logger))

	check, err := updater.Check(cmd.Context(), selfupdateVersion)
	if err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), check.Message)
	if check.TargetRelease == nil || selfupdateCheckOnly {
		return nil
	}

	logger.Info("downloading release", "version", check.LatestVersion)
	if err := updater.Apply(cmd.Context(), check.TargetRelease); err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Upgraded to %s", check.LatestVersion)))
	return nil
}
