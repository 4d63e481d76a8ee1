// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"upmwrap/internal/builder"
)

var buildCmd = &cobra.Command{
	Use:   "build [package]",
	Short: "Build Unity packages from their configured sources",
	Long: `Build Unity packages. With a package name, only that package is
built; without one, every configured package is built in order and the
first failure aborts the batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}

	logger := newLogger()
	b, err := builder.New(cfg, logger)
	if err != nil {
		return fail(cmd, err)
	}
	defer b.Close()

	if len(args) == 1 {
		dir, buildErr := b.BuildPackage(cmd.Context(), args[0])
		if buildErr != nil {
			return fail(cmd, buildErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Package built successfully: ")+ItemStyle.Render(dir))
		return nil
	}

	dirs, buildErr := b.BuildAll(cmd.Context())
	if buildErr != nil {
		return fail(cmd, buildErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Successfully built %d packages:", len(dirs))))
	for _, dir := range dirs {
		fmt.Fprintln(cmd.OutOrStdout(), "  - "+ItemStyle.Render(dir))
	}
	return nil
}
