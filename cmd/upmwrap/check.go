// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"upmwrap/internal/builder"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which packages need updates",
	Long: `Check which packages would change on the next build: git packages
whose configured ref differs from the local clone (or that were never
fetched), and every NuGet package.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}

	b, err := builder.New(cfg, newLogger())
	if err != nil {
		return fail(cmd, err)
	}
	defer b.Close()

	stale := b.CheckForUpdates()
	if len(stale) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("All packages are up to date"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render(fmt.Sprintf("Packages needing updates (%d):", len(stale))))
	for _, name := range stale {
		fmt.Fprintln(cmd.OutOrStdout(), "  - "+ItemStyle.Render(name))
	}
	return nil
}
