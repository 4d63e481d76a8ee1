// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"list-packages"},
	Short:   "List all configured packages",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}

	names := cfg.AllPackageNames()
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("No packages configured"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), TitleStyle.Render(fmt.Sprintf("Configured packages (%d):", len(names))))
	for _, name := range names {
		switch {
		case cfg.GitPackage(name) != nil:
			pkg := cfg.GitPackage(name)
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s@%s)\n",
				ItemStyle.Render(name), pkg.Source.URL, pkg.Source.Ref)
		case cfg.NuGetPackage(name) != nil:
			pkg := cfg.NuGetPackage(name)
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s (nuget:%s@%s)\n",
				ItemStyle.Render(name), pkg.NuGetID, pkg.Version)
		}
	}
	return nil
}
