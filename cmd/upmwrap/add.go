// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"upmwrap/internal/config"
)

var (
	addName        string
	addURL         string
	addRef         string
	addExtractPath string
	addNamespace   string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a git package configuration",
	Args:  cobra.NoArgs,
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "package name (e.g. com.example.lib)")
	addCmd.Flags().StringVar(&addURL, "url", "", "git repository URL")
	addCmd.Flags().StringVar(&addRef, "ref", "main", "git ref (branch, tag, or commit)")
	addCmd.Flags().StringVar(&addExtractPath, "extract-path", ".", "path inside the repository to package")
	addCmd.Flags().StringVar(&addNamespace, "namespace", "", "C# namespace (enables asmdef generation)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("url")
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}

	pkg := config.GitPackage{
		Name: addName,
		Source: config.SourceSpec{
			Type: "git",
			URL:  addURL,
			Ref:  addRef,
		},
		ExtractPath: addExtractPath,
		Namespace:   addNamespace,
	}

	if err := cfg.AddGitPackage(pkg); err != nil {
		return fail(cmd, err)
	}
	if err := cfg.Save(); err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Package %q added successfully", addName)))
	return nil
}
