// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"upmwrap/internal/builder"
	"upmwrap/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the configuration and rebuild changed packages",
	Long: `Watch the configuration directory for YAML changes. When a change
settles, packages whose sources drifted are rebuilt. Individual rebuild
failures are logged and do not stop the watch loop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a rebuild fires")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	watcher, err := watch.New(watch.Config{
		BaseDir:  configDir,
		Debounce: watchDebounce,
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			return rebuildStale(ctx, cmd)
		},
	})
	if err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Watching "+ItemStyle.Render(configDir)+" for configuration changes")
	fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("Press Ctrl+C to stop"))

	if err := watcher.Run(cmd.Context()); err != nil {
		return fail(cmd, err)
	}
	return nil
}

// rebuildStale reloads the configuration and rebuilds every package the
// update check flags. One package failing does not stop the others; the
// watch loop must survive a bad config edit.
func rebuildStale(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger()
	b, err := builder.New(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	stale := b.CheckForUpdates()
	if len(stale) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("No packages need rebuilding"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), fmt.Sprintf("Rebuilding %d packages...", len(stale)))
	for _, name := range stale {
		dir, buildErr := b.BuildPackage(ctx, name)
		if buildErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Failed to rebuild "+name+": ")+formatErrorForDisplay(buildErr))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Rebuilt: ")+ItemStyle.Render(dir))
	}
	return nil
}
