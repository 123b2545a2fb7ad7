package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cacheInstallForce bool
	cachePurgeAll     bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the offline cache",
}

var cacheInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Fetch the app shell into the offline cache",
	Long: `Fetch every page and asset of the app shell into the offline cache and
remove caches left over from earlier versions.

Installation is skipped when the cache for the configured version is already
in place, unless --force is given. A failed fetch leaves the cache unchanged.`,
	Args: cobra.NoArgs,
	RunE: runCacheInstall,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache sizes",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [cache-name...]",
	Short: "Delete cached responses",
	Long: `Delete cached responses. With no arguments the dynamic cache is purged;
--all removes every cache of the current version, including the app shell.`,
	RunE: runCachePurge,
}

var cacheDownloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Save a file for offline use",
	Long: `Save a file from the portal for offline use. Relative paths are resolved
against the portal origin.

Examples:
  shiksha cache download /media/lectures/week1.mp4
  shiksha cache download http://localhost:3000/assets/notes/algebra.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheDownload,
}

var cacheDownloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List files saved for offline use",
	Args:  cobra.NoArgs,
	RunE:  runCacheDownloads,
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <filename>",
	Short: "Remove a saved file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheRemove,
}

func init() {
	cacheInstallCmd.Flags().BoolVar(&cacheInstallForce, "force", false, "Reinstall even when the cache is current")
	cachePurgeCmd.Flags().BoolVar(&cachePurgeAll, "all", false, "Purge every cache of the current version")

	cacheCmd.AddCommand(cacheInstallCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheDownloadCmd)
	cacheCmd.AddCommand(cacheDownloadsCmd)
	cacheCmd.AddCommand(cacheRemoveCmd)
}

func runCacheInstall(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache install")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !cacheInstallForce {
		installed, err := a.router.EnsureInstalled(ctx)
		if err != nil {
			return trackCLIError("cache install", err)
		}
		if !installed {
			_, _ = fmt.Fprintf(out, "Offline cache %s is already installed.\n", a.cfg.Cache.Version)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Installed offline cache %s.\n", a.cfg.Cache.Version)
		return nil
	}

	n, err := a.router.Install(ctx)
	if err != nil {
		return trackCLIError("cache install", err)
	}
	removed, err := a.router.Activate(ctx)
	if err != nil {
		return trackCLIError("cache install", err)
	}
	_, _ = fmt.Fprintf(out, "Installed offline cache %s (%d files).\n", a.cfg.Cache.Version, n)
	for _, name := range removed {
		_, _ = fmt.Fprintf(out, "  removed %s\n", mutedStyle.Render(name))
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache stats")
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	stats, err := a.router.Stats(cmd.Context())
	if err != nil {
		return trackCLIError("cache stats", err)
	}

	printHeader(out, "Offline cache %s", a.cfg.Cache.Version)
	if len(stats) == 0 {
		_, _ = fmt.Fprintln(out, "  (empty)")
		return nil
	}
	current := a.router.Names()
	for _, s := range stats {
		name := s.CacheName
		if !current.Contains(name) {
			name += mutedStyle.Render(" (old)")
		}
		_, _ = fmt.Fprintf(out, "  %-28s %6d entries  %10s\n", name, s.Entries, formatBytes(s.Bytes))
	}
	_, _ = fmt.Fprintf(out, "\n  Dynamic cache limit: %s\n", formatBytes(a.cfg.Cache.MaxBytes))
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache purge")
	if err != nil {
		return err
	}
	defer a.Close()

	names := args
	if cachePurgeAll {
		names = a.router.Names().All()
	}
	n, err := a.router.Purge(cmd.Context(), names...)
	if err != nil {
		return trackCLIError("cache purge", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cached responses.\n", n)
	return nil
}

func runCacheDownload(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache download")
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.router.Download(cmd.Context(), args[0])
	if err != nil {
		return trackCLIError("cache download", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s) for offline use.\n", d.Filename, formatBytes(d.Size))
	return nil
}

func runCacheDownloads(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache downloads")
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	downloads, err := a.router.Downloads(cmd.Context())
	if err != nil {
		return trackCLIError("cache downloads", err)
	}
	if len(downloads) == 0 {
		_, _ = fmt.Fprintln(out, "No saved files.")
		return nil
	}

	printHeader(out, "Saved files (%d)", len(downloads))
	for _, d := range downloads {
		_, _ = fmt.Fprintf(out, "  %-32s %10s  %s\n", d.Filename, formatBytes(d.Size), mutedStyle.Render(formatTimeSince(d.SavedAt)))
	}
	return nil
}

func runCacheRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp("cache remove")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.router.RemoveDownload(cmd.Context(), args[0]); err != nil {
		return trackCLIError("cache remove", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
	return nil
}
