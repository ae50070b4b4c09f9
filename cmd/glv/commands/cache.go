package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the report cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show report cache size and location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := cache.Open(conf.CacheDir, conf.CacheSize)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		stats := rc.Stats()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Path: %s\n", rc.Path())
		fmt.Fprintf(out, "Entries: %d of %d\n", stats.Length, conf.CacheSize)
		fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(stats.CurrentBytes)))
		if info, err := os.Stat(rc.Path()); err == nil {
			fmt.Fprintf(out, "On disk: %s, updated %s\n", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := cache.Open(conf.CacheDir, conf.CacheSize)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		n := rc.Stats().Length
		rc.Clear()
		if err := rc.Flush(); err != nil {
			return fmt.Errorf("saving cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached reports\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
