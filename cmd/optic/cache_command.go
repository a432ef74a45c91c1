package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the media cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show media cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			count, bytes, byExt, err := cacheUsage(cfg.Paths.MediaDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory: %s\n", cfg.Paths.MediaDir)
			fmt.Fprintf(out, "Entries:   %d\n", count)
			fmt.Fprintf(out, "Size:      %s\n", formatBytes(bytes))
			if len(byExt) > 0 {
				fmt.Fprintln(out, renderCountTable("Extension", sortedKeys(byExt), byExt))
			}
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			count, bytes, _, err := cacheUsage(cfg.Paths.MediaDir)
			if err != nil {
				return err
			}
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Media cache is already empty")
				return nil
			}
			if !forceFlag {
				return fmt.Errorf("refusing to delete %d cached file(s) (%s) without --force",
					count, formatBytes(bytes))
			}

			removed := 0
			entries, err := os.ReadDir(cfg.Paths.MediaDir)
			if err != nil {
				return fmt.Errorf("read media dir: %w", err)
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				if err := os.Remove(filepath.Join(cfg.Paths.MediaDir, entry.Name())); err != nil {
					return fmt.Errorf("remove %s: %w", entry.Name(), err)
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached file(s), freed %s\n", removed, formatBytes(bytes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceFlag, "force", false, "Actually delete files")
	return cmd
}

func cacheUsage(dir string) (count int, bytes int64, byExt map[string]int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil, nil
		}
		return 0, 0, nil, fmt.Errorf("read media dir: %w", err)
	}
	byExt = make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// A file removed mid-scan is not worth failing the whole report.
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == "" {
			ext = "(none)"
		}
		byExt[ext]++
		count++
		bytes += info.Size()
	}
	return count, bytes, byExt, nil
}
