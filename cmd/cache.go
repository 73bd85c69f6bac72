package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/houhuawei23/ai-anki-cards/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the generation result cache",
}

// openCacheAdmin opens the configured backend, ignoring cache.enabled.
func openCacheAdmin(cmd *cobra.Command) (cache.Admin, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	opts := cfg.Cache.Options()
	opts.Backend = cfg.Cache.Backend

	st, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.Open(cmd.Context(), opts, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if cl, ok := c.(io.Closer); ok {
			cl.Close()
		}
		st.Close()
	}
	admin, ok := c.(cache.Admin)
	if !ok {
		cleanup()
		return nil, nil, fmt.Errorf("cache backend %q cannot be inspected", opts.Backend)
	}
	return admin, cleanup, nil
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and age",
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, cleanup, err := openCacheAdmin(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		s, err := admin.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend:  %s\n", s.Backend)
		fmt.Fprintf(out, "Entries:  %d\n", s.Entries)
		if s.Bytes > 0 {
			fmt.Fprintf(out, "Size:     %s\n", formatBytes(s.Bytes))
		}
		if !s.Oldest.IsZero() {
			fmt.Fprintf(out, "Oldest:   %s\n", s.Oldest.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Newest:   %s\n", s.Newest.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, cleanup, err := openCacheAdmin(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := admin.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results.\n", n)
		return nil
	},
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
