package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/amaumene/prunarr/internal/cache"
	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache of library and history data",
	}
	cmd.AddCommand(newCacheInitCommand(ctx))
	cmd.AddCommand(newCacheStatusCommand(ctx))
	cmd.AddCommand(newCacheClearCommand(ctx))
	cmd.AddCommand(newCachePruneCommand(ctx))
	return cmd
}

func renderPrefetch(report controllers.PrefetchReport) string {
	rows := make([][]string, 0, len(report.Phases))
	for _, p := range report.Phases {
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(p.Tasks),
			strconv.Itoa(p.Failed),
			p.Duration.Round(time.Millisecond).String(),
		})
	}
	headers := []string{"Phase", "Tasks", "Failed", "Duration"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns)
}

func newCacheInitCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Warm the cache with libraries, tags and history metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if !a.cfg.CacheEnabled || ctx.flags.noCache {
				return fmt.Errorf("cache is disabled")
			}
			if _, err := a.store(); err != nil {
				return err
			}

			report := a.prefetch.Warm(cmd.Context(), controllers.PrefetchOptions{Full: full})
			fmt.Fprintln(cmd.OutOrStdout(), renderPrefetch(report))
			if failed := report.Failed(); failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d lookups failed, they will be fetched on demand\n", failed)
			}
			return cmd.Context().Err()
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Also fetch episodes and files of watched series")
	return cmd
}

type categoryView struct {
	Category string `json:"category"`
	Entries  int    `json:"entries"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	TTL      string `json:"ttl"`
}

type cacheStatusView struct {
	Backend    string         `json:"backend"`
	Path       string         `json:"path,omitempty"`
	Categories []categoryView `json:"categories"`
}

func hitRate(hits, misses uint64) string {
	if hits+misses == 0 {
		return "-"
	}
	return formatPercent(float64(hits) * 100 / float64(hits+misses))
}

func renderCacheStats(stats cache.Stats) string {
	rows := make([][]string, 0, len(stats.Categories)+1)
	for _, c := range stats.Categories {
		rows = append(rows, []string{
			string(c.Category),
			humanize.Comma(int64(c.Entries)),
			hitRate(c.Hits, c.Misses),
			c.TTL.String(),
		})
	}
	entries, hits, misses := stats.Totals()
	rows = append(rows, []string{"total", humanize.Comma(int64(entries)), hitRate(hits, misses), ""})

	headers := []string{"Category", "Entries", "Hit rate", "TTL"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns)
}

func newCacheStatusCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache entries per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			stats := a.cache.Stats()

			if output == outputJSON {
				view := cacheStatusView{Backend: stats.Backend, Path: stats.Path}
				for _, c := range stats.Categories {
					view.Categories = append(view.Categories, categoryView{
						Category: string(c.Category),
						Entries:  c.Entries,
						Hits:     c.Hits,
						Misses:   c.Misses,
						TTL:      c.TTL.String(),
					})
				}
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", stats.Backend)
			if stats.Path != "" {
				fmt.Fprintf(out, "Path: %s\n", stats.Path)
			}
			fmt.Fprintln(out, renderCacheStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table or json)")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [category]",
		Short: "Clear one cache category or the whole cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := cache.Categories
			if len(args) == 1 {
				category, err := cache.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []cache.Category{category}
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			for _, category := range categories {
				if err := store.Clear(category); err != nil {
					return fmt.Errorf("failed to clear %s: %w", category, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d categories\n", len(categories))
			return nil
		},
	}
}

// pruner is implemented by layers that keep expired entries until pruned
type pruner interface {
	Prune() (int, error)
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired entries from the persistent cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			p, ok := store.(pruner)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "The %s cache expires entries on its own\n", store.Stats().Backend)
				return nil
			}
			removed, err := p.Prune()
			if err != nil {
				return fmt.Errorf("failed to prune cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", removed)
			return nil
		},
	}
}
