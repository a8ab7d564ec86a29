package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/utils"
	"github.com/spf13/cobra"
)

type removalFlags struct {
	days   int
	dryRun bool
	force  bool
	limit  int
}

func (f *removalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.days, "days-watched", -1, "Minimum days since the requester watched (default from configuration)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show what would be removed without deleting")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Skip the confirmation prompt")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Remove at most this many items (0 for no limit)")
}

func (f *removalFlags) minDays(a *app) int {
	if f.days < 0 {
		return a.cfg.DaysWatched
	}
	return f.days
}

func limitCandidates(candidates []models.RemovalCandidate, limit int) []models.RemovalCandidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

func candidateTarget(c models.RemovalCandidate) string {
	switch c.Granularity {
	case models.GranularitySeason:
		if c.Season != nil {
			return fmt.Sprintf("Season %d", *c.Season)
		}
	case models.GranularityEpisode:
		keys := make([]string, 0, len(c.Episodes))
		for _, k := range c.Episodes {
			keys = append(keys, k.Display())
		}
		return strings.Join(keys, ", ")
	}
	return string(c.Granularity)
}

func candidateRows(candidates []models.RemovalCandidate) [][]string {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []string{
			c.Title,
			formatYear(c.Year),
			dash(c.Requester),
			candidateTarget(c),
			utils.FormatSize(c.Size),
			strconv.Itoa(c.DaysSinceWatched),
		})
	}
	return rows
}

func renderCandidates(candidates []models.RemovalCandidate) string {
	headers := []string{"Title", "Year", "Requester", "Target", "Size", "Days"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight}
	return renderTable(headers, candidateRows(candidates), aligns)
}

func renderResults(results []models.DeletionResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Candidate.Title,
			candidateTarget(r.Candidate),
			string(r.Outcome),
			utils.FormatSize(r.FreedBytes),
			dash(r.Error),
		})
	}
	headers := []string{"Title", "Target", "Outcome", "Freed", "Error"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func totalSize(candidates []models.RemovalCandidate) int64 {
	var total int64
	for _, c := range candidates {
		total += c.Size
	}
	return total
}

// runRemoval shows the candidates, asks for confirmation and executes them
func runRemoval(ctx context.Context, cmd *cobra.Command, a *app, candidates []models.RemovalCandidate, flags removalFlags) error {
	out := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(out, "Nothing eligible for removal")
		return nil
	}

	fmt.Fprintln(out, renderCandidates(candidates))
	fmt.Fprintf(out, "%d candidates, %s\n", len(candidates), utils.FormatSize(totalSize(candidates)))

	if !flags.dryRun && !flags.force && !confirm(cmd, fmt.Sprintf("Delete %d items?", len(candidates))) {
		fmt.Fprintln(out, "Aborted")
		return nil
	}

	results := a.cleanup.Execute(ctx, candidates, controllers.ExecuteOptions{
		DryRun:             flags.dryRun,
		DeleteFiles:        a.cfg.DeleteFiles,
		AddImportExclusion: a.cfg.AddImportExclusion,
	})
	fmt.Fprintln(out, renderResults(results))

	summary := controllers.Summarize(results)
	if summary.DryRun > 0 {
		fmt.Fprintf(out, "Dry run: %d items would be removed\n", summary.DryRun)
	} else {
		fmt.Fprintf(out, "Deleted %d, failed %d, protected %d, freed %s\n",
			summary.Deleted, summary.Failed, summary.Protected, utils.FormatSize(summary.FreedBytes))
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d removals failed", summary.Failed)
	}
	return nil
}
