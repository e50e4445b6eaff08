package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/watchengine/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List watch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		limit, _ := cmd.Flags().GetInt("limit")
		seriesID, _ := cmd.Flags().GetString("series")

		opts := history.ListOptions{SeriesID: seriesID}
		if filter == "" {
			// the fuzzy filter needs every record to rank
			opts.Limit = limit
		}
		records, err := eng.Load().history.List(cmd.Context(), opts)
		if err != nil {
			return err
		}
		records = history.Filter(records, filter)
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		if len(records) == 0 {
			fmt.Println("No history yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERIES\tEP\tPROGRESS\tLANG\tPROVIDER\tWATCHED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s / %s (%.0f%%)\t%s\t%s\t%s\n",
				r.SeriesTitle,
				r.EpisodeNumber,
				formatSeconds(float64(r.ProgressSeconds)),
				formatSeconds(float64(r.DurationSeconds)),
				r.Percent(),
				r.Language,
				r.Provider,
				humanize.Time(r.LastWatchedAt),
			)
		}
		return w.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <series-id>",
	Short: "Delete the history of a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Load().history.DeleteBySeries(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared history of %s\n", args[0])
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history records not watched recently",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		removed, err := eng.Load().history.Cleanup(cmd.Context(), time.Duration(days)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		fmt.Printf("Removed %s records\n", humanize.Comma(removed))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("filter", "f", "", "fuzzy filter on series title")
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of records (0 for all)")
	historyCmd.Flags().String("series", "", "only show one series")
	historyPruneCmd.Flags().Int("days", 90, "remove records older than this many days")

	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

// formatSeconds renders seconds as m:ss or h:mm:ss
func formatSeconds(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	hours, minutes, secs := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
