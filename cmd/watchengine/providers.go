package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/watchengine/internal/playback"
	"github.com/justchokingaround/watchengine/internal/providers"
)

var providersCmd = &cobra.Command{
	Use:   "providers [series-id episode]",
	Short: "List registered providers and the outcome of their last resolution",
	Long: `Lists the registered providers. Given a series id and episode number,
every provider first tries to resolve that episode.`,
	Args: cobra.MatchAll(cobra.RangeArgs(0, 2), func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return fmt.Errorf("an episode number is required with a series id")
		}
		return nil
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := eng.Load()

		if len(args) == 2 {
			if err := probeProviders(cmd.Context(), e, args[0], args[1]); err != nil {
				return err
			}
		}

		statuses := e.registry.Statuses()
		if len(statuses) == 0 {
			fmt.Println("No providers enabled")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tSTATUS\tCHECKED")
		for _, s := range statuses {
			kind := string(s.Provider)
			if kind == e.cfg.Providers.Default {
				kind += " (default)"
			}
			checked := "never"
			if !s.LastCheck.IsZero() {
				checked = humanize.Time(s.LastCheck)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, s.Name, s.Status, checked)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		fmt.Print("\nSeries catalog: ")
		if err := e.lookup.HealthCheck(ctx); err != nil {
			fmt.Printf("Unavailable ✗ (%v)\n", err)
		} else {
			fmt.Println("Available ✓")
		}
		return nil
	},
}

// probeProviders resolves one episode on every provider, which records their status
func probeProviders(ctx context.Context, e *engine, seriesID, episodeArg string) error {
	number, err := strconv.Atoi(episodeArg)
	if err != nil {
		return fmt.Errorf("invalid episode number %q: %w", episodeArg, err)
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	episode, series, err := e.episode(ctx, seriesID, number)
	if err != nil {
		return err
	}
	if episode.Language == "" {
		episode.Language = providers.LanguageSub
	}

	for _, kind := range e.registry.Kinds() {
		orch := e.orchestrator()
		orch.SetCrossReference(series.CrossReference)
		if _, err := orch.Resolve(ctx, playback.TriggerInitial, episode, kind, 0); err != nil {
			logger.Debug("provider probe failed", "provider", kind, "error", err)
		}
	}
	return nil
}
