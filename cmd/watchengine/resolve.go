package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/justchokingaround/watchengine/internal/clipboard"
	"github.com/justchokingaround/watchengine/internal/manifest"
	"github.com/justchokingaround/watchengine/internal/playback"
	"github.com/justchokingaround/watchengine/internal/providers"
)

const resolveTimeout = 60 * time.Second

// resolution is the printable result of resolve
type resolution struct {
	Provider   providers.Kind              `json:"provider" yaml:"provider"`
	Episode    providers.EpisodeRef        `json:"episode" yaml:"episode"`
	Source     string                      `json:"source" yaml:"source"`
	Quality    string                      `json:"quality,omitempty" yaml:"quality,omitempty"`
	Qualities  []manifest.QualityVariant   `json:"qualities,omitempty" yaml:"qualities,omitempty"`
	Descriptor *providers.StreamDescriptor `json:"descriptor" yaml:"descriptor"`
}

// resolveEpisode runs one synchronous resolution for the command line
func resolveEpisode(ctx context.Context, cmd *cobra.Command, args []string) (*resolution, error) {
	e := eng.Load()

	number, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid episode number %q: %w", args[1], err)
	}
	providerName, _ := cmd.Flags().GetString("provider")
	kind, err := e.providerKind(providerName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	episode, series, err := e.episode(ctx, args[0], number)
	if err != nil {
		return nil, err
	}
	if episode.Language == "" {
		value, _, err := e.prefs.Get(ctx, playback.LanguagePreferenceKey)
		if err != nil {
			logger.Warn("failed to read language preference", "error", err)
		}
		if episode.Language, err = providers.ParseLanguageMode(value); err != nil {
			episode.Language = providers.LanguageSub
		}
	}

	orch := e.orchestrator()
	orch.SetCrossReference(series.CrossReference)

	logger.Info("resolving", "series", series.Title, "episode", episode.Number, "provider", kind, "language", episode.Language)
	snap, err := orch.Resolve(ctx, playback.TriggerInitial, episode, kind, 0)
	if err != nil {
		return nil, err
	}

	return &resolution{
		Provider:   snap.Provider,
		Episode:    snap.Episode,
		Source:     snap.CurrentSourceURL,
		Quality:    snap.CurrentQuality,
		Qualities:  snap.Qualities,
		Descriptor: snap.Descriptor,
	}, nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <series-id> <episode>",
	Short: "Resolve an episode and print its stream descriptor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		r, err := resolveEpisode(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}
		return printResolution(r, format)
	},
}

func printResolution(r *resolution, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q: must be text, json or yaml", format)
	}

	d := r.Descriptor
	fmt.Printf("Provider: %s\n", r.Provider)
	fmt.Printf("Episode: %d (%s, %s)\n", r.Episode.Number, r.Episode.EpisodeID, r.Episode.Language)
	fmt.Printf("Source: %s\n", r.Source)
	if r.Quality != "" {
		fmt.Printf("Quality: %s\n", r.Quality)
	}
	if primary, ok := d.Primary(); ok && primary.IsEmbeddedPlayer {
		fmt.Println("Type: embedded player")
	}

	if len(r.Qualities) > 0 {
		fmt.Println("\nQualities:")
		printLadder(r.Qualities)
	}

	fmt.Println("\nHeaders:")
	if len(d.Headers) == 0 {
		fmt.Println("  (none)")
	}
	for key, value := range d.Headers {
		fmt.Printf("  %s: %s\n", key, value)
	}

	fmt.Println("\nSubtitles:")
	if len(d.Subtitles) == 0 {
		fmt.Println("  (none available)")
	}
	for i, sub := range d.Subtitles {
		fmt.Printf("  %d. %s [%s] %s\n", i+1, sub.Language, sub.Format, sub.URL)
	}

	if d.Intro != nil {
		fmt.Printf("\nIntro: %s - %s\n", formatSeconds(d.Intro.Start), formatSeconds(d.Intro.End))
	}
	if d.Outro != nil {
		fmt.Printf("Outro: %s - %s\n", formatSeconds(d.Outro.Start), formatSeconds(d.Outro.End))
	}
	return nil
}

func printLadder(ladder []manifest.QualityVariant) {
	width := 0
	for _, q := range ladder {
		width = max(width, len(q.Label))
	}
	for _, q := range ladder {
		fmt.Printf("  %-*s  %s\n", width, q.Label, q.URL)
	}
}

var qualitiesCmd = &cobra.Command{
	Use:   "qualities <manifest-url>",
	Short: "Print the quality ladder of an HLS master playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headerFlags, _ := cmd.Flags().GetStringToString("header")
		referer, _ := cmd.Flags().GetString("referer")
		if referer != "" {
			headerFlags["Referer"] = referer
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
		defer cancel()

		ladder := eng.Load().parser.Qualities(ctx, args[0], headerFlags)
		printLadder(ladder)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <series-id> <episode>",
	Short: "Print the download target of an episode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		copyLink, _ := cmd.Flags().GetBool("copy")

		r, err := resolveEpisode(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}

		target := r.Descriptor.Download
		if target.IsZero() {
			return fmt.Errorf("provider %s offers no download for episode %d", r.Provider, r.Episode.Number)
		}

		first := target.URL
		if target.URL != "" {
			fmt.Println(target.URL)
		}
		for _, link := range target.Links {
			if first == "" {
				first = link.URL
			}
			fmt.Printf("%s\t%s\n", strings.TrimSpace(link.Label), link.URL)
		}

		if copyLink {
			svc := clipboard.NewService(eng.Load().cfg.Advanced.ClipboardCommand, logger)
			if err := svc.Write(cmd.Context(), first); err != nil {
				return fmt.Errorf("failed to copy download link: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Copied to clipboard")
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringP("provider", "p", "", "provider to use: direct, catalog or embed (default from config)")
	resolveCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")

	qualitiesCmd.Flags().StringToString("header", map[string]string{}, "extra request header (key=value)")
	qualitiesCmd.Flags().String("referer", "", "Referer header for the manifest request")

	downloadCmd.Flags().StringP("provider", "p", "", "provider to use: direct, catalog or embed (default from config)")
	downloadCmd.Flags().Bool("copy", false, "copy the first download link to the clipboard")
}
