package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelscraper/pkg/models"
)

var (
	scrapeLimit    int
	scrapeSave     bool
	scrapeJSON     bool
	scrapeDownload bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape reels through the strategy chain",
	Long: `Scrape reel metadata. Every subcommand runs the same strategy chain:
backends execute in descending priority order and the first one returning
content wins; identical requests are served from the in-memory cache.`,
}

var hashtagCmd = &cobra.Command{
	Use:   "hashtag <tag>",
	Short: "Find reels for a hashtag",
	Example: `  reelscraper scrape hashtag cooking
  reelscraper scrape hashtag cooking --limit 30 --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			result := app.Unified.SearchByHashtag(ctx, args[0], scrapeLimit)
			return emitResult(ctx, app, result)
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "List a user's reels",
	Example: `  reelscraper scrape user natgeo
  reelscraper scrape user natgeo --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			result := app.Unified.GetUserReels(ctx, args[0], scrapeLimit)
			return emitResult(ctx, app, result)
		})
	},
}

var reelCmd = &cobra.Command{
	Use:     "reel <url>",
	Short:   "Fetch a single reel by URL",
	Example: `  reelscraper scrape reel https://www.instagram.com/reel/Cxyz1234/`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			result := app.Unified.GetReelByURL(ctx, args[0])
			return emitResult(ctx, app, result)
		})
	},
}

var trendingCmd = &cobra.Command{
	Use:     "trending",
	Short:   "List trending reels",
	Example: `  reelscraper scrape trending --limit 24`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			result := app.Unified.GetTrendingReels(ctx, scrapeLimit)
			return emitResult(ctx, app, result)
		})
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.AddCommand(hashtagCmd)
	scrapeCmd.AddCommand(userCmd)
	scrapeCmd.AddCommand(reelCmd)
	scrapeCmd.AddCommand(trendingCmd)

	scrapeCmd.PersistentFlags().IntVarP(&scrapeLimit, "limit", "l", 12, "maximum number of items")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeSave, "save", false, "persist results to the content store")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeJSON, "json", false, "emit results as JSON")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeDownload, "download", false, "download media assets to the data directory")
}

// withApp builds the object graph, restores the session, runs fn under a
// signal-aware context and tears everything down.
func withApp(fn func(context.Context, *App) error) error {
	app, err := newApp(configFile)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.RestoreSession(); err != nil {
		app.Log.WithError(err).Warn("failed to restore persisted session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, app)
}

func emitResult(ctx context.Context, app *App, result *models.StrategyResult) error {
	if result.Err != nil && result.Empty() {
		return fmt.Errorf("scrape failed (source %s): %w", result.Source, result.Err)
	}

	if scrapeSave && !result.Empty() {
		if err := app.Content.SaveBatch(result.Items); err != nil {
			app.Log.WithError(err).Error("failed to persist results")
		}
	}

	if scrapeDownload && !result.Empty() {
		saved, err := app.DownloadMedia(ctx, result.Items)
		if err != nil {
			app.Log.WithError(err).Error("some media downloads failed")
		}
		if saved > 0 {
			fmt.Fprintf(os.Stderr, "Downloaded %d media asset(s).\n", saved)
		}
	}

	if scrapeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Source string               `json:"source"`
			Status string               `json:"status"`
			Items  []models.ContentItem `json:"items"`
		}{result.Source, string(result.Status), result.Items})
	}

	if result.Empty() {
		fmt.Println("No content found.")
		return nil
	}

	fmt.Printf("%d item(s) via %s:\n\n", len(result.Items), result.Source)
	for i, item := range result.Items {
		fmt.Printf("%2d. %s\n", i+1, item.URL)
		if title := item.Title(); title != "" {
			fmt.Printf("    %s\n", title)
		}
		if item.Author.Username != "" {
			fmt.Printf("    @%s", item.Author.Username)
			if item.ViewCount > 0 {
				fmt.Printf("  %d views", item.ViewCount)
			}
			fmt.Println()
		}
	}
	return nil
}
