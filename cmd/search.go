package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satchel0/satchel/internal/app"
)

var (
	searchOwner string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search bookmarks with a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchOwner, "owner", "", "owner ID (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	_ = searchCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(ctx context.Context, rawQuery string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	resp, err := a.Searcher.Search(ctx, searchOwner, rawQuery, searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	for i, r := range resp.Results {
		b := r.Match.Bookmark
		fmt.Printf("%2d. %s  [%s/%s]  score=%.2f\n", i+1, b.Title, b.ContentType, b.Category, r.Score)
		if b.URL != "" {
			fmt.Printf("    %s\n", b.URL)
		}
		if r.Reason != "" {
			fmt.Printf("    %s\n", r.Reason)
		}
		if len(b.Tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(b.Tags, ", "))
		}
	}
	return nil
}
