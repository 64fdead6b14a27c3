package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/satchel0/satchel/internal/app"
)

var regenOwner string

var regenerateCmd = &cobra.Command{
	Use:   "regenerate-embeddings",
	Short: "Re-embed stored bookmarks",
	Long: `Walk bookmarks oldest first and regenerate their embedding vectors
with the currently configured provider. Useful after switching embedding
providers or when saves ran without AI configured. Paced to stay inside
provider rate limits.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRegenerate(cmd.Context())
	},
}

func init() {
	regenerateCmd.Flags().StringVar(&regenOwner, "owner", "", "restrict to one owner (default: all)")
	rootCmd.AddCommand(regenerateCmd)
}

func runRegenerate(ctx context.Context) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	if !a.Generator.Available() {
		return fmt.Errorf("no embedding provider configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}

	delay := time.Duration(cfg.RegenDelayMs) * time.Millisecond
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	count, err := a.Queue.Regenerate(ctx, regenOwner, limiter)
	if err != nil {
		return fmt.Errorf("regenerating embeddings: %w", err)
	}

	fmt.Printf("regenerated %d embeddings (provider %s)\n", count, a.Generator.ActiveProvider())
	return nil
}
