// Package cmd contains the satchel CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Satchel - AI-enriched personal bookmark store",
	Long: `Satchel saves anything you throw at it (URLs, notes, images),
enriches it with scraping and AI analysis, and answers natural-language
questions about what you saved.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfigAndLogger loads config and builds the logger shared by
// every command.
func loadConfigAndLogger() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: true})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
