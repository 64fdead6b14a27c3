package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satchel0/satchel/internal/app"
	"github.com/satchel0/satchel/internal/enrich"
)

var (
	saveOwner       string
	saveTitle       string
	saveNote        string
	saveTags        []string
	saveImage       bool
	savePageURL     string
	saveAltText     string
	saveSurrounding string
)

var saveCmd = &cobra.Command{
	Use:   "save [url]",
	Short: "Save and enrich a bookmark",
	Long: `Save a URL, a note, or an image bookmark. The URL is classified,
scraped, and analyzed; the embedding is generated in the background, so
it may lag the save by a moment.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := ""
		if len(args) > 0 {
			url = args[0]
		}
		return runSave(cmd.Context(), url)
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveOwner, "owner", "", "owner ID (required)")
	saveCmd.Flags().StringVar(&saveTitle, "title", "", "title override")
	saveCmd.Flags().StringVar(&saveNote, "note", "", "free-text note content")
	saveCmd.Flags().StringSliceVar(&saveTags, "tags", nil, "user tags (comma separated)")
	saveCmd.Flags().BoolVar(&saveImage, "image", false, "treat the URL as an image")
	saveCmd.Flags().StringVar(&savePageURL, "page-url", "", "page the image was found on")
	saveCmd.Flags().StringVar(&saveAltText, "alt-text", "", "alt text of the image")
	saveCmd.Flags().StringVar(&saveSurrounding, "surrounding-text", "", "text near the image on the source page")
	_ = saveCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(saveCmd)
}

func runSave(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" && strings.TrimSpace(saveNote) == "" && strings.TrimSpace(saveTitle) == "" {
		return fmt.Errorf("provide a URL argument, --note, or --title")
	}

	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	b, err := a.Enricher.Save(ctx, enrich.SaveInput{
		OwnerID:         saveOwner,
		URL:             url,
		Title:           saveTitle,
		Note:            saveNote,
		Tags:            saveTags,
		AsImage:         saveImage,
		PageURL:         savePageURL,
		AltText:         saveAltText,
		SurroundingText: saveSurrounding,
	})
	if err != nil {
		return fmt.Errorf("saving bookmark: %w", err)
	}

	// One-shot process: drain the queued embedding before exiting.
	if err := a.Queue.Process(ctx, b.ID); err != nil {
		logger.Warn("embedding failed, bookmark stays keyword-searchable", "error", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
