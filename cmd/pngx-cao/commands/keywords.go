package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/caostack/pngx-cao/internal/keywords"
	"github.com/caostack/pngx-cao/internal/printer"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Manage keyword annotations on actor tags",
	Long: `Manage the parenthetical keyword annotations on actor tag names.

Keywords mark actor status, e.g. "HYPER BASALISK (inactive, merged)".
Adding or removing keywords renames the tag; document assignments are
unaffected because they reference the tag by ID.`,
}

var (
	keywordsAddFlags  connectionFlags
	keywordsToAdd     []string
	keywordsToRemove  []string
	keywordsAddDryRun bool
)

var keywordsAddCmd = &cobra.Command{
	Use:   "add TAG_NAME",
	Short: "Add or remove keywords on a single tag",
	Long: `Add or remove keywords on a single actor tag.

The tag may be named with or without its current annotation; matching is
case-insensitive and annotation-aware.

Examples:
  # Mark an actor inactive
  pngx-cao keywords add "HYPER BASALISK" --add inactive

  # Replace one keyword with another
  pngx-cao keywords add "HYPER BASALISK" --add merged --remove active`,
	Args: cobra.ExactArgs(1),
	RunE: runKeywordsAdd,
}

var (
	keywordsCSVFlags  connectionFlags
	keywordsCSVDryRun bool
)

var keywordsAddFromCSVCmd = &cobra.Command{
	Use:   "add-from-csv CSV_FILE",
	Short: "Add keywords to many tags from a CSV file",
	Long: `Add keywords to many tags from a CSV file.

The file must have Name and Keywords columns; the Keywords cell is a
comma-separated list. Rows whose tag cannot be found are reported and the
run continues.

Examples:
  pngx-cao keywords add-from-csv keywords.csv
  pngx-cao keywords add-from-csv keywords.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runKeywordsAddFromCSV,
}

func init() {
	keywordsAddCmd.Flags().StringArrayVar(&keywordsToAdd, "add", nil, "Keywords to add (can be specified multiple times)")
	keywordsAddCmd.Flags().StringArrayVar(&keywordsToRemove, "remove", nil, "Keywords to remove (can be specified multiple times)")
	keywordsAddCmd.Flags().BoolVar(&keywordsAddDryRun, "dry-run", false, "Show what would be changed without making actual changes")
	keywordsAddFlags.register(keywordsAddCmd)

	keywordsAddFromCSVCmd.Flags().BoolVar(&keywordsCSVDryRun, "dry-run", false, "Show what would be changed without making actual changes")
	keywordsCSVFlags.register(keywordsAddFromCSVCmd)

	keywordsCmd.AddCommand(keywordsAddCmd)
	keywordsCmd.AddCommand(keywordsAddFromCSVCmd)
	rootCmd.AddCommand(keywordsCmd)
}

func runKeywordsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tagName := args[0]

	if len(keywordsToAdd) == 0 && len(keywordsToRemove) == 0 {
		return printer.Error(
			"nothing to do",
			"Neither --add nor --remove was given.",
			[]string{"Pass --add and/or --remove with at least one keyword"},
		)
	}

	client, _, err := keywordsAddFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	if keywordsAddDryRun {
		printer.Step("DRY RUN - no changes will be made\n")
	}

	service := keywords.NewService(client)
	change, err := service.UpdateTagKeywords(ctx, tagName, keywordsToAdd, keywordsToRemove, keywordsAddDryRun)
	if errors.Is(err, keywords.ErrTagNotFound) {
		return printer.Error(
			"tag not found",
			err.Error(),
			[]string{"Check the tag name spelling", "Run 'pngx-cao taxonomy remote' to see what exists on the server"},
		)
	}
	if err != nil {
		return printer.Error("keyword update failed", err.Error(), nil)
	}

	if change == nil {
		printer.Info("Tag already has the requested keywords; nothing to change.\n")
	}
	return nil
}

func runKeywordsAddFromCSV(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	csvFile := args[0]

	client, _, err := keywordsCSVFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	if keywordsCSVDryRun {
		printer.Step("DRY RUN - no changes will be made\n")
	}

	service := keywords.NewService(client)
	stats, err := service.AddFromCSV(ctx, csvFile, keywordsCSVDryRun)
	if err != nil {
		return printer.Error("keyword CSV processing failed", err.Error(), nil)
	}

	printer.Bold("\nKeyword Summary\n")
	printer.Printf("  %-12s %d\n", "Updated", stats.Updated)
	printer.Printf("  %-12s %d\n", "Skipped", stats.Skipped)
	printer.Printf("  %-12s %d\n", "Not found", stats.NotFound)
	printer.Printf("  %-12s %d\n", "Failed", stats.Failed)

	if stats.Failed > 0 || stats.NotFound > 0 {
		printer.Warning("Some rows could not be applied; see messages above\n")
	}
	return nil
}
