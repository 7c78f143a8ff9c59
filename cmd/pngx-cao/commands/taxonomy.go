package commands

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caostack/pngx-cao/internal/printer"
	"github.com/caostack/pngx-cao/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage hierarchical taxonomy tags",
	Long: `Manage hierarchical taxonomy tags on the document server.

Create, list, and validate taxonomy structures from CSV reference files.`,
}

var (
	taxonomyCreateFlags     connectionFlags
	taxonomyCreateFilter    string
	taxonomyCreateDataDir   string
	taxonomyDefinitionsFile string
)

var taxonomyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create hierarchical tags from CSV files",
	Long: `Create hierarchical tags from CSV files.

Creates tag hierarchies for:
- Actors (3-tier: Actors -> Animal -> Individual Actor)
- Motivations (2-tier: Motivations -> Type)
- Targeted Countries (2-tier: Countries -> Country)
- Targeted Industries (2-tier: Industries -> Industry)

Examples:
  # Create all taxonomies
  pngx-cao taxonomy create

  # Create only actor taxonomy
  pngx-cao taxonomy create -t actor

  # Use custom data directory
  pngx-cao taxonomy create --data-dir /path/to/data`,
	RunE: runTaxonomyCreate,
}

var (
	taxonomyListFlags   connectionFlags
	taxonomyListDataDir string
)

var taxonomyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available taxonomies (local CSV check only)",
	Long: `List available taxonomies based on local CSV files.

Does NOT connect to the server. Use 'pngx-cao taxonomy remote' to check
server status.`,
	RunE: runTaxonomyList,
}

var taxonomyRemoteFlags connectionFlags

var taxonomyRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Check taxonomy status on the remote server",
	Long:  `Show how many tags exist for each taxonomy on the server.`,
	RunE:  runTaxonomyRemote,
}

var (
	taxonomyValidateFlags   connectionFlags
	taxonomyValidateDataDir string
)

var taxonomyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate taxonomy CSV files",
	Long: `Validate taxonomy CSV files and check for issues.

Checks that all required CSV files exist and are readable.`,
	RunE: runTaxonomyValidate,
}

func init() {
	taxonomyCreateCmd.Flags().StringVarP(&taxonomyCreateFilter, "taxonomy", "t", "all", "Which taxonomy to create (default: all)")
	taxonomyCreateCmd.Flags().StringVar(&taxonomyCreateDataDir, "data-dir", "", "Directory containing CSV files (default: ./data)")
	taxonomyCreateCmd.Flags().StringVar(&taxonomyDefinitionsFile, "definitions", "", "YAML file overriding the built-in taxonomy definitions")
	taxonomyCreateFlags.register(taxonomyCreateCmd)

	taxonomyListCmd.Flags().StringVar(&taxonomyListDataDir, "data-dir", "", "Directory containing CSV files (default: ./data)")
	taxonomyListFlags.register(taxonomyListCmd)

	taxonomyRemoteFlags.register(taxonomyRemoteCmd)

	taxonomyValidateCmd.Flags().StringVar(&taxonomyValidateDataDir, "data-dir", "", "Directory containing CSV files (default: ./data)")
	taxonomyValidateFlags.register(taxonomyValidateCmd)

	taxonomyCmd.AddCommand(taxonomyCreateCmd)
	taxonomyCmd.AddCommand(taxonomyListCmd)
	taxonomyCmd.AddCommand(taxonomyRemoteCmd)
	taxonomyCmd.AddCommand(taxonomyValidateCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

// resolveDataDir applies the flag, then the configured default.
func resolveDataDir(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	if configured != "" {
		return configured
	}
	return "./data"
}

func runTaxonomyCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, cfg, err := taxonomyCreateFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	defs, err := taxonomy.LoadDefinitions(taxonomyDefinitionsFile)
	if err != nil {
		return printer.Error("invalid taxonomy definitions", err.Error(), nil)
	}

	dataDir := resolveDataDir(taxonomyCreateDataDir, cfg.DataDir)
	printer.Dim("Using data directory: %s\n\n", dataDir)

	printer.Header("Creating Taxonomy Tags\n")
	printer.Println(strings.Repeat("=", 60))

	service := taxonomy.NewService(client, defs)
	stats, err := service.SyncAll(ctx, taxonomyCreateFilter, dataDir)
	if err != nil {
		return printer.Error("taxonomy creation failed", err.Error(), nil)
	}

	printer.Println("\n" + strings.Repeat("=", 60))
	printer.Bold("Overall Summary:\n")
	printer.Printf("  %-20s %d\n", "Created", stats.Created)
	printer.Printf("  %-20s %d\n", "Skipped (existing)", stats.Skipped)
	printer.Printf("  %-20s %d\n", "Failed", stats.Failed)
	printer.Printf("  %-20s %d\n", "Total processed", stats.Total)
	printer.Println(strings.Repeat("=", 60))

	if stats.Created > 0 {
		printer.Success("Tags created successfully! View them at:\n  %s/admin/documents/tag/\n", client.BaseURL())
	}
	return nil
}

func runTaxonomyList(cmd *cobra.Command, args []string) error {
	taxonomyListFlags.setupLogging()

	dataDir := taxonomyListDataDir
	if dataDir == "" {
		if cfg, err := taxonomyListFlags.loadConfig(); err == nil {
			dataDir = cfg.DataDir
		} else {
			dataDir = "./data"
		}
	}

	printer.Header("Available Taxonomies (Local CSV Files)\n\n")
	printer.Printf("  %-22s %-26s %-8s %s\n", "NAME", "CSV FILE", "STATUS", "DESCRIPTION")

	for _, def := range taxonomy.Defaults() {
		status := "?"
		if _, err := os.Stat(dataDir + "/" + def.CSVFile); err == nil {
			status = "✓"
		}
		printer.Printf("  %-22s %-26s %-8s %s\n", def.Name, def.CSVFile, status, def.Description)
	}

	printer.Dim("\nData directory: %s\n", dataDir)
	printer.Bold("\nUsage: ")
	printer.Info("pngx-cao taxonomy create -t <name>  or  pngx-cao taxonomy create\n")
	printer.Dim("\nNote: This is a local check only. Use 'pngx-cao taxonomy remote' to check server status.\n")
	return nil
}

func runTaxonomyRemote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, _, err := taxonomyRemoteFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	printer.Bold("Checking remote taxonomy status...\n\n")

	service := taxonomy.NewService(client, taxonomy.Defaults())
	counts, uncategorized, total, err := service.RemoteStatus(ctx)
	if err != nil {
		return printer.Error("remote check failed", err.Error(), nil)
	}

	if total == 0 {
		printer.Warning("No tags found on server\n")
		return nil
	}

	printer.Header("Remote Taxonomy Status\n\n")
	printer.Printf("  %-22s %8s  %s\n", "TAXONOMY", "TAGS", "SAMPLE TAGS")
	for _, count := range counts {
		sample := strings.Join(count.Samples, ", ")
		if count.Count > len(count.Samples) {
			sample += " (+" + strconv.Itoa(count.Count-len(count.Samples)) + " more)"
		}
		if sample == "" {
			sample = "(none)"
		}
		printer.Printf("  %-22s %8d  %s\n", count.Taxonomy, count.Count, sample)
	}

	printer.Dim("\nTotal tags on server: %d\n", total)
	if uncategorized > 0 {
		printer.Dim("Uncategorized tags: %d\n", uncategorized)
	}
	return nil
}

func runTaxonomyValidate(cmd *cobra.Command, args []string) error {
	taxonomyValidateFlags.setupLogging()

	dataDir := taxonomyValidateDataDir
	if dataDir == "" {
		if cfg, err := taxonomyValidateFlags.loadConfig(); err == nil {
			dataDir = cfg.DataDir
		} else {
			dataDir = "./data"
		}
	}

	printer.Bold("Validating taxonomies in: ")
	printer.Info("%s\n\n", dataDir)

	service := taxonomy.NewService(nil, taxonomy.Defaults())
	results, allValid := service.ValidateLocal(dataDir)

	for _, result := range results {
		printer.Step("%s: %s\n", result.Taxonomy, result.CSVFile)
		if result.Valid {
			printer.Success("Valid: %s\n", result.Detail)
		} else {
			printer.Failure("%s\n", result.Detail)
		}
	}

	printer.Println()
	if !allValid {
		return printer.Error("some taxonomies have issues", "Fix the CSV files listed above and re-run.", nil)
	}
	printer.Success("All taxonomies are valid!\n")
	return nil
}
