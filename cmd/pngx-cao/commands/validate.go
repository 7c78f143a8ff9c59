package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
)

var validateFlags connectionFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and server connectivity",
	Long: `Validate configuration and server connectivity.

Tests that:
- Configuration is properly loaded
- Server URL is reachable
- Credentials are valid
- API version is compatible

Examples:
  # Validate configuration
  pngx-cao validate

  # Test specific server
  pngx-cao validate --url http://paperless.example.com`,
	RunE: runValidate,
}

func init() {
	validateFlags.register(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

type checkResult struct {
	name    string
	passed  bool
	details string
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	printer.Header("\nValidating Paperless-ngx Configuration\n")
	printer.Println(strings.Repeat("=", 60))

	var results []checkResult
	allPassed := true

	printer.Bold("\n1. Configuration Loading\n")
	cfg, err := validateFlags.loadConfig()
	if err != nil {
		results = append(results, checkResult{"Configuration", false, err.Error()})
		printer.Failure("Failed to load configuration: %v\n", err)
		printValidateSummary(results, false)
		return printer.Error("validation failed", "Configuration could not be loaded.", nil)
	}
	results = append(results, checkResult{"Configuration", true, "Loaded successfully"})
	printer.Success("Configuration loaded\n")
	printer.Info("    URL: %s\n", cfg.URL)
	auth := "Username/Password"
	if cfg.HasTokenAuth() {
		auth = "Token"
	}
	printer.Info("    Auth: %s\n", auth)
	printer.Info("    Global Read: %v\n", cfg.GlobalRead)
	printer.Info("    API Version: %d\n", cfg.APIVersion)

	printer.Bold("\n2. API Client Initialization\n")
	client, err := pngx.NewClient(pngx.Options{
		BaseURL:       cfg.URL,
		Token:         cfg.Token,
		Username:      cfg.Username,
		Password:      cfg.Password,
		GlobalRead:    cfg.GlobalRead,
		APIVersion:    cfg.APIVersion,
		SkipSSLVerify: cfg.SkipSSLVerify,
	})
	if err != nil {
		results = append(results, checkResult{"API Client", false, err.Error()})
		printer.Failure("Failed to initialize API client: %v\n", err)
		printValidateSummary(results, false)
		return printer.Error("validation failed", "API client could not be initialized.", nil)
	}
	results = append(results, checkResult{"API Client", true, "Initialized successfully"})
	printer.Success("API client initialized\n")

	printer.Bold("\n3. Server Connectivity and Authentication\n")
	tagCount, err := client.Ping(ctx)
	if err != nil {
		results = append(results, checkResult{"Connectivity", false, err.Error()})
		printer.Failure("Failed to connect to server: %v\n", err)
		allPassed = false
	} else {
		results = append(results, checkResult{"Connectivity", true, "Connected to " + cfg.URL})
		results = append(results, checkResult{"Authentication", true, "Credentials are valid"})
		printer.Success("Server is reachable at %s\n", cfg.URL)
		printer.Success("Authentication successful\n")
		printer.Info("    Found %d tags in system\n", tagCount)
	}

	printer.Bold("\n4. API Version Compatibility\n")
	results = append(results, checkResult{"API Version", true, fmt.Sprintf("Using API version %d", cfg.APIVersion)})
	printer.Success("API version %d configured\n", cfg.APIVersion)
	printer.Info("    Note: the server API is generally backward compatible\n")

	printValidateSummary(results, allPassed)

	if !allPassed {
		return printer.Error(
			"validation failed",
			"Some checks failed. Review the errors above and update your configuration.",
			[]string{"Check your .env file or environment variables"},
		)
	}
	return nil
}

func printValidateSummary(results []checkResult, allPassed bool) {
	printer.Println("\n" + strings.Repeat("=", 60))
	printer.Bold("Validation Summary\n\n")

	for _, r := range results {
		status := "✓"
		if !r.passed {
			status = "✗"
		}
		printer.Printf("  %-16s %s  %s\n", r.name, status, r.details)
	}

	printer.Println()
	if allPassed {
		printer.Success("All checks passed! Your configuration is valid and the server is accessible.\n")
	}
}
