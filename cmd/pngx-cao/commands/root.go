package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/caostack/pngx-cao/internal/config"
	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pngx-cao",
	Short: "Paperless-ngx tools for threat intelligence report archives",
	Long: `pngx-cao manages hierarchical taxonomy tags and uploads threat
intelligence report folders to a Paperless-ngx document server.

Taxonomies (actors, motivations, targeted countries and industries) are
synchronized from CSV reference data; report folders carry a PDF plus a JSON
metadata sidecar that drives tag assignment on upload.

Environment variables:
  PAPERLESS_URL                 Paperless-ngx base URL
  PAPERLESS_TOKEN               API token (preferred)
  PAPERLESS_USERNAME            Username for basic auth
  PAPERLESS_PASSWORD            Password for basic auth
  PAPERLESS_GLOBAL_READ         Create items readable by every user
  PAPERLESS_API_VERSION         API version header (default: 9)
  PAPERLESS_SKIP_SSL_VERIFY     Skip TLS certificate verification
  PAPERLESS_DUPLICATE_HANDLING  skip, replace, or update-metadata
  PAPERLESS_DATA_DIR            CSV reference data directory
  PAPERLESS_ORIGINALS_DIR       Report folders directory`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// connectionFlags holds the server connection options shared by every command
// that talks to the service.
type connectionFlags struct {
	envFile       string
	envPrefix     string
	url           string
	token         string
	skipSSLVerify bool
	debug         bool
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&f.envPrefix, "env-prefix", "", "Environment variable prefix")
	cmd.Flags().StringVar(&f.url, "url", "", "Paperless-ngx URL (overrides env)")
	cmd.Flags().StringVar(&f.token, "token", "", "API token (overrides env)")
	cmd.Flags().BoolVarP(&f.skipSSLVerify, "skip-ssl-verify", "k", false, "Skip SSL certificate verification (insecure)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
}

// loadConfig loads configuration from the environment and applies CLI
// overrides.
func (f *connectionFlags) loadConfig() (*config.Config, error) {
	f.setupLogging()

	cfg, err := config.Load(f.envPrefix, f.envFile)
	if err != nil {
		// CLI overrides may satisfy what the environment lacks
		if f.url == "" && f.token == "" {
			return nil, err
		}
		cfg = &config.Config{APIVersion: 9, DuplicateHandling: "skip", DataDir: "./data", OriginalsDir: "./originals"}
	}

	if f.url != "" {
		cfg.URL = f.url
	}
	if f.token != "" {
		cfg.Token = f.token
	}
	if f.skipSSLVerify {
		cfg.SkipSSLVerify = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds the API client from the resolved configuration.
func (f *connectionFlags) newClient() (*pngx.Client, *config.Config, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}

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
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, cfg, nil
}

func (f *connectionFlags) setupLogging() {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// connectionError wraps a configuration or client failure into a formatted
// CLI error.
func connectionError(err error) error {
	return printer.Error(
		"connection setup failed",
		err.Error(),
		[]string{
			"Set PAPERLESS_URL and PAPERLESS_TOKEN in the environment or a .env file",
			"Pass --url and --token on the command line",
		},
	)
}
