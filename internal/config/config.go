// Package config loads connection and behavior settings from the environment,
// optionally seeded from a .env file. A prefix lets several service instances
// share one environment (e.g. BOX1_PAPERLESS_URL alongside PAPERLESS_URL).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything needed to talk to the document service and drive
// an ingest run.
type Config struct {
	URL      string
	Token    string
	Username string
	Password string

	GlobalRead        bool
	APIVersion        int
	SkipSSLVerify     bool
	DuplicateHandling string
	DataDir           string
	OriginalsDir      string
}

// HasTokenAuth reports whether token authentication is configured.
func (c *Config) HasTokenAuth() bool {
	return c.Token != ""
}

// HasBasicAuth reports whether username/password authentication is configured.
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("PAPERLESS_URL must be set")
	}
	if !c.HasTokenAuth() && !c.HasBasicAuth() {
		return fmt.Errorf("either PAPERLESS_TOKEN or PAPERLESS_USERNAME/PASSWORD must be set")
	}
	return nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// With an empty path it tries ./.env and then ../.env; a missing file is not
// an error. Already-set variables are never overwritten.
func LoadEnvFile(path string) bool {
	if path != "" {
		return godotenv.Load(path) == nil
	}

	for _, candidate := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(candidate); err == nil {
			if godotenv.Load(candidate) == nil {
				return true
			}
		}
	}
	return false
}

// Load reads the configuration from the environment. The prefix, when
// non-empty, is tried before the bare variable name, so prefixed settings
// override shared ones. envFile may be empty.
func Load(prefix, envFile string) (*Config, error) {
	LoadEnvFile(envFile)

	getEnv := func(key, fallback string) string {
		if prefix != "" {
			if v, ok := os.LookupEnv(prefix + key); ok {
				return v
			}
		}
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fallback
	}

	apiVersion, err := strconv.Atoi(strings.TrimSpace(getEnv("PAPERLESS_API_VERSION", "9")))
	if err != nil {
		return nil, fmt.Errorf("PAPERLESS_API_VERSION must be an integer: %w", err)
	}

	duplicateHandling := strings.ToLower(strings.TrimSpace(getEnv("PAPERLESS_DUPLICATE_HANDLING", "skip")))
	switch duplicateHandling {
	case "skip", "replace", "update-metadata":
	default:
		duplicateHandling = "skip"
	}

	cfg := &Config{
		URL:               getEnv("PAPERLESS_URL", ""),
		Token:             getEnv("PAPERLESS_TOKEN", ""),
		Username:          getEnv("PAPERLESS_USERNAME", ""),
		Password:          getEnv("PAPERLESS_PASSWORD", ""),
		GlobalRead:        parseBool(getEnv("PAPERLESS_GLOBAL_READ", "false")),
		APIVersion:        apiVersion,
		SkipSSLVerify:     parseBool(getEnv("PAPERLESS_SKIP_SSL_VERIFY", "false")),
		DuplicateHandling: duplicateHandling,
		DataDir:           getEnv("PAPERLESS_DATA_DIR", "./data"),
		OriginalsDir:      getEnv("PAPERLESS_ORIGINALS_DIR", "./originals"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseBool accepts the usual truthy spellings; anything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
