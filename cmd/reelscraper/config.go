package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reelscraper/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage reelscraper configuration.

Configuration is layered, highest priority last:
  - Default values
  - Configuration file (YAML)
  - .env file
  - Environment variables (REELSCRAPER_*)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with the common options.

The file is created as 'reelscraper.yaml' in the current directory unless
a different path is given with the --config flag.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after all sources are merged.
Sensitive values are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# reelscraper configuration file
#
# Every value here can also be set through environment variables prefixed
# with REELSCRAPER_, for example REELSCRAPER_SESSION_ID.

# Instagram credentials. The cookie pair is enough for scraping; username
# and password additionally enable automatic session renewal.
instagram:
  session_id: ""
  csrf_token: ""
  username: ""
  password: ""

# Session lifecycle.
session:
  # Refresh when less than this much validity remains.
  refresh_threshold: 24h
  # Wall-clock period between background validity checks.
  check_interval: 1h
  max_refresh_retries: 3
  max_consecutive_failures: 5
  # Optional webhook notified about refresh outcomes.
  webhook_url: ""

# Credential storage.
store:
  # Encrypt the credential file at rest (recommended).
  encrypt: true

# Second-factor resolution for automatic renewal.
two_factor:
  # Base32 TOTP secret from the authenticator-app enrollment.
  totp_secret: ""
  backup_codes: []
  # Prompt on the terminal for SMS codes when no provider is wired.
  interactive: true

# Scraping backends, in descending priority. The first backend returning
# content wins.
strategies:
  api:
    enabled: true
    priority: 100
  embed:
    enabled: true
    priority: 80
  rapidapi:
    enabled: false
    priority: 60
  browser:
    enabled: false
    priority: 40
  search:
    enabled: true
    priority: 20
  retry:
    max_retries: 3
    initial_delay: 1s
    max_delay: 30s
    multiplier: 2.0
    timeout: 20s
  # Paid API tier credentials, required when rapidapi is enabled.
  rapid:
    host: ""
    key: ""
  headless: true

rate_limit:
  requests_per_minute: 60

output:
  data_dir: "./data"

logging:
  # debug, info, warn, error
  level: "info"
  # Optional log file path; empty logs to stderr only.
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "reelscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Printf("Configuration file created: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add your credentials (or run 'reelscraper auth login')")
	fmt.Println("2. Run 'reelscraper config validate' to check the file")
	fmt.Println("3. Scrape with 'reelscraper scrape hashtag <tag>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	display := *cfg
	display.Instagram.SessionID = maskSecret(display.Instagram.SessionID)
	display.Instagram.CSRFToken = maskSecret(display.Instagram.CSRFToken)
	display.Instagram.Password = maskSecret(display.Instagram.Password)
	display.TwoFactor.TOTPSecret = maskSecret(display.TwoFactor.TOTPSecret)
	display.Store.Secret = maskSecret(display.Store.Secret)
	display.Strategies.Rapid.Key = maskSecret(display.Strategies.Rapid.Key)
	for i := range display.TwoFactor.BackupCodes {
		display.TwoFactor.BackupCodes[i] = maskSecret(display.TwoFactor.BackupCodes[i])
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))

	fmt.Println("\nSources (in order of priority):")
	fmt.Println("1. Environment variables (REELSCRAPER_*)")
	fmt.Println("2. .env file")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, candidate := range []string{
			"reelscraper.yaml",
			"reelscraper.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "reelscraper", "config.yaml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no configuration file found; specify one with --config")
		}
	}

	fmt.Printf("Validating %s\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	var warnings []string
	if cfg.Instagram.SessionID == "" {
		warnings = append(warnings, "no session credentials configured; only anonymous backends will work")
	}
	if cfg.Instagram.Username == "" || cfg.Instagram.Password == "" {
		warnings = append(warnings, "no login credentials configured; automatic session renewal is disabled")
	}
	for _, warn := range warnings {
		fmt.Printf("  warning: %s\n", warn)
	}

	fmt.Println("Configuration is valid.")
	fmt.Println("\nSummary:")
	fmt.Printf("  Data directory: %s\n", cfg.Output.DataDir)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max retries: %d\n", cfg.Strategies.Retry.MaxRetries)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// maskSecret keeps the first and last four characters of long secrets and
// blanks out short ones entirely.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 8 {
		return s[:4] + "..." + s[len(s)-4:]
	}
	return "***"
}
