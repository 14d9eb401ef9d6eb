package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reelscraper/pkg/auth"
)

// Config holds all configuration for the scraper.
type Config struct {
	Instagram  InstagramConfig  `yaml:"instagram" json:"instagram"`
	Session    SessionConfig    `yaml:"session" json:"session"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	TwoFactor  TwoFactorConfig  `yaml:"two_factor" json:"two_factor"`
	Strategies StrategiesConfig `yaml:"strategies" json:"strategies"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the credential fields consumed from the environment.
type InstagramConfig struct {
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserID    string `yaml:"user_id" json:"user_id"`
	MachineID string `yaml:"machine_id" json:"machine_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
}

// SessionConfig holds session lifecycle tuning.
type SessionConfig struct {
	RefreshThreshold       time.Duration `yaml:"refresh_threshold" json:"refresh_threshold"`
	CheckInterval          time.Duration `yaml:"check_interval" json:"check_interval"`
	MaxRefreshRetries      int           `yaml:"max_refresh_retries" json:"max_refresh_retries"`
	MinRefreshInterval     time.Duration `yaml:"min_refresh_interval" json:"min_refresh_interval"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
	WebhookURL             string        `yaml:"webhook_url" json:"webhook_url"`
}

// StoreConfig holds credential persistence settings.
type StoreConfig struct {
	Path           string        `yaml:"path" json:"path"`
	Encrypt        bool          `yaml:"encrypt" json:"encrypt"`
	Secret         string        `yaml:"secret" json:"secret"`
	LockStaleAfter time.Duration `yaml:"lock_stale_after" json:"lock_stale_after"`
	LockWait       time.Duration `yaml:"lock_wait" json:"lock_wait"`
}

// TwoFactorConfig holds second-factor resolution settings.
type TwoFactorConfig struct {
	TOTPSecret  string        `yaml:"totp_secret" json:"totp_secret"`
	BackupCodes []string      `yaml:"backup_codes" json:"backup_codes"`
	Interactive bool          `yaml:"interactive" json:"interactive"`
	SMSTimeout  time.Duration `yaml:"sms_timeout" json:"sms_timeout"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

// StrategyConfig enables one backend and orders it among its peers.
type StrategyConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	Priority int  `yaml:"priority" json:"priority"`
}

// RetryConfig holds the shared per-strategy retry machinery settings.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	Jitter       float64       `yaml:"jitter" json:"jitter"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// RapidAPIConfig holds the paid third-party API tier settings.
type RapidAPIConfig struct {
	Host string `yaml:"host" json:"host"`
	Key  string `yaml:"key" json:"key"`
}

// StrategiesConfig configures every scraping backend.
type StrategiesConfig struct {
	API      StrategyConfig `yaml:"api" json:"api"`
	Embed    StrategyConfig `yaml:"embed" json:"embed"`
	RapidAPI StrategyConfig `yaml:"rapidapi" json:"rapidapi"`
	Browser  StrategyConfig `yaml:"browser" json:"browser"`
	Search   StrategyConfig `yaml:"search" json:"search"`

	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Rapid    RapidAPIConfig `yaml:"rapid" json:"rapid"`
	Headless bool           `yaml:"headless" json:"headless"`
}

// RateLimitConfig paces requests against the authenticated API.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds content persistence settings.
type OutputConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Instagram: InstagramConfig{
			MachineID: auth.DefaultMachineID,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Session: SessionConfig{
			RefreshThreshold:       24 * time.Hour,
			CheckInterval:          time.Hour,
			MaxRefreshRetries:      3,
			MinRefreshInterval:     5 * time.Minute,
			MaxConsecutiveFailures: 5,
		},
		Store: StoreConfig{
			Path:           defaultStorePath(),
			Encrypt:        true,
			LockStaleAfter: 30 * time.Second,
			LockWait:       10 * time.Second,
		},
		TwoFactor: TwoFactorConfig{
			Interactive: true,
			SMSTimeout:  2 * time.Minute,
			MaxAttempts: 3,
		},
		Strategies: StrategiesConfig{
			API:      StrategyConfig{Enabled: true, Priority: 100},
			Embed:    StrategyConfig{Enabled: true, Priority: 80},
			RapidAPI: StrategyConfig{Enabled: false, Priority: 60},
			Browser:  StrategyConfig{Enabled: false, Priority: 40},
			Search:   StrategyConfig{Enabled: true, Priority: 20},
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
				Jitter:       0.1,
				Timeout:      20 * time.Second,
			},
			Headless: true,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60},
		Output:    OutputConfig{DataDir: "./data"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./session.json"
	}
	return filepath.Join(home, ".config", "reelscraper", "session.json")
}

// Load builds the effective configuration: defaults, then the optional YAML
// file, then .env, then environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}

	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg.LoadFromEnv()
	return cfg, nil
}

// LoadFromFile merges a YAML config file into the Config. An empty path means
// "search the standard locations"; finding none is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".reelscraper.yaml",
		".reelscraper.yml",
		filepath.Join(home, ".config", "reelscraper", "config.yaml"),
		filepath.Join(home, ".config", "reelscraper", "config.yml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv merges REELSCRAPER_* environment variables into the Config.
func (c *Config) LoadFromEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("REELSCRAPER_SESSION_ID", &c.Instagram.SessionID)
	setString("REELSCRAPER_CSRF_TOKEN", &c.Instagram.CSRFToken)
	setString("REELSCRAPER_USER_ID", &c.Instagram.UserID)
	setString("REELSCRAPER_MACHINE_ID", &c.Instagram.MachineID)
	setString("REELSCRAPER_USER_AGENT", &c.Instagram.UserAgent)
	setString("REELSCRAPER_USERNAME", &c.Instagram.Username)
	setString("REELSCRAPER_PASSWORD", &c.Instagram.Password)

	setString("REELSCRAPER_STORE_PATH", &c.Store.Path)
	setString("REELSCRAPER_STORE_SECRET", &c.Store.Secret)
	if v := os.Getenv("REELSCRAPER_STORE_ENCRYPT"); v != "" {
		c.Store.Encrypt = strings.ToLower(v) == "true"
	}

	setString("REELSCRAPER_TOTP_SECRET", &c.TwoFactor.TOTPSecret)
	if v := os.Getenv("REELSCRAPER_BACKUP_CODES"); v != "" {
		c.TwoFactor.BackupCodes = strings.Split(v, ",")
	}

	setString("REELSCRAPER_RAPIDAPI_HOST", &c.Strategies.Rapid.Host)
	setString("REELSCRAPER_RAPIDAPI_KEY", &c.Strategies.Rapid.Key)

	setString("REELSCRAPER_WEBHOOK_URL", &c.Session.WebhookURL)
	setString("REELSCRAPER_LOG_LEVEL", &c.Logging.Level)
	setString("REELSCRAPER_DATA_DIR", &c.Output.DataDir)

	if v := os.Getenv("REELSCRAPER_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}
}

// Credentials assembles a credential set from the configured fields.
// A missing session token or CSRF token is a hard configuration error.
// A missing owner id falls back to extraction from the session token.
func (c *Config) Credentials() (*auth.Credentials, error) {
	if c.Instagram.SessionID == "" {
		return nil, errors.New("session token is required (REELSCRAPER_SESSION_ID)")
	}
	if c.Instagram.CSRFToken == "" {
		return nil, errors.New("CSRF token is required (REELSCRAPER_CSRF_TOKEN)")
	}

	userID := c.Instagram.UserID
	if userID == "" {
		extracted, ok := auth.UserIDFromSessionID(c.Instagram.SessionID)
		if !ok {
			return nil, errors.New("owner id is required and could not be derived from the session token")
		}
		userID = extracted
	}

	machineID := c.Instagram.MachineID
	if machineID == "" {
		machineID = auth.DefaultMachineID
	}

	creds := auth.New(c.Instagram.SessionID, c.Instagram.CSRFToken, userID, machineID)
	return creds, creds.Validate()
}

// Validate checks the non-credential parts of the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.RefreshThreshold <= 0 {
		errs = append(errs, errors.New("session refresh threshold must be positive"))
	}
	if c.Session.CheckInterval <= 0 {
		errs = append(errs, errors.New("session check interval must be positive"))
	}
	if c.Session.MaxRefreshRetries < 0 {
		errs = append(errs, errors.New("max refresh retries must not be negative"))
	}
	// Store.Secret may be empty here: auth.ResolveSecret falls back to the
	// keyring or the generated secret file, and fails fast if none exists.
	if c.Strategies.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("strategy max retries must not be negative"))
	}
	if c.Strategies.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("strategy backoff multiplier must be >= 1"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Strategies.RapidAPI.Enabled && (c.Strategies.Rapid.Host == "" || c.Strategies.Rapid.Key == "") {
		errs = append(errs, errors.New("rapidapi strategy requires host and key"))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}
