package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for rankwatch.
type Config struct {
	HH       HHConfig
	Retry    RetryConfig
	Tracking TrackingConfig
	AI       AIConfig
	Store    StoreConfig
	Server   ServerConfig
	Watch    WatchConfig
}

// HHConfig controls the job-board client.
type HHConfig struct {
	BaseURL   string
	UserAgent string        // hh.ru rejects requests without a descriptive User-Agent
	MinDelay  time.Duration // minimum gap between requests to the same host, 0 disables
	Timeout   time.Duration // per-attempt HTTP timeout
}

// RetryConfig controls the resilient fetcher.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// TrackingConfig controls the position tracker.
type TrackingConfig struct {
	Pacing time.Duration // pause between group searches
}

// AIConfig controls the title normalizer.
type AIConfig struct {
	Provider  string // "gemini", "openai" or "none"
	BaseURL   string // empty keeps the provider default
	Model     string
	APIKey    string // expanded from env var by Load
	Timeout   time.Duration
	BatchSize int // titles per prompt, 0 = all in one prompt
}

// StoreConfig selects where job records are kept.
type StoreConfig struct {
	Driver string // "sqlite", "postgres" or "none"
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string
}

// WatchConfig controls periodic re-analysis.
type WatchConfig struct {
	Interval  time.Duration
	Pause     time.Duration // pause between employers within one cycle
	Retention time.Duration // finished records older than this are pruned, 0 keeps all
	Employers []string
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"

	// EnvConfigPath names the environment variable that points at the config file.
	EnvConfigPath = "RANKWATCH_CONFIG"

	// DefaultConfigFile is looked up in the working directory when no path is given.
	DefaultConfigFile = "rankwatch.yaml"
)

const (
	defaultHHBaseURL   = "https://api.hh.ru"
	defaultUserAgent   = "rankwatch/1.0 (+https://github.com/amishk599/rankwatch)"
	defaultHHTimeout   = 30 * time.Second
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultPacing      = 500 * time.Millisecond
	defaultGeminiModel = "gemini-1.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultAITimeout   = 60 * time.Second
	defaultAddr        = ":3000"
	defaultInterval    = 24 * time.Hour
	defaultWatchPause  = time.Second
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	HH struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		MinDelay  string `yaml:"min_delay"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"hh"`
	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
	} `yaml:"retry"`
	Tracking struct {
		Pacing string `yaml:"pacing"`
	} `yaml:"tracking"`
	AI struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		Timeout   string `yaml:"timeout"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"ai"`
	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Watch struct {
		Interval  string   `yaml:"interval"`
		Pause     string   `yaml:"pause"`
		Retention string   `yaml:"retention"`
		Companies []string `yaml:"companies"`
	} `yaml:"watch"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ResolvePath picks the config file: the explicit flag value, then
// $RANKWATCH_CONFIG, then ./rankwatch.yaml if it exists. An empty result means
// defaults and environment only.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// DataDir is the directory holding the default database and run locks.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "rankwatch")
}

// Load reads and parses the YAML config file at path (if any), applies
// environment overrides and defaults, validates it, and returns Config.
func Load(path string) (*Config, error) {
	var raw rawConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		// Expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&raw)

	cfg, err := build(&raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets well-known environment variables override the file.
func applyEnv(raw *rawConfig) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&raw.HH.UserAgent, "HH_USER_AGENT")
	override(&raw.Store.DSN, "DATABASE_URL")
	if port := os.Getenv("PORT"); port != "" {
		raw.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}

	switch strings.ToLower(raw.AI.Provider) {
	case ProviderOpenAI:
		override(&raw.AI.APIKey, "OPENAI_API_KEY")
	case ProviderNone:
	default:
		override(&raw.AI.APIKey, "GEMINI_API_KEY")
	}

	if raw.Store.Driver == "" && raw.Store.DSN != "" {
		raw.Store.Driver = DriverPostgres
	}
}

func build(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		HH: HHConfig{
			BaseURL:   orDefault(raw.HH.BaseURL, defaultHHBaseURL),
			UserAgent: orDefault(raw.HH.UserAgent, defaultUserAgent),
		},
		Retry: RetryConfig{MaxAttempts: raw.Retry.MaxAttempts},
		AI: AIConfig{
			Provider:  strings.ToLower(orDefault(raw.AI.Provider, ProviderGemini)),
			BaseURL:   raw.AI.BaseURL,
			Model:     raw.AI.Model,
			APIKey:    raw.AI.APIKey,
			BatchSize: raw.AI.BatchSize,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(orDefault(raw.Store.Driver, DriverSQLite)),
			Path:   raw.Store.Path,
			DSN:    raw.Store.DSN,
		},
		Server: ServerConfig{Addr: orDefault(raw.Server.Addr, defaultAddr)},
		Watch:  WatchConfig{Employers: raw.Watch.Companies},
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case ProviderGemini:
			cfg.AI.Model = defaultGeminiModel
		case ProviderOpenAI:
			cfg.AI.Model = defaultOpenAIModel
		}
	}
	if cfg.Store.Driver == DriverSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(DataDir(), "rankwatch.db")
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"hh.min_delay", raw.HH.MinDelay, 0, &cfg.HH.MinDelay},
		{"hh.timeout", raw.HH.Timeout, defaultHHTimeout, &cfg.HH.Timeout},
		{"retry.base_delay", raw.Retry.BaseDelay, defaultBaseDelay, &cfg.Retry.BaseDelay},
		{"tracking.pacing", raw.Tracking.Pacing, defaultPacing, &cfg.Tracking.Pacing},
		{"ai.timeout", raw.AI.Timeout, defaultAITimeout, &cfg.AI.Timeout},
		{"watch.interval", raw.Watch.Interval, defaultInterval, &cfg.Watch.Interval},
		{"watch.pause", raw.Watch.Pause, defaultWatchPause, &cfg.Watch.Pause},
		{"watch.retention", raw.Watch.Retention, 0, &cfg.Watch.Retention},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.def
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Tracking.Pacing < 0 {
		return fmt.Errorf("tracking.pacing must not be negative, got %v", cfg.Tracking.Pacing)
	}
	if cfg.HH.MinDelay < 0 {
		return fmt.Errorf("hh.min_delay must not be negative, got %v", cfg.HH.MinDelay)
	}
	if cfg.AI.BatchSize < 0 {
		return fmt.Errorf("ai.batch_size must not be negative, got %d", cfg.AI.BatchSize)
	}

	switch cfg.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.provider is %q (set %s)", cfg.AI.Provider, apiKeyEnv(cfg.AI.Provider))
		}
	case ProviderNone:
	default:
		return fmt.Errorf("ai.provider must be one of gemini, openai, none; got %q", cfg.AI.Provider)
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn (or DATABASE_URL) is required when store.driver is \"postgres\"")
		}
	case DriverNone:
	default:
		return fmt.Errorf("store.driver must be one of sqlite, postgres, none; got %q", cfg.Store.Driver)
	}

	if cfg.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %v", cfg.Watch.Interval)
	}
	return nil
}

func apiKeyEnv(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}
