package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the edasearch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Engine    EngineConfig    `yaml:"engine"`
	Cache     CacheConfig     `yaml:"cache"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EngineConfig holds search engine connection settings.
type EngineConfig struct {
	Addresses          []string `yaml:"addresses"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	Index              string   `yaml:"index"`
	StatsIndex         string   `yaml:"stats_index"` // default: index
	RequestTimeoutSec  int      `yaml:"request_timeout_sec"`
	RetryAttempts      uint     `yaml:"retry_attempts"`
	RetryDelayMs       int      `yaml:"retry_delay_ms"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// CacheConfig holds the search response cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ExpansionConfig holds the query expansion provider settings.
type ExpansionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	MaxTerms int    `yaml:"max_terms"`

	// Token budget; zero limits are unlimited. Counters persist in the
	// cache store when it is enabled.
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	BudgetAction      string `yaml:"budget_action"` // warn, reject
}

// SearchConfig holds pages request defaults.
type SearchConfig struct {
	DefaultLimit    int    `yaml:"default_limit"`
	MaxLimit        int    `yaml:"max_limit"`
	CharsPadding    int    `yaml:"chars_padding"`
	DefaultOperator string `yaml:"default_operator"` // and, or
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Engine.Index == "" {
		c.Engine.Index = "gamechanger"
	}
	if c.Engine.StatsIndex == "" {
		c.Engine.StatsIndex = c.Engine.Index
	}
	if c.Engine.RequestTimeoutSec <= 0 {
		c.Engine.RequestTimeoutSec = 20
	}
	if c.Engine.RetryAttempts == 0 {
		c.Engine.RetryAttempts = 3
	}
	if c.Engine.RetryDelayMs <= 0 {
		c.Engine.RetryDelayMs = 200
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "edasearch:resp:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Expansion.BudgetAction == "" {
		c.Expansion.BudgetAction = "warn"
	}
	if c.Expansion.MaxTerms <= 0 {
		c.Expansion.MaxTerms = 5
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.CharsPadding <= 0 {
		c.Search.CharsPadding = 90
	}
	if c.Search.DefaultOperator == "" {
		c.Search.DefaultOperator = "and"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Engine.Addresses) == 0 {
		return fmt.Errorf("engine.addresses is required")
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Expansion.Enabled && c.Expansion.Model == "" {
		return fmt.Errorf("expansion.model is required when expansion is enabled")
	}
	if c.Expansion.DailyTokenLimit < 0 || c.Expansion.MonthlyTokenLimit < 0 {
		return fmt.Errorf("expansion token limits must not be negative")
	}
	switch c.Expansion.BudgetAction {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("expansion.budget_action must be \"warn\" or \"reject\", got %q", c.Expansion.BudgetAction)
	}
	switch strings.ToLower(c.Search.DefaultOperator) {
	case "and", "or":
		// ok
	default:
		return fmt.Errorf("search.default_operator must be \"and\" or \"or\", got %q", c.Search.DefaultOperator)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
