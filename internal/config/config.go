// Package config provides centralized configuration management for the market-data utilities.
// Configuration is layered: built-in defaults, then a JSON or YAML file, then an optional
// .env file, then DATAUTIL_-prefixed environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "DATAUTIL_"

// Exchange names used as keys in AppConfig.Exchanges.
const (
	ExchangeBitMEX       = "bitmex"
	ExchangeBybit        = "bybit"
	ExchangeCoinbase     = "coinbase"
	ExchangeGMO          = "gmo"
	ExchangeBybitArchive = "bybit_archive"
)

// CronParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @daily.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	AppName    string `json:"app_name" yaml:"app_name"`
	Version    string `json:"version" yaml:"version"`
	ConfigPath string `json:"-" yaml:"-"`

	// Per-exchange endpoints, pacing and credentials
	Exchanges map[string]ExchangeConfig `json:"exchanges" yaml:"exchanges"`

	// Single-file fetch cache
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Directory-of-daily-files storage
	Partition PartitionConfig `json:"partition" yaml:"partition"`

	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Chart     ChartConfig     `json:"chart" yaml:"chart"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

// ExchangeConfig configures one exchange endpoint
type ExchangeConfig struct {
	BaseURL         string            `json:"base_url" yaml:"base_url"`
	TestnetURL      string            `json:"testnet_url,omitempty" yaml:"testnet_url,omitempty"`
	RequestInterval string            `json:"request_interval" yaml:"request_interval"` // Minimum spacing between requests
	Timeout         string            `json:"timeout" yaml:"timeout"`                   // HTTP request timeout
	RetryPolicy     RetryPolicyConfig `json:"retry_policy" yaml:"retry_policy"`
	APIKey          string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret       string            `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	Testnet         bool              `json:"testnet,omitempty" yaml:"testnet,omitempty"`
}

// Interval returns the parsed request spacing, zero when unset or invalid.
func (e ExchangeConfig) Interval() time.Duration {
	d, err := time.ParseDuration(e.RequestInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// TimeoutDuration returns the parsed HTTP timeout, 10s when unset or invalid.
func (e ExchangeConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Endpoint returns the testnet URL when enabled, otherwise the base URL.
func (e ExchangeConfig) Endpoint() string {
	if e.Testnet && e.TestnetURL != "" {
		return e.TestnetURL
	}
	return e.BaseURL
}

// RetryPolicyConfig configures retry behavior
type RetryPolicyConfig struct {
	MaxAttempts     int      `json:"max_attempts" yaml:"max_attempts"`         // Retries after the first call; 0 disables retry
	InitialDelay    string   `json:"initial_delay" yaml:"initial_delay"`       // Initial delay between retries
	MaxDelay        string   `json:"max_delay" yaml:"max_delay"`               // Maximum delay between retries
	BackoffStrategy string   `json:"backoff_strategy" yaml:"backoff_strategy"` // Backoff strategy: fixed, exponential, linear
	RetryableErrors []string `json:"retryable_errors" yaml:"retryable_errors"` // Extra error types treated as retryable
	Jitter          bool     `json:"jitter" yaml:"jitter"`                     // Add randomness to delays
}

// CacheConfig configures the single-file fetch cache
type CacheConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// PartitionConfig configures the daily partition layout
type PartitionConfig struct {
	RootDir      string `json:"root_dir" yaml:"root_dir"`
	IgnoreDefect bool   `json:"ignore_defect" yaml:"ignore_defect"`
	Engine       string `json:"engine" yaml:"engine"` // native, duckdb
}

// SchedulerConfig configures the cron-driven daily download
type SchedulerConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Cron         string   `json:"cron" yaml:"cron"`
	Exchange     string   `json:"exchange" yaml:"exchange"`
	Symbols      []string `json:"symbols" yaml:"symbols"`
	Period       string   `json:"period" yaml:"period"`
	LookbackDays int      `json:"lookback_days" yaml:"lookback_days"`
}

// ChartConfig holds chart defaults
type ChartConfig struct {
	Width   float64 `json:"width" yaml:"width"`   // inches
	Height  float64 `json:"height" yaml:"height"` // inches
	DPI     int     `json:"dpi" yaml:"dpi"`
	XFormat string  `json:"x_format" yaml:"x_format"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" yaml:"level"`             // Log level: debug, info, warn, error
	Format        string            `json:"format" yaml:"format"`           // Log format: json, text
	Output        string            `json:"output" yaml:"output"`           // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" yaml:"file_path"`     // Log file path
	MaxSize       int               `json:"max_size" yaml:"max_size"`       // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" yaml:"max_backups"` // Maximum log file backups
	MaxAge        int               `json:"max_age" yaml:"max_age"`         // Maximum log file age in days
	Compress      bool              `json:"compress" yaml:"compress"`       // Compress old log files
	ContextFields map[string]string `json:"context_fields" yaml:"context_fields"`
}

// MetricsConfig configures metrics collection
type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputPath string `json:"output_path" yaml:"output_path"` // Text exposition dump written on exit
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	config     *AppConfig
	configPath string
	envFile    string
	logger     *slog.Logger
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		envFile:    ".env",
		logger:     logger,
	}
}

// WithEnvFile sets the dotenv file read before environment overrides.
// An empty path disables dotenv loading.
func (cm *ConfigManager) WithEnvFile(path string) *ConfigManager {
	cm.envFile = path
	return cm
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables, including those from the dotenv file (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()
	config.ConfigPath = cm.configPath

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.config = config
	cm.logger.Debug("configuration loaded",
		"config_path", cm.configPath,
		"exchanges", len(config.Exchanges),
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		cm.logger.Debug("config file does not exist, using defaults", "path", cm.configPath)
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

func (cm *ConfigManager) loadEnvFile() error {
	if cm.envFile == "" {
		return nil
	}
	if err := godotenv.Load(cm.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	cm.logger.Debug("loaded env file", "path", cm.envFile)
	return nil
}

func envValue(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// loadFromEnv loads configuration from environment variables
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	var problems []string

	// Per-exchange overrides: DATAUTIL_<NAME>_BASE_URL etc.
	for name, ex := range config.Exchanges {
		prefix := strings.ToUpper(name) + "_"
		if val, ok := envValue(prefix + "BASE_URL"); ok {
			ex.BaseURL = val
		}
		if val, ok := envValue(prefix + "REQUEST_INTERVAL"); ok {
			ex.RequestInterval = val
		}
		if val, ok := envValue(prefix + "TIMEOUT"); ok {
			ex.Timeout = val
		}
		if val, ok := envValue(prefix + "API_KEY"); ok {
			ex.APIKey = val
		}
		if val, ok := envValue(prefix + "API_SECRET"); ok {
			ex.APISecret = val
		}
		if val, ok := envValue(prefix + "TESTNET"); ok {
			ex.Testnet = val == "true"
		}
		if val, ok := envValue(prefix + "RETRY_MAX_ATTEMPTS"); ok {
			if n, err := strconv.Atoi(val); err == nil {
				ex.RetryPolicy.MaxAttempts = n
			} else {
				problems = append(problems, fmt.Sprintf("%s%sRETRY_MAX_ATTEMPTS: %v", EnvPrefix, prefix, err))
			}
		}
		config.Exchanges[name] = ex
	}

	// Cache and partition config
	if val, ok := envValue("CACHE_DIR"); ok {
		config.Cache.Dir = val
	}
	if val, ok := envValue("CACHE_ENABLED"); ok {
		config.Cache.Enabled = val == "true"
	}
	if val, ok := envValue("PARTITION_DIR"); ok {
		config.Partition.RootDir = val
	}
	if val, ok := envValue("PARTITION_ENGINE"); ok {
		config.Partition.Engine = val
	}
	if val, ok := envValue("IGNORE_DEFECT"); ok {
		config.Partition.IgnoreDefect = val == "true"
	}

	// Scheduler config
	if val, ok := envValue("SCHEDULER_ENABLED"); ok {
		config.Scheduler.Enabled = val == "true"
	}
	if val, ok := envValue("SCHEDULER_CRON"); ok {
		config.Scheduler.Cron = val
	}
	if val, ok := envValue("SCHEDULER_SYMBOLS"); ok {
		config.Scheduler.Symbols = strings.Split(val, ",")
	}
	if val, ok := envValue("SCHEDULER_LOOKBACK_DAYS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			config.Scheduler.LookbackDays = n
		} else {
			problems = append(problems, fmt.Sprintf("%sSCHEDULER_LOOKBACK_DAYS: %v", EnvPrefix, err))
		}
	}

	// Logging config
	if val, ok := envValue("LOG_LEVEL"); ok {
		config.Logging.Level = val
	}
	if val, ok := envValue("LOG_FORMAT"); ok {
		config.Logging.Format = val
	}
	if val, ok := envValue("LOG_OUTPUT"); ok {
		config.Logging.Output = val
	}
	if val, ok := envValue("LOG_FILE_PATH"); ok {
		config.Logging.FilePath = val
	}

	// Metrics config
	if val, ok := envValue("METRICS_ENABLED"); ok {
		config.Metrics.Enabled = val == "true"
	}
	if val, ok := envValue("METRICS_OUT"); ok {
		config.Metrics.OutputPath = val
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment values:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errs []string

	names := make([]string, 0, len(config.Exchanges))
	for name := range config.Exchanges {
		names = append(names, name)
	}
	sort.Strings(names)

	validStrategies := map[string]bool{"": true, "fixed": true, "constant": true, "linear": true, "exponential": true}
	for _, name := range names {
		ex := config.Exchanges[name]
		if ex.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("exchanges.%s.base_url is required", name))
		}
		if ex.RequestInterval != "" {
			if d, err := time.ParseDuration(ex.RequestInterval); err != nil || d < 0 {
				errs = append(errs, fmt.Sprintf("exchanges.%s.request_interval is not a valid duration", name))
			}
		}
		if ex.Timeout != "" {
			if d, err := time.ParseDuration(ex.Timeout); err != nil || d <= 0 {
				errs = append(errs, fmt.Sprintf("exchanges.%s.timeout must be a positive duration", name))
			}
		}
		if ex.RetryPolicy.MaxAttempts < 0 {
			errs = append(errs, fmt.Sprintf("exchanges.%s.retry_policy.max_attempts must be >= 0", name))
		}
		if !validStrategies[ex.RetryPolicy.BackoffStrategy] {
			errs = append(errs, fmt.Sprintf("exchanges.%s.retry_policy.backoff_strategy must be one of: fixed, linear, exponential", name))
		}
	}

	validEngines := map[string]bool{"native": true, "duckdb": true}
	if !validEngines[config.Partition.Engine] {
		errs = append(errs, "partition.engine must be one of: native, duckdb")
	}

	if config.Scheduler.Enabled {
		if _, err := CronParser.Parse(config.Scheduler.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("scheduler.cron is not a valid expression: %v", err))
		}
		if len(config.Scheduler.Symbols) == 0 {
			errs = append(errs, "scheduler.symbols is required when scheduler is enabled")
		}
		if config.Scheduler.LookbackDays <= 0 {
			errs = append(errs, "scheduler.lookback_days must be greater than 0")
		}
	}

	if config.Chart.Width <= 0 || config.Chart.Height <= 0 {
		errs = append(errs, "chart.width and chart.height must be greater than 0")
	}
	if config.Chart.DPI <= 0 {
		errs = append(errs, "chart.dpi must be greater than 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errs = append(errs, "logging.file_path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *AppConfig {
	return cm.config
}

// SaveConfig saves the current configuration to the config file, as YAML
// when the path ends in .yaml or .yml and JSON otherwise.
func (cm *ConfigManager) SaveConfig() error {
	if cm.configPath == "" {
		return fmt.Errorf("no config path specified")
	}
	if cm.config == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if err := os.MkdirAll(filepath.Dir(cm.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cm.config)
	default:
		data, err = json.MarshalIndent(cm.config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("configuration saved", "path", cm.configPath)
	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	noRetry := RetryPolicyConfig{
		MaxAttempts:     0,
		InitialDelay:    "2s",
		MaxDelay:        "30s",
		BackoffStrategy: "fixed",
	}

	return &AppConfig{
		AppName: "datautil",
		Version: "1.0.0",
		Exchanges: map[string]ExchangeConfig{
			ExchangeBitMEX: {
				BaseURL:         "https://www.bitmex.com",
				RequestInterval: "500ms",
				Timeout:         "10s",
				RetryPolicy:     noRetry,
			},
			ExchangeBybit: {
				BaseURL:         "https://api.bybit.com",
				TestnetURL:      "https://api-testnet.bybit.com",
				RequestInterval: "1s",
				Timeout:         "10s",
				RetryPolicy:     noRetry,
			},
			ExchangeCoinbase: {
				BaseURL:         "https://api.pro.coinbase.com",
				RequestInterval: "200ms",
				Timeout:         "10s",
				RetryPolicy:     noRetry,
			},
			ExchangeGMO: {
				BaseURL:         "https://api.coin.z.com",
				RequestInterval: "1s",
				Timeout:         "30s",
				RetryPolicy:     noRetry,
			},
			ExchangeBybitArchive: {
				BaseURL:         "https://public.bybit.com",
				RequestInterval: "1s",
				Timeout:         "30s",
				RetryPolicy:     noRetry,
			},
		},
		Cache: CacheConfig{
			Dir:     ".",
			Enabled: true,
		},
		Partition: PartitionConfig{
			RootDir:      ".",
			IgnoreDefect: false,
			Engine:       "native",
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			Cron:         "0 10 0 * * *",
			Exchange:     ExchangeBybitArchive,
			Symbols:      []string{"BTCUSD"},
			Period:       "1min",
			LookbackDays: 3,
		},
		Chart: ChartConfig{
			Width:   16,
			Height:  12,
			DPI:     100,
			XFormat: "%y/%m/%d %H:%M:%S",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "datautil",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Exchange returns the configuration for the named exchange.
func (c *AppConfig) Exchange(name string) (ExchangeConfig, bool) {
	ex, ok := c.Exchanges[strings.ToLower(name)]
	return ex, ok
}

// GetLoggingConfig returns logging-specific configuration
func (c *AppConfig) GetLoggingConfig() LoggingConfig {
	return c.Logging
}

// String returns a string representation of the configuration (excluding sensitive data)
func (c *AppConfig) String() string {
	sanitized := *c
	sanitized.Exchanges = make(map[string]ExchangeConfig, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		if ex.APIKey != "" {
			ex.APIKey = "[REDACTED]"
		}
		if ex.APISecret != "" {
			ex.APISecret = "[REDACTED]"
		}
		sanitized.Exchanges[name] = ex
	}

	data, _ := json.MarshalIndent(&sanitized, "", "  ")
	return string(data)
}
