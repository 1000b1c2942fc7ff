package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "datautil", config.AppName)
	assert.Len(t, config.Exchanges, 5)

	bitmex, ok := config.Exchange("BitMEX")
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, bitmex.Interval())
	assert.Equal(t, 10*time.Second, bitmex.TimeoutDuration())
	assert.Equal(t, 0, bitmex.RetryPolicy.MaxAttempts)

	coinbase, _ := config.Exchange(ExchangeCoinbase)
	assert.Equal(t, 200*time.Millisecond, coinbase.Interval())

	assert.Equal(t, "native", config.Partition.Engine)
	assert.Equal(t, 16.0, config.Chart.Width)
	assert.Equal(t, 100, config.Chart.DPI)
	assert.Equal(t, "info", config.Logging.Level)
	assert.True(t, config.Metrics.Enabled)
}

func TestExchangeConfigHelpers(t *testing.T) {
	ex := ExchangeConfig{BaseURL: "https://main", TestnetURL: "https://test", RequestInterval: "bogus", Timeout: ""}
	assert.Equal(t, time.Duration(0), ex.Interval())
	assert.Equal(t, 10*time.Second, ex.TimeoutDuration())
	assert.Equal(t, "https://main", ex.Endpoint())

	ex.Testnet = true
	assert.Equal(t, "https://test", ex.Endpoint())
}

func TestConfigValidation(t *testing.T) {
	cm := NewConfigManager("", slog.Default())

	t.Run("valid config passes validation", func(t *testing.T) {
		assert.NoError(t, cm.validateConfig(DefaultConfig()))
	})

	t.Run("bad request interval fails", func(t *testing.T) {
		config := DefaultConfig()
		ex := config.Exchanges[ExchangeBybit]
		ex.RequestInterval = "soon"
		config.Exchanges[ExchangeBybit] = ex
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchanges.bybit.request_interval")
	})

	t.Run("negative retries fail", func(t *testing.T) {
		config := DefaultConfig()
		ex := config.Exchanges[ExchangeBitMEX]
		ex.RetryPolicy.MaxAttempts = -1
		ex.RetryPolicy.BackoffStrategy = "random"
		config.Exchanges[ExchangeBitMEX] = ex
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_attempts must be >= 0")
		assert.Contains(t, err.Error(), "backoff_strategy")
	})

	t.Run("unknown engine fails", func(t *testing.T) {
		config := DefaultConfig()
		config.Partition.Engine = "sqlite"
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "partition.engine")
	})

	t.Run("scheduler cron is checked only when enabled", func(t *testing.T) {
		config := DefaultConfig()
		config.Scheduler.Cron = "not a cron"
		assert.NoError(t, cm.validateConfig(config))

		config.Scheduler.Enabled = true
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler.cron")

		config.Scheduler.Cron = "@daily"
		assert.NoError(t, cm.validateConfig(config))
	})

	t.Run("multiple errors are collected", func(t *testing.T) {
		config := DefaultConfig()
		config.Logging.Level = "verbose"
		config.Logging.Format = "xml"
		config.Chart.DPI = 0
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.level")
		assert.Contains(t, err.Error(), "logging.format")
		assert.Contains(t, err.Error(), "chart.dpi")
	})

	t.Run("file output requires a path", func(t *testing.T) {
		config := DefaultConfig()
		config.Logging.Output = "file"
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.file_path")
	})
}

func TestLoadConfigFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	raw := map[string]interface{}{
		"logging":   map[string]interface{}{"level": "debug", "format": "json", "output": "stdout"},
		"partition": map[string]interface{}{"root_dir": "/data", "engine": "duckdb", "ignore_defect": true},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cm := NewConfigManager(path, nil).WithEnvFile("")
	config, err := cm.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "duckdb", config.Partition.Engine)
	assert.True(t, config.Partition.IgnoreDefect)
	// untouched sections keep defaults
	assert.Equal(t, 16.0, config.Chart.Width)
	assert.Same(t, config, cm.GetConfig())
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
exchanges:
  bybit:
    base_url: http://localhost:8080
    request_interval: 250ms
    timeout: 5s
    retry_policy:
      max_attempts: 2
      initial_delay: 1s
      max_delay: 4s
      backoff_strategy: exponential
scheduler:
  enabled: true
  cron: "0 5 * * *"
  symbols: [BTCUSD, ETHUSD]
  period: 5min
  lookback_days: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := NewConfigManager(path, nil).WithEnvFile("").LoadConfig()
	require.NoError(t, err)

	bybit, ok := config.Exchange(ExchangeBybit)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080", bybit.BaseURL)
	assert.Equal(t, 250*time.Millisecond, bybit.Interval())
	assert.Equal(t, 2, bybit.RetryPolicy.MaxAttempts)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, config.Scheduler.Symbols)
	assert.Equal(t, 2, config.Scheduler.LookbackDays)

	// other exchanges survive the partial map from the file
	_, ok = config.Exchange(ExchangeBitMEX)
	assert.True(t, ok)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := NewConfigManager(filepath.Join(t.TempDir(), "none.json"), nil).WithEnvFile("").LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Logging, config.Logging)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewConfigManager(path, nil).WithEnvFile("").LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATAUTIL_LOG_LEVEL", "warn")
	t.Setenv("DATAUTIL_CACHE_DIR", "/tmp/cache")
	t.Setenv("DATAUTIL_BITMEX_REQUEST_INTERVAL", "2s")
	t.Setenv("DATAUTIL_BYBIT_TESTNET", "true")
	t.Setenv("DATAUTIL_SCHEDULER_SYMBOLS", "BTCUSD,ETHUSD")

	config, err := NewConfigManager("", nil).WithEnvFile("").LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "/tmp/cache", config.Cache.Dir)
	assert.Equal(t, 2*time.Second, config.Exchanges[ExchangeBitMEX].Interval())
	assert.Equal(t, "https://api-testnet.bybit.com", config.Exchanges[ExchangeBybit].Endpoint())
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, config.Scheduler.Symbols)
}

func TestEnvironmentOverrideInvalidNumber(t *testing.T) {
	t.Setenv("DATAUTIL_SCHEDULER_LOOKBACK_DAYS", "three")

	_, err := NewConfigManager("", nil).WithEnvFile("").LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_LOOKBACK_DAYS")
}

func TestDotEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("DATAUTIL_BYBIT_API_KEY=key123\nDATAUTIL_BYBIT_API_SECRET=secret456\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("DATAUTIL_BYBIT_API_KEY")
		os.Unsetenv("DATAUTIL_BYBIT_API_SECRET")
	})

	config, err := NewConfigManager("", nil).WithEnvFile(envPath).LoadConfig()
	require.NoError(t, err)

	bybit := config.Exchanges[ExchangeBybit]
	assert.Equal(t, "key123", bybit.APIKey)
	assert.Equal(t, "secret456", bybit.APISecret)

	// secrets never leak through String()
	out := config.String()
	assert.NotContains(t, out, "key123")
	assert.NotContains(t, out, "secret456")
	assert.Contains(t, out, "[REDACTED]")
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	_, err := NewConfigManager("", nil).WithEnvFile(filepath.Join(t.TempDir(), "absent.env")).LoadConfig()
	assert.NoError(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cm := NewConfigManager(path, nil).WithEnvFile("")

			_, err := cm.LoadConfig()
			require.NoError(t, err)
			cm.GetConfig().Logging.Level = "error"
			require.NoError(t, cm.SaveConfig())

			reloaded, err := NewConfigManager(path, nil).WithEnvFile("").LoadConfig()
			require.NoError(t, err)
			assert.Equal(t, "error", reloaded.Logging.Level)
		})
	}
}

func TestSaveConfigWithoutPath(t *testing.T) {
	assert.Error(t, NewConfigManager("", nil).SaveConfig())
}
