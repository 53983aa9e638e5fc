package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "WARDEN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values from the file are decoded on top of DefaultConfig, then the
// configuration is validated. An empty path yields the defaults.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention WARDEN_SECTION_FIELD (e.g., WARDEN_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file over the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	envList("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envBool("STORAGE_SQLITE_WAL_MODE", &cfg.Storage.SQLite.WALMode)
	envDuration("STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	// Policy overrides
	envString("POLICY_FILE_PATH", &cfg.Policy.FilePath)
	envBool("POLICY_WATCH", &cfg.Policy.Watch)
	envDuration("POLICY_DEBOUNCE", &cfg.Policy.Debounce)

	// Engine overrides
	envDuration("ENGINE_EXECUTOR_TIMEOUT", &cfg.Engine.ExecutorTimeout)
	envInt("ENGINE_DEDUP_CACHE_SIZE", &cfg.Engine.DedupCacheSize)

	// Executor overrides
	envString("EXECUTOR_TYPE", &cfg.Executor.Type)
	envString("EXECUTOR_WEBHOOK_URL", &cfg.Executor.Webhook.URL)
	envDuration("EXECUTOR_WEBHOOK_TIMEOUT", &cfg.Executor.Webhook.Timeout)
	envInt("EXECUTOR_WEBHOOK_MAX_RETRIES", &cfg.Executor.Webhook.MaxRetries)
	envBool("EXECUTOR_WEBHOOK_BREAKER_ENABLED", &cfg.Executor.Webhook.Breaker.Enabled)

	// Retry overrides
	envBool("RETRY_ENABLED", &cfg.Retry.Enabled)
	envString("RETRY_SCHEDULE", &cfg.Retry.Schedule)
	envDuration("RETRY_MIN_AGE", &cfg.Retry.MinAge)
	envInt("RETRY_BATCH_SIZE", &cfg.Retry.BatchSize)

	// Audit overrides
	envInt("AUDIT_APPEND_RETRIES", &cfg.Audit.AppendRetries)
	envInt("AUDIT_DEFAULT_LIMIT", &cfg.Audit.DefaultLimit)
	envInt("AUDIT_MAX_LIMIT", &cfg.Audit.MaxLimit)
	envBool("AUDIT_EXPORT_PRETTY", &cfg.Audit.ExportPretty)

	// Broadcast overrides
	envInt("BROADCAST_SUBSCRIBER_BUFFER", &cfg.Broadcast.SubscriberBuffer)
	envList("BROADCAST_ALLOWED_ORIGINS", &cfg.Broadcast.AllowedOrigins)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_CONTENT", &cfg.Telemetry.Logging.RedactContent)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func lookupEnv(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func envString(key string, dst *string) {
	if val, ok := lookupEnv(key); ok {
		*dst = val
	}
}

func envList(key string, dst *[]string) {
	val, ok := lookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func envBool(key string, dst *bool) {
	val, ok := lookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("ignoring invalid boolean environment override", "key", EnvPrefix+key, "value", val)
		return
	}
	*dst = b
}

func envInt(key string, dst *int) {
	val, ok := lookupEnv(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring invalid integer environment override", "key", EnvPrefix+key, "value", val)
		return
	}
	*dst = i
}

func envFloat(key string, dst *float64) {
	val, ok := lookupEnv(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("ignoring invalid float environment override", "key", EnvPrefix+key, "value", val)
		return
	}
	*dst = f
}

func envDuration(key string, dst *time.Duration) {
	val, ok := lookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("ignoring invalid duration environment override", "key", EnvPrefix+key, "value", val)
		return
	}
	*dst = d
}
