package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateExecutor(&cfg.Executor)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateBroadcast(&cfg.Broadcast)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	for field, d := range map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, FieldError{Field: field, Message: "timeout must be positive"})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	if cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "server.cors.allowed_origins",
					Message: "wildcard origin cannot be combined with allow_credentials",
				})
				break
			}
		}
	}

	return errs
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 || cfg.SQLite.MaxIdleConns < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite",
				Message: "connection pool sizes must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	return errs
}

// validatePolicy validates policy configuration.
func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.FilePath == "" {
		errs = append(errs, FieldError{
			Field:   "policy.watch",
			Message: "watch requires policy.file_path",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "debounce must be non-negative",
		})
	}

	return errs
}

// validateEngine validates decision engine configuration.
func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.ExecutorTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.executor_timeout",
			Message: "executor timeout must be positive",
		})
	}
	if cfg.DedupCacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.dedup_cache_size",
			Message: "dedup cache size must be non-negative",
		})
	}

	return errs
}

// validateExecutor validates action executor configuration.
func validateExecutor(cfg *ExecutorConfig) []FieldError {
	var errs []FieldError

	switch cfg.Type {
	case "log":
	case "webhook":
		if cfg.Webhook.URL == "" {
			errs = append(errs, FieldError{
				Field:   "executor.webhook.url",
				Message: "url is required for the webhook executor",
			})
		} else if u, err := url.Parse(cfg.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "executor.webhook.url",
				Message: fmt.Sprintf("invalid webhook url %q: must be an absolute http(s) URL", cfg.Webhook.URL),
			})
		}
		if cfg.Webhook.MaxRetries < 0 {
			errs = append(errs, FieldError{
				Field:   "executor.webhook.max_retries",
				Message: "max retries must be non-negative",
			})
		}
		if cfg.Webhook.RetryWaitMin > cfg.Webhook.RetryWaitMax {
			errs = append(errs, FieldError{
				Field:   "executor.webhook.retry_wait_min",
				Message: "retry_wait_min must not exceed retry_wait_max",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "executor.type",
			Message: fmt.Sprintf("invalid executor type %q: must be 'log' or 'webhook'", cfg.Type),
		})
	}

	return errs
}

// validateRetry validates the retry sweep configuration.
func validateRetry(cfg *RetryConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "retry.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.MinAge < 0 {
		errs = append(errs, FieldError{
			Field:   "retry.min_age",
			Message: "min age must be non-negative",
		})
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "retry.batch_size",
			Message: "batch size must be positive",
		})
	}

	return errs
}

// validateAudit validates audit configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.AppendRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.append_retries",
			Message: "append retries must be non-negative",
		})
	}
	if cfg.DefaultLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.default_limit",
			Message: "default limit must be positive",
		})
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		errs = append(errs, FieldError{
			Field:   "audit.max_limit",
			Message: fmt.Sprintf("max limit (%d) must be >= default limit (%d)", cfg.MaxLimit, cfg.DefaultLimit),
		})
	}

	return errs
}

// validateBroadcast validates broadcaster configuration.
func validateBroadcast(cfg *BroadcastConfig) []FieldError {
	var errs []FieldError

	if cfg.SubscriberBuffer <= 0 {
		errs = append(errs, FieldError{
			Field:   "broadcast.subscriber_buffer",
			Message: "subscriber buffer must be positive",
		})
	}
	if cfg.PingPeriod >= cfg.PongWait {
		errs = append(errs, FieldError{
			Field:   "broadcast.ping_period",
			Message: "ping period must be less than pong wait",
		})
	}
	if cfg.MaxMessageSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "broadcast.max_message_size",
			Message: "max message size must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		for field, path := range map[string]string{
			"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
			"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
			"telemetry.health.version_path":   cfg.Health.VersionPath,
		} {
			if !strings.HasPrefix(path, "/") {
				errs = append(errs, FieldError{Field: field, Message: "path must start with /"})
			}
		}
		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
		if cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout exceeds reasonable limit (60s)",
			})
		}
	}

	return errs
}
