package config

import "time"

// Config is the root configuration structure for Warden.
// It contains every configuration section for the HTTP server, storage,
// policy loading, the decision engine, action executors, auditing,
// broadcasting, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Storage selects the backend for decisions and the audit log.
	Storage StorageConfig `yaml:"storage"`

	// Policy contains the optional policy threshold file and watch settings.
	Policy PolicyConfig `yaml:"policy"`

	// Engine contains decision engine settings.
	Engine EngineConfig `yaml:"engine"`

	// Executor selects and configures the action executor.
	Executor ExecutorConfig `yaml:"executor"`

	// Retry configures the scheduled retry of pending decisions.
	Retry RetryConfig `yaml:"retry"`

	// Audit contains audit log settings.
	Audit AuditConfig `yaml:"audit"`

	// Broadcast contains event broadcaster and WebSocket settings.
	Broadcast BroadcastConfig `yaml:"broadcast"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. WebSocket connections manage their own deadlines.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits JSON request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "PUT", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed in CORS requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// StorageConfig selects where decisions and audit entries live.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite is used when Backend is "sqlite".
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Driver is "sqlite3" (mattn/go-sqlite3, requires cgo) or "sqlite"
	// (modernc.org/sqlite, pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/warden.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PolicyConfig contains policy loading configuration.
type PolicyConfig struct {
	// FilePath is an optional YAML file of threshold overrides applied on top
	// of the seeded policies. Empty means seeds only.
	FilePath string `yaml:"file_path"`

	// Watch enables reloading FilePath when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file change events.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// EngineConfig contains decision engine configuration.
type EngineConfig struct {
	// ExecutorTimeout bounds a single action executor call.
	// Default: 5s
	ExecutorTimeout time.Duration `yaml:"executor_timeout"`

	// DedupCacheSize is the number of recent upstream event ids remembered
	// for duplicate suppression. Zero disables dedup.
	// Default: 10000
	DedupCacheSize int `yaml:"dedup_cache_size"`
}

// ExecutorConfig selects the action executor.
type ExecutorConfig struct {
	// Type is "log" or "webhook".
	// Default: "log"
	Type string `yaml:"type"`

	// Webhook is used when Type is "webhook".
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the webhook action executor.
type WebhookConfig struct {
	// URL receives a POST for every warn, mute and flag_for_review action.
	URL string `yaml:"url"`

	// Timeout is the per-attempt HTTP timeout.
	// Default: 3s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries for transient failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	// Defaults: 100ms and 1s
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`

	// Headers are added to every request (e.g. an authorization token).
	Headers map[string]string `yaml:"headers"`

	// Breaker configures the circuit breaker around the webhook.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Enabled wraps calls in a circuit breaker.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed while half-open.
	// Default: 1
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the closed-state counter reset period.
	// Default: 60s
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// ConsecutiveFailures trips the breaker.
	// Default: 5
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
}

// RetryConfig configures the scheduled retry sweep of pending decisions
// whose execution failed.
type RetryConfig struct {
	// Enabled turns the sweep on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression (robfig/cron syntax, descriptors allowed).
	// Default: "@every 30s"
	Schedule string `yaml:"schedule"`

	// MinAge skips decisions created more recently than this.
	// Default: 30s
	MinAge time.Duration `yaml:"min_age"`

	// BatchSize caps decisions retried per sweep.
	// Default: 50
	BatchSize int `yaml:"batch_size"`
}

// AuditConfig contains audit log configuration.
type AuditConfig struct {
	// AppendRetries is the number of retries for a failed storage append
	// before StorageUnavailable is surfaced.
	// Default: 3
	AppendRetries int `yaml:"append_retries"`

	// RetryInitialInterval and RetryMaxInterval bound the append backoff.
	// Defaults: 50ms and 1s
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`

	// DefaultLimit applies to queries without a limit.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps the page size of audit listings. Exports are not capped.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`

	// ExportPretty indents JSON exports.
	// Default: true
	ExportPretty bool `yaml:"export_pretty"`
}

// BroadcastConfig contains event broadcaster configuration.
type BroadcastConfig struct {
	// SubscriberBuffer is the bounded queue length per subscriber.
	// Default: 256
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// WriteWait is the WebSocket write deadline.
	// Default: 10s
	WriteWait time.Duration `yaml:"write_wait"`

	// PongWait is the time allowed to read the next pong.
	// Default: 60s
	PongWait time.Duration `yaml:"pong_wait"`

	// PingPeriod must be less than PongWait.
	// Default: 54s
	PingPeriod time.Duration `yaml:"ping_period"`

	// MaxMessageSize caps inbound client messages.
	// Default: 4096
	MaxMessageSize int64 `yaml:"max_message_size"`

	// AllowedOrigins restricts WebSocket upgrades. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactContent masks participant content and identifying values in
	// log attributes.
	// Default: true
	RedactContent bool `yaml:"redact_content"`

	// RedactPatterns contains additional redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// DurationBuckets defines histogram buckets (seconds) for evaluation and
	// HTTP durations.
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP/gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "warden"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
