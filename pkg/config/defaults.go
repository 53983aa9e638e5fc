package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = 1048576 // 1MB

	// CORS defaults
	DefaultCORSMaxAge = 3600 // 1 hour

	// Storage defaults
	DefaultStorageBackend      = "memory"
	DefaultSQLiteDriver        = "sqlite3"
	DefaultSQLitePath          = "data/warden.db"
	DefaultSQLiteMaxOpenConns  = 10
	DefaultSQLiteMaxIdleConns  = 5
	DefaultSQLiteBusyTimeout   = 5 * time.Second
	DefaultPolicyWatchDebounce = 100 * time.Millisecond

	// Engine defaults
	DefaultExecutorTimeout = 5 * time.Second
	DefaultDedupCacheSize  = 10000

	// Executor defaults
	DefaultExecutorType               = "log"
	DefaultWebhookTimeout             = 3 * time.Second
	DefaultWebhookMaxRetries          = 2
	DefaultWebhookRetryWaitMin        = 100 * time.Millisecond
	DefaultWebhookRetryWaitMax        = time.Second
	DefaultBreakerMaxRequests         = uint32(1)
	DefaultBreakerInterval            = 60 * time.Second
	DefaultBreakerTimeout             = 30 * time.Second
	DefaultBreakerConsecutiveFailures = uint32(5)

	// Retry sweep defaults
	DefaultRetrySchedule  = "@every 30s"
	DefaultRetryMinAge    = 30 * time.Second
	DefaultRetryBatchSize = 50

	// Audit defaults
	DefaultAuditAppendRetries        = 3
	DefaultAuditRetryInitialInterval = 50 * time.Millisecond
	DefaultAuditRetryMaxInterval     = time.Second
	DefaultAuditDefaultLimit         = 100
	DefaultAuditMaxLimit             = 10000

	// Broadcast defaults
	DefaultSubscriberBuffer = 256
	DefaultWriteWait        = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = (DefaultPongWait * 9) / 10
	DefaultMaxMessageSize   = 4096

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "warden"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingService     = "warden"
	DefaultOTLPTimeout        = 10 * time.Second
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultConfig returns a configuration with every default applied,
// including boolean fields that default to true. LoadConfig decodes YAML on
// top of it so an explicit "false" in the file is preserved.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = true
	cfg.Storage.SQLite.WALMode = true
	cfg.Executor.Webhook.Breaker.Enabled = true
	cfg.Retry.Enabled = true
	cfg.Audit.ExportPretty = true
	cfg.Telemetry.Logging.RedactContent = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.OTLP.Insecure = true
	cfg.Telemetry.Health.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any non-boolean fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	sqlite := &cfg.Storage.SQLite
	if sqlite.Driver == "" {
		sqlite.Driver = DefaultSQLiteDriver
	}
	if sqlite.Path == "" {
		sqlite.Path = DefaultSQLitePath
	}
	if sqlite.MaxOpenConns == 0 {
		sqlite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if sqlite.MaxIdleConns == 0 {
		sqlite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if sqlite.BusyTimeout == 0 {
		sqlite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Policy defaults
	if cfg.Policy.Debounce == 0 {
		cfg.Policy.Debounce = DefaultPolicyWatchDebounce
	}

	// Engine defaults
	if cfg.Engine.ExecutorTimeout == 0 {
		cfg.Engine.ExecutorTimeout = DefaultExecutorTimeout
	}
	if cfg.Engine.DedupCacheSize == 0 {
		cfg.Engine.DedupCacheSize = DefaultDedupCacheSize
	}

	applyExecutorDefaults(&cfg.Executor)

	// Retry defaults
	if cfg.Retry.Schedule == "" {
		cfg.Retry.Schedule = DefaultRetrySchedule
	}
	if cfg.Retry.MinAge == 0 {
		cfg.Retry.MinAge = DefaultRetryMinAge
	}
	if cfg.Retry.BatchSize == 0 {
		cfg.Retry.BatchSize = DefaultRetryBatchSize
	}

	// Audit defaults
	if cfg.Audit.AppendRetries == 0 {
		cfg.Audit.AppendRetries = DefaultAuditAppendRetries
	}
	if cfg.Audit.RetryInitialInterval == 0 {
		cfg.Audit.RetryInitialInterval = DefaultAuditRetryInitialInterval
	}
	if cfg.Audit.RetryMaxInterval == 0 {
		cfg.Audit.RetryMaxInterval = DefaultAuditRetryMaxInterval
	}
	if cfg.Audit.DefaultLimit == 0 {
		cfg.Audit.DefaultLimit = DefaultAuditDefaultLimit
	}
	if cfg.Audit.MaxLimit == 0 {
		cfg.Audit.MaxLimit = DefaultAuditMaxLimit
	}

	// Broadcast defaults
	b := &cfg.Broadcast
	if b.SubscriberBuffer == 0 {
		b.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if b.WriteWait == 0 {
		b.WriteWait = DefaultWriteWait
	}
	if b.PongWait == 0 {
		b.PongWait = DefaultPongWait
	}
	if b.PingPeriod == 0 {
		b.PingPeriod = (b.PongWait * 9) / 10
	}
	if b.MaxMessageSize == 0 {
		b.MaxMessageSize = DefaultMaxMessageSize
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	cors := &s.CORS
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

func applyExecutorDefaults(e *ExecutorConfig) {
	if e.Type == "" {
		e.Type = DefaultExecutorType
	}
	w := &e.Webhook
	if w.Timeout == 0 {
		w.Timeout = DefaultWebhookTimeout
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = DefaultWebhookMaxRetries
	}
	if w.RetryWaitMin == 0 {
		w.RetryWaitMin = DefaultWebhookRetryWaitMin
	}
	if w.RetryWaitMax == 0 {
		w.RetryWaitMax = DefaultWebhookRetryWaitMax
	}
	br := &w.Breaker
	if br.MaxRequests == 0 {
		br.MaxRequests = DefaultBreakerMaxRequests
	}
	if br.Interval == 0 {
		br.Interval = DefaultBreakerInterval
	}
	if br.Timeout == 0 {
		br.Timeout = DefaultBreakerTimeout
	}
	if br.ConsecutiveFailures == 0 {
		br.ConsecutiveFailures = DefaultBreakerConsecutiveFailures
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingService
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
