// Package config loads, validates and holds Warden's configuration.
//
// Configuration comes from an optional YAML file decoded over DefaultConfig,
// then WARDEN_SECTION_FIELD environment variables, then Validate:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("warden.yaml")
//
// For example WARDEN_SERVER_LISTEN_ADDRESS overrides server.listen_address
// and WARDEN_STORAGE_BACKEND overrides storage.backend. Validation collects
// every problem into a ValidationError:
//
//	configuration validation failed with 2 errors:
//	  - storage.backend: invalid backend "postgres": must be 'memory' or 'sqlite'
//	  - executor.webhook.url: url is required for the webhook executor
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    driver: sqlite
//	    path: data/warden.db
//
//	policy:
//	  file_path: ./policies.yaml
//	  watch: true
//
//	executor:
//	  type: webhook
//	  webhook:
//	    url: https://rooms.internal/moderation/actions
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// The process-wide instance is managed with Initialize, GetConfig and
// ReloadConfig. Components receive their section explicitly; only cmd/warden
// touches the singleton.
package config
