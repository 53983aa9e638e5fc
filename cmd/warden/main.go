// Warden is a moderation decision engine for live rooms.
//
// It turns classified content events into moderation decisions using
// per-category confidence thresholds, executes the resulting actions,
// records every step in an append-only audit log, and streams decisions
// and audit entries to dashboards over WebSocket.
//
// Usage:
//
//	# Start the API server with defaults (in-memory storage)
//	warden run
//
//	# Start with a configuration file
//	warden run --config /etc/warden/config.yaml
//
//	# Query the audit log of a SQLite deployment
//	warden audit query --decision dec-0123456789ab
//
//	# Export audit entries as CSV
//	warden audit export --format csv --output audit.csv
//
//	# Check a policy threshold file
//	warden policy validate --file policies.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
