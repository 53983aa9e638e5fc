// Package executor provides Action Executor adapters for the decision
// engine.
//
// LogExecutor only logs. WebhookExecutor POSTs a JSON Payload to a
// configured URL with the decision id as Idempotency-Key, retries transient
// failures through go-retryablehttp and guards the endpoint with a
// gobreaker circuit breaker.
//
//	executor:
//	  type: webhook
//	  webhook:
//	    url: http://signaling.internal/moderation/actions
//	    timeout: 3s
//	    max_retries: 2
//	    breaker:
//	      enabled: true
//	      consecutive_failures: 5
package executor
