// Package middleware provides the HTTP middleware chain of the warden API:
// request ids, access logging with request metrics, and panic recovery.
//
// Typical order, outermost first:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.Recovery)
//	r.Use(middleware.Logging(collector))
package middleware
