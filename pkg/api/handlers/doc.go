// Package handlers implements the warden HTTP API.
//
// Each handler owns one resource and registers its routes on a chi router:
//
//	r.Route("/api/v1/moderation", moderationHandler.Routes)
//	r.Route("/api/v1/policies", policyHandler.Routes)
//	r.Route("/api/v1/audit", auditHandler.Routes)
//	r.Method(http.MethodGet, "/api/v1/ws", streamHandler)
//
// Errors are returned as {"error":{"code":...,"message":...}}. HandleError
// maps the moderation error taxonomy to status codes: validation failures
// are 400, missing records 404, illegal review transitions 409, executor
// failures 502 (with the pending decision in the body) and storage outages
// 503.
package handlers
