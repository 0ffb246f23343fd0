// Package observability provides structured logging and Prometheus metrics
// for the API.
//
// Loggers are zap based and pick up the chi request ID from the context.
// Metrics live in a private registry exposed on /metrics.
package observability
