// Package logger wraps zap with a process-wide singleton, context
// propagation helpers and the standard field vocabulary used across the
// service. Request-scoped loggers are injected by the HTTP middleware and
// retrieved with From(ctx).
package logger
