// Package observability provides the turn-processing pipeline's metrics
// and structured-logging support.
//
// Metrics are Prometheus counters/histograms (Metrics, NewMetrics) covering
// tool execution, search mode, and tool-loop round counts. Logging is a
// slog wrapper (Logger, NewLogger) with context-correlated request/session
// ids and a compiled-regex redaction pass (DefaultRedactPatterns) that the
// Audited Tool Client's output scrubber also builds on.
//
// Example:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	logger.Info(ctx, "turn processed", "session_key", sessionKey)
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolExecution("web_search", "ok", elapsed.Seconds())
package observability
