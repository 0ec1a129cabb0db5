// Package observability provides logging, metrics, and tracing
// functionality for the restroom map API client.
//
// # Logging
//
// The Logger interface provides structured logging over zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("bathrooms fetched",
//	    observability.Int("count", 12),
//	)
//
// # Metrics
//
// Prometheus metrics for outgoing requests, retries, request
// deduplication and snapshot storage live on a private registry:
//
//	metrics := observability.NewMetrics("restroommap")
//	http.Handle("/metrics", metrics.Handler())
//
// All Metrics methods are safe to call on a nil receiver, which lets
// components treat metrics as optional.
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP/gRPC export:
//
//	tracer, err := observability.NewTracer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
package observability
