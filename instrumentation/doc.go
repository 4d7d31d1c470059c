// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the identity store.
//
// Every store, the cache and the password validator accept an *Instrumentation
// and record metrics and spans through it. A nil instrumentation (or one created
// with Enabled: false) uses no-op providers, so callers never need to guard.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:     "my-idp",
//		ServiceVersion:  "1.0.0",
//		Enabled:         true,
//		MetricsExporter: "prometheus",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	// Expose /metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
//
// # Traces
//
// Set TracesExporter to "otlp" to ship spans to an OTLP HTTP collector.
// OTLPEndpoint overrides OTEL_EXPORTER_OTLP_ENDPOINT.
//
// # Available Metrics
//
// Storage:
//   - storage.operation.total{operation, result} - Storage operations
//   - storage.operation.duration{operation} - Operation duration in milliseconds
//   - storage.size{storage.type} - Records held by each store
//   - storage.grants.swept - Expired grants reclaimed by the background sweep
//   - storage.grants.expired_on_read{grant_type} - Expired grants purged by reads
//
// Cache:
//   - cache.hits{cache.name} - Lookups served from a live entry
//   - cache.misses{cache.name} - Lookups that ran the compute function
//
// Security:
//   - oauth.password.validations{result} - Password validations
//   - oauth.audit.events.total{event_type} - Audit events
//
// # Security
//
// Grant keys, grant payloads, passwords and client secrets are never recorded.
// Subjects appear in logs only as truncated SHA-256 hashes.
package instrumentation
