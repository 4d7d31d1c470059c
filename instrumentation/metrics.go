package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the identity store
type Metrics struct {
	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageSize              metric.Int64ObservableGauge
	GrantsSwept              metric.Int64Counter
	GrantsExpiredOnRead      metric.Int64Counter

	// Cache Metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// Security Metrics
	PasswordValidations metric.Int64Counter
	AuditEventsTotal    metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	storageMeter := inst.Meter("storage")
	cacheMeter := inst.Meter("cache")
	securityMeter := inst.Meter("security")

	m := &Metrics{}
	var err error

	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageSize, err = storageMeter.Int64ObservableGauge(
		"storage.size",
		metric.WithDescription("Number of records held by a store"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.size gauge: %w", err)
	}

	m.GrantsSwept, err = storageMeter.Int64Counter(
		"storage.grants.swept",
		metric.WithDescription("Number of expired grants reclaimed by the background sweep"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.grants.swept counter: %w", err)
	}

	m.GrantsExpiredOnRead, err = storageMeter.Int64Counter(
		"storage.grants.expired_on_read",
		metric.WithDescription("Number of expired grants purged by a read"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.grants.expired_on_read counter: %w", err)
	}

	m.CacheHits, err = cacheMeter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Number of cache lookups served from a live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.hits counter: %w", err)
	}

	m.CacheMisses, err = cacheMeter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Number of cache lookups that required a computation"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.misses counter: %w", err)
	}

	m.PasswordValidations, err = securityMeter.Int64Counter(
		"oauth.password.validations",
		metric.WithDescription("Number of resource owner password validations"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.password.validations counter: %w", err)
	}

	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"oauth.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	return m, nil
}

func attrStore(kind string) attribute.KeyValue {
	return attribute.String(AttrStorageType, kind)
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageResult, result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String(AttrStorageOperation, operation),
	))
}

// RecordGrantsSwept records grants reclaimed by a sweep
func (m *Metrics) RecordGrantsSwept(ctx context.Context, count int) {
	if count > 0 {
		m.GrantsSwept.Add(ctx, int64(count))
	}
}

// RecordGrantExpiredOnRead records an expired grant purged by a read path
func (m *Metrics) RecordGrantExpiredOnRead(ctx context.Context, grantType string) {
	m.GrantsExpiredOnRead.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
	))
}

// RecordCacheLookup records a cache hit or miss for the named cache
func (m *Metrics) RecordCacheLookup(ctx context.Context, cacheName string, hit bool) {
	attrs := metric.WithAttributes(attribute.String(AttrCacheName, cacheName))
	if hit {
		m.CacheHits.Add(ctx, 1, attrs)
		return
	}
	m.CacheMisses.Add(ctx, 1, attrs)
}

// RecordPasswordValidation records a password validation outcome ("success" or "failure")
func (m *Metrics) RecordPasswordValidation(ctx context.Context, result string) {
	m.PasswordValidations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrValidationResult, result),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuditEventType, eventType),
	))
}
