package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "identity-store"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	// instrumentationPrefix prefixes every meter and tracer scope name
	instrumentationPrefix = "github.com/giantswarm/identity-store/"
)

// Metric exporter names accepted by Config.MetricsExporter
const (
	MetricsExporterNone       = "none"
	MetricsExporterPrometheus = "prometheus"
)

// Trace exporter names accepted by Config.TracesExporter
const (
	TracesExporterNone = "none"
	TracesExporterOTLP = "otlp"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "identity-store", "my-idp")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used (zero overhead).
	Enabled bool

	// MetricsExporter selects the metric exporter: "prometheus" or "none" (default).
	MetricsExporter string

	// PrometheusRegisterer is where the Prometheus exporter registers its collector.
	// Default: prometheus.DefaultRegisterer
	PrometheusRegisterer prometheus.Registerer

	// MetricReader is an additional reader attached to the meter provider.
	// Useful for tests (sdkmetric.NewManualReader) or custom exporters.
	MetricReader sdkmetric.Reader

	// TracesExporter selects the trace exporter: "otlp" or "none" (default).
	TracesExporter string

	// OTLPEndpoint is the host:port of the OTLP HTTP trace collector.
	// Empty uses the exporter default (or OTEL_EXPORTER_OTLP_ENDPOINT).
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP exporter (development only).
	OTLPInsecure bool

	// Resource allows custom resource attributes.
	// If nil, a resource is created with service name and version.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	// Shutdown functions are registered during New() only.
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}
	if config.MetricsExporter == "" {
		config.MetricsExporter = MetricsExporterNone
	}
	if config.TracesExporter == "" {
		config.TracesExporter = TracesExporterNone
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		if err := inst.initializeProviders(); err != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// initializeProviders builds SDK meter and tracer providers with the configured exporters
func (i *Instrumentation) initializeProviders() error {
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(i.resource)}

	switch i.config.MetricsExporter {
	case MetricsExporterNone:
	case MetricsExporterPrometheus:
		registerer := i.config.PrometheusRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(exporter))
	default:
		return fmt.Errorf("unsupported metrics exporter %q", i.config.MetricsExporter)
	}

	if i.config.MetricReader != nil {
		meterOpts = append(meterOpts, sdkmetric.WithReader(i.config.MetricReader))
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(i.resource)}

	switch i.config.TracesExporter {
	case TracesExporterNone:
	case TracesExporterOTLP:
		var clientOpts []otlptracehttp.Option
		if i.config.OTLPEndpoint != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(i.config.OTLPEndpoint))
		}
		if i.config.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		// The exporter connects lazily; creation does not block on the collector.
		exporter, err := otlptracehttp.New(context.Background(), clientOpts...)
		if err != nil {
			return fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	default:
		return fmt.Errorf("unsupported traces exporter %q", i.config.TracesExporter)
	}

	mp := sdkmetric.NewMeterProvider(meterOpts...)
	tp := sdktrace.NewTracerProvider(traceOpts...)

	i.meterProvider = mp
	i.tracerProvider = tp
	i.shutdownFuncs = append(i.shutdownFuncs, mp.Shutdown, tp.Shutdown)

	return nil
}

// Shutdown flushes and stops all instrumentation providers.
// It is safe to call more than once; only the first call has an effect.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		var errs []error
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope.
// Scopes are layer names like "storage", "cache", "security".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(instrumentationPrefix + scope)
}

// Tracer returns a named tracer for the given scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(instrumentationPrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// StorageSizeCallback is a function that returns the current size of a storage component
type StorageSizeCallback func() int64

// RegisterStorageSizeCallback registers an observable gauge callback reporting the
// size of one store. kind is reported as the "store" attribute (e.g. "grants").
func (i *Instrumentation) RegisterStorageSizeCallback(kind string, size StorageSizeCallback) error {
	if size == nil {
		return fmt.Errorf("size callback cannot be nil")
	}

	meter := i.Meter("storage")
	_, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(i.metrics.StorageSize, size(), metric.WithAttributes(
				attrStore(kind),
			))
			return nil
		},
		i.metrics.StorageSize,
	)

	return err
}
