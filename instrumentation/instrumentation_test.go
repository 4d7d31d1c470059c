package instrumentation

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
	if inst.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if inst.MeterProvider() == nil || inst.TracerProvider() == nil {
		t.Error("providers should never be nil")
	}
}

func TestNew_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "no exporters",
			config: Config{Enabled: true},
		},
		{
			name: "prometheus exporter",
			config: Config{
				Enabled:              true,
				MetricsExporter:      MetricsExporterPrometheus,
				PrometheusRegisterer: prometheus.NewRegistry(),
			},
		},
		{
			name: "otlp exporter",
			config: Config{
				Enabled:        true,
				TracesExporter: TracesExporterOTLP,
				OTLPEndpoint:   "localhost:4318",
				OTLPInsecure:   true,
			},
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{Enabled: true, MetricsExporter: "statsd"},
			wantErr: true,
		},
		{
			name:    "unknown traces exporter",
			config:  Config{Enabled: true, TracesExporter: "zipkin"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = inst.Shutdown(context.Background())
			}
		})
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestRegisterStorageSizeCallback(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	inst, err := New(Config{Enabled: true, MetricReader: reader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	if err := inst.RegisterStorageSizeCallback("grants", nil); err == nil {
		t.Error("expected error for nil callback")
	}

	if err := inst.RegisterStorageSizeCallback("grants", func() int64 { return 7 }); err != nil {
		t.Fatalf("RegisterStorageSizeCallback() error = %v", err)
	}

	if got := gaugeValue(t, reader, "storage.size"); got != 7 {
		t.Errorf("storage.size = %d, want 7", got)
	}
}

func TestRegisterStorageSizeCallback_Disabled(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.RegisterStorageSizeCallback("clients", func() int64 { return 1 }); err != nil {
		t.Errorf("RegisterStorageSizeCallback() on noop provider error = %v", err)
	}
}
