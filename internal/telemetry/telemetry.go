// Package telemetry provides OpenTelemetry instrumentation for ec2launch.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/yairfalse/ec2launch/internal/config"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// userAgent identifies OTLP exports from this tool.
const userAgent = "ec2launch-otlp"

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Set when a pushgateway is configured.
	registry *prometheus.Registry
	push     config.PushgatewayConfig

	labels []attribute.KeyValue

	// Metrics
	launchDuration    metric.Float64Histogram
	instancesLaunched metric.Int64Counter
	waitDuration      metric.Float64Histogram
	pollCycles        metric.Int64Histogram
	waitOutcomes      metric.Int64Counter
	providerErrors    metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, pushCfg config.PushgatewayConfig) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{push: pushCfg}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("ec2launch")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	if p.push.Pushgateway != "" {
		p.registry = prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("ec2launch")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.launchDuration, err = p.meter.Float64Histogram(
		"ec2launch_launch_duration_seconds",
		metric.WithDescription("Duration of launch submissions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create launch_duration: %w", err)
	}

	p.instancesLaunched, err = p.meter.Int64Counter(
		"ec2launch_instances_launched_total",
		metric.WithDescription("Total instances created"),
	)
	if err != nil {
		return fmt.Errorf("create instances_launched: %w", err)
	}

	p.waitDuration, err = p.meter.Float64Histogram(
		"ec2launch_wait_duration_seconds",
		metric.WithDescription("Time spent waiting for instances to leave pending"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create wait_duration: %w", err)
	}

	p.pollCycles, err = p.meter.Int64Histogram(
		"ec2launch_poll_cycles",
		metric.WithDescription("Describe cycles per wait"),
	)
	if err != nil {
		return fmt.Errorf("create poll_cycles: %w", err)
	}

	p.waitOutcomes, err = p.meter.Int64Counter(
		"ec2launch_wait_outcomes_total",
		metric.WithDescription("Completed waits by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create wait_outcomes: %w", err)
	}

	p.providerErrors, err = p.meter.Int64Counter(
		"ec2launch_provider_errors_total",
		metric.WithDescription("Total failed provider calls"),
	)
	if err != nil {
		return fmt.Errorf("create provider_errors: %w", err)
	}

	return nil
}

// SetLabels sets the provider and region attached to every measurement.
// Call it before recording.
func (p *Provider) SetLabels(provider, region string) {
	p.labels = []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("region", region),
	}
}

func (p *Provider) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(p.labels)+len(extra))
	all = append(all, p.labels...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordLaunch records a successful submission.
func (p *Provider) RecordLaunch(ctx context.Context, count int, d time.Duration) {
	p.launchDuration.Record(ctx, d.Seconds(), p.attrs())
	p.instancesLaunched.Add(ctx, int64(count), p.attrs())
}

// RecordWait records a finished wait.
func (p *Provider) RecordWait(ctx context.Context, outcome instance.Outcome, cycles int, d time.Duration) {
	p.waitDuration.Record(ctx, d.Seconds(), p.attrs())
	p.pollCycles.Record(ctx, int64(cycles), p.attrs())
	p.waitOutcomes.Add(ctx, 1, p.attrs(attribute.String("outcome", string(outcome))))
}

// RecordProviderError records a failed provider call.
func (p *Provider) RecordProviderError(ctx context.Context, op, code string) {
	p.providerErrors.Add(ctx, 1, p.attrs(
		attribute.String("op", op),
		attribute.String("code", code),
	))
}

// Gatherer returns the registry pushed to the pushgateway, or nil when
// none is configured.
func (p *Provider) Gatherer() prometheus.Gatherer {
	if p.registry == nil {
		return nil
	}
	return p.registry
}

// Push sends the current metrics to the pushgateway. It is a no-op when
// none is configured.
func (p *Provider) Push(ctx context.Context) error {
	if p.registry == nil {
		return nil
	}
	err := push.New(p.push.Pushgateway, p.push.Job).
		Gatherer(p.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
