package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

const meterName = "aviation-mailbot"

// Metrics records request, intake and escalation counters. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	requests       metric.Int64Counter
	errors         metric.Int64Counter
	duration       metric.Float64Histogram
	intake         metric.Int64Counter
	ticketsCreated metric.Int64Counter
	escalations    metric.Int64Counter
}

// NewMetrics registers instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.requests, err = meter.Int64Counter("mailbot.http.requests",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("mailbot.http.errors",
		metric.WithDescription("HTTP requests that ended in an error response"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("mailbot.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.intake, err = meter.Int64Counter("mailbot.intake.messages",
		metric.WithDescription("Inbound messages by intake outcome"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, err
	}
	if m.ticketsCreated, err = meter.Int64Counter("mailbot.tickets.created",
		metric.WithDescription("Tickets created by category and priority"),
		metric.WithUnit("{ticket}"),
	); err != nil {
		return nil, err
	}
	if m.escalations, err = meter.Int64Counter("mailbot.escalation.steps",
		metric.WithDescription("Escalation step executions by channel and outcome"),
		metric.WithUnit("{step}"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMetricsFromGlobal uses whatever meter provider is installed globally.
func NewMetricsFromGlobal() (*Metrics, error) {
	return NewMetrics(otel.Meter(meterName))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", path),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	m.requests.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("http.route", path),
		attribute.String("http.method", method),
		attribute.String("error.code", code),
	))
}

// RecordIntake counts a message outcome: processed, skipped or failed.
func (m *Metrics) RecordIntake(ctx context.Context, mailbox, outcome string) {
	if m == nil {
		return
	}
	m.intake.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mailbox", mailbox),
		attribute.String("outcome", outcome),
	))
}

// RecordTicketCreated counts a new ticket.
func (m *Metrics) RecordTicketCreated(ctx context.Context, category domain.Category, priority domain.Priority) {
	if m == nil {
		return
	}
	m.ticketsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("priority", string(priority)),
	))
}

// RecordEscalation counts one step execution.
func (m *Metrics) RecordEscalation(ctx context.Context, channel domain.Channel, status domain.StepStatus) {
	if m == nil {
		return
	}
	m.escalations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", string(channel)),
		attribute.String("status", string(status)),
	))
}

// NewMeterProvider installs the global meter provider. With an endpoint
// configured, metrics are pushed over OTLP gRPC on a periodic reader;
// otherwise the provider has no reader and nothing leaves the process.
func NewMeterProvider(ctx context.Context, app config.AppConfig, cfg config.TelemetryConfig) (*sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(app.Name),
			semconv.ServiceVersion(app.Version),
			semconv.DeploymentEnvironment(app.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Endpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		interval := time.Duration(cfg.ExportIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider, nil
}
