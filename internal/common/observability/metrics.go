package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OTel meter provider; its instruments are exported
// through the Prometheus registry served on /metrics.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	workflowCounter  otelmetric.Int64Counter
	workflowDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		otel.Handle(err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o := &Observability{meterProvider: provider, meter: provider.Meter(serviceName)}

	o.workflowCounter, _ = o.meter.Int64Counter(
		"workflows.completed",
		otelmetric.WithDescription("Automation workflows completed"),
	)
	o.workflowDuration, _ = o.meter.Float64Histogram(
		"workflows.duration",
		otelmetric.WithDescription("Automation workflow duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// RecordWorkflow counts one finished orchestrator run.
func (o *Observability) RecordWorkflow(ctx context.Context, workflow string, success bool, duration time.Duration) {
	if o == nil || o.workflowCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.Bool("success", success),
	)
	o.workflowCounter.Add(ctx, 1, attrs)
	o.workflowDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
