package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every sequence metric.
const MeterName = "appforge"

// MetricsRecorder records sequence metrics.
// Use NewMetricsRecorder for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStepExecution records a step execution with its duration and error status.
	RecordStepExecution(ctx context.Context, kind, step string, duration time.Duration, err error)

	// RecordRun records a run completion.
	RecordRun(ctx context.Context, kind string, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, step string, sizeBytes int64)
}

type otelMetrics struct {
	stepExecutions metric.Int64Counter
	stepLatency    metric.Float64Histogram
	stepErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	checkpointSize metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(MeterName)

	stepExecutions, err := meter.Int64Counter("appforge.step.executions",
		metric.WithDescription("Number of step executions"),
	)
	if err != nil {
		return nil, err
	}

	stepLatency, err := meter.Float64Histogram("appforge.step.latency_ms",
		metric.WithDescription("Step execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter("appforge.step.errors",
		metric.WithDescription("Number of step execution errors"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("appforge.flow.runs",
		metric.WithDescription("Number of flow runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("appforge.flow.latency_ms",
		metric.WithDescription("Flow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("appforge.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		stepExecutions: stepExecutions,
		stepLatency:    stepLatency,
		stepErrors:     stepErrors,
		runs:           runs,
		runLatency:     runLatency,
		checkpointSize: checkpointSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails it returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordStepExecution(ctx context.Context, kind, step string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("flow.kind", kind),
		attribute.String("step", step),
	)

	m.stepExecutions.Add(ctx, 1, attrs)
	m.stepLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.stepErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRun(ctx context.Context, kind string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("flow.kind", kind),
		attribute.Bool("success", success),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, step string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("step", step),
	))
}
