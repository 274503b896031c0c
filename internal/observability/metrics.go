package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OTel metric instruments for the orchestration client.
type Metrics struct {
	RunsStarted    metric.Int64Counter
	RunsFinished   metric.Int64Counter
	FramesSkipped  metric.Int64Counter
	ExtractDepth   metric.Int64Histogram
	RunDuration    metric.Float64Histogram
	RecordsPersist metric.Int64Counter
}

// NewMetrics creates the orchestration metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("orchestrate")

	runsStarted, err := meter.Int64Counter("orchestrate.runs.started",
		metric.WithDescription("Number of orchestration runs started"),
	)
	if err != nil {
		return nil, err
	}

	runsFinished, err := meter.Int64Counter("orchestrate.runs.finished",
		metric.WithDescription("Number of orchestration runs finished, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	framesSkipped, err := meter.Int64Counter("orchestrate.stream.frames_skipped",
		metric.WithDescription("Number of unparseable stream frames skipped"),
	)
	if err != nil {
		return nil, err
	}

	extractDepth, err := meter.Int64Histogram("orchestrate.normalize.strategy_depth",
		metric.WithDescription("Index of the extraction strategy that produced the result"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("orchestrate.runs.duration_seconds",
		metric.WithDescription("Wall time from start to terminal state"),
	)
	if err != nil {
		return nil, err
	}

	recordsPersist, err := meter.Int64Counter("orchestrate.persist.records",
		metric.WithDescription("Run records submitted to the install-data endpoint, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RunsStarted:    runsStarted,
		RunsFinished:   runsFinished,
		FramesSkipped:  framesSkipped,
		ExtractDepth:   extractDepth,
		RunDuration:    runDuration,
		RecordsPersist: recordsPersist,
	}, nil
}

// RecordRunStarted counts a run start.
func (m *Metrics) RecordRunStarted(ctx context.Context) {
	m.RunsStarted.Add(ctx, 1)
}

// RecordRunFinished counts a terminal run with its outcome and duration.
func (m *Metrics) RecordRunFinished(ctx context.Context, outcome string, d time.Duration) {
	m.RunsFinished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.RunDuration.Record(ctx, d.Seconds())
}

// RecordFrameSkipped counts a malformed frame.
func (m *Metrics) RecordFrameSkipped(ctx context.Context) {
	m.FramesSkipped.Add(ctx, 1)
}

// RecordExtractDepth records which strategy in the cascade matched.
func (m *Metrics) RecordExtractDepth(ctx context.Context, depth int) {
	m.ExtractDepth.Record(ctx, int64(depth))
}

// RecordPersist counts a persistence attempt by outcome.
func (m *Metrics) RecordPersist(ctx context.Context, outcome string) {
	m.RecordsPersist.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
