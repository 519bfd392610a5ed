// Package otel records verdict engine activity into OpenTelemetry
// metrics and spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ParseObservation describes one parse attempt.
type ParseObservation struct {
	RuleID    string
	Success   bool
	ErrorCode string
	Duration  time.Duration
}

// EvalObservation describes one evaluation attempt.
type EvalObservation struct {
	RuleID    string
	Success   bool
	Result    bool
	ErrorCode string
	Duration  time.Duration
}

// EngineObserver records parse and evaluation signals into OpenTelemetry.
// A nil observer is valid and records nothing.
type EngineObserver struct {
	tracer trace.Tracer

	parses        metric.Int64Counter
	parseFailures metric.Int64Counter
	parseLatency  metric.Float64Histogram
	evals         metric.Int64Counter
	evalFailures  metric.Int64Counter
	evalLatency   metric.Float64Histogram
}

// NewEngineObserver creates an observer bound to the provided meter/tracer.
func NewEngineObserver(meter metric.Meter, tracer trace.Tracer) (*EngineObserver, error) {
	parses, err := meter.Int64Counter(
		"verdict.parse.total",
		metric.WithDescription("Number of rule parse attempts"),
	)
	if err != nil {
		return nil, err
	}
	parseFailures, err := meter.Int64Counter(
		"verdict.parse.failures",
		metric.WithDescription("Number of failed rule parses"),
	)
	if err != nil {
		return nil, err
	}
	parseLatency, err := meter.Float64Histogram(
		"verdict.parse.duration",
		metric.WithDescription("Rule parse duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	evals, err := meter.Int64Counter(
		"verdict.eval.total",
		metric.WithDescription("Number of rule evaluations"),
	)
	if err != nil {
		return nil, err
	}
	evalFailures, err := meter.Int64Counter(
		"verdict.eval.failures",
		metric.WithDescription("Number of failed rule evaluations"),
	)
	if err != nil {
		return nil, err
	}
	evalLatency, err := meter.Float64Histogram(
		"verdict.eval.duration",
		metric.WithDescription("Rule evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineObserver{
		tracer:        tracer,
		parses:        parses,
		parseFailures: parseFailures,
		parseLatency:  parseLatency,
		evals:         evals,
		evalFailures:  evalFailures,
		evalLatency:   evalLatency,
	}, nil
}

// ObserveParse records one parse attempt.
func (o *EngineObserver) ObserveParse(obs ParseObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", obs.Success),
	}
	if obs.RuleID != "" {
		attrs = append(attrs, attribute.String("rule_id", obs.RuleID))
	}
	if obs.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", obs.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.parses.Add(ctx, 1, options)
	if !obs.Success {
		o.parseFailures.Add(ctx, 1, options)
	}
	o.parseLatency.Record(ctx, obs.Duration.Seconds(), options)

	o.emitSpan(ctx, "verdict.parse", attrs, obs.Success, obs.ErrorCode)
}

// ObserveEval records one evaluation attempt.
func (o *EngineObserver) ObserveEval(obs EvalObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", obs.Success),
	}
	if obs.Success {
		attrs = append(attrs, attribute.Bool("result", obs.Result))
	}
	if obs.RuleID != "" {
		attrs = append(attrs, attribute.String("rule_id", obs.RuleID))
	}
	if obs.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", obs.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.evals.Add(ctx, 1, options)
	if !obs.Success {
		o.evalFailures.Add(ctx, 1, options)
	}
	o.evalLatency.Record(ctx, obs.Duration.Seconds(), options)

	o.emitSpan(ctx, "verdict.evaluate", attrs, obs.Success, obs.ErrorCode)
}

func (o *EngineObserver) emitSpan(ctx context.Context, name string, attrs []attribute.KeyValue, success bool, errorCode string) {
	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, errorCode)
	}
	span.End()
}
