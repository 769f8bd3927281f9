package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*InstrumentedUnit)(nil)

// InstrumentedUnit wraps a Unit with a span, latency and outcome metrics,
// and structured logging of the failures the unit reported. It follows the
// decorator pattern and never alters the State produced by the wrapped unit.
type InstrumentedUnit struct {
	next    ports.Unit
	metrics ports.MetricsCollector
}

// NewInstrumentedUnit wraps next. A nil metrics collector disables metrics
// but keeps tracing and logging.
func NewInstrumentedUnit(next ports.Unit, metrics ports.MetricsCollector) *InstrumentedUnit {
	if next == nil {
		panic("instrumented unit: next unit is required")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &InstrumentedUnit{next: next, metrics: metrics}
}

// Name returns the name of the wrapped unit so failures and labels stay
// attributed to the configured unit id.
func (iu *InstrumentedUnit) Name() string { return iu.next.Name() }

// Validate delegates to the wrapped unit.
func (iu *InstrumentedUnit) Validate() error { return iu.next.Validate() }

// Unwrap returns the wrapped unit.
func (iu *InstrumentedUnit) Unwrap() ports.Unit { return iu.next }

// Execute runs the wrapped unit inside a span and records what changed.
func (iu *InstrumentedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	name := iu.next.Name()
	labels := map[string]string{"unit": name}

	ctx, span := otel.Tracer("unit-instrumentation").Start(ctx, "Unit.Execute",
		trace.WithAttributes(
			attribute.String("unit.name", name),
			attribute.Int("subjects.active", len(state.ActiveSubjects())),
		))
	defer span.End()

	if rc, ok := state.GetRunContext(); ok {
		span.SetAttributes(attribute.String("run.id", rc.RunID))
	}

	logger := zerolog.Ctx(ctx).With().Str("unit", name).Logger()
	before, _ := domain.Get(state, domain.KeyFailures)

	start := time.Now()
	next, err := iu.next.Execute(ctx, state)
	elapsed := time.Since(start)
	iu.metrics.RecordLatency(MetricUnitExecution, elapsed, labels)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		iu.metrics.RecordCounter(MetricUnitExecution, 1, map[string]string{"unit": name, "status": "error"})
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("unit failed")
		return next, err
	}
	iu.metrics.RecordCounter(MetricUnitExecution, 1, map[string]string{"unit": name, "status": "success"})

	after, _ := domain.Get(next, domain.KeyFailures)
	var added []domain.SubjectFailure
	if len(after) > len(before) {
		added = after[len(before):]
	}
	for _, f := range added {
		logger.Warn().
			Str("subject", f.SubjectID).
			Int("row", f.Row).
			Str("kind", string(f.Kind)).
			Msg(f.Reason)
	}

	active := len(next.ActiveSubjects())
	iu.metrics.RecordCounter(MetricSubjectsProcessed, float64(active), labels)
	if len(added) > 0 {
		iu.metrics.RecordCounter(MetricSubjectsFailed, float64(len(added)), labels)
	}

	iu.recordProduced(state, next, name)

	span.SetAttributes(
		attribute.Int("failures.new", len(added)),
		attribute.Int("subjects.remaining", active),
	)
	span.SetStatus(codes.Ok, "unit completed")
	logger.Debug().
		Dur("elapsed", elapsed).
		Int("subjects", active).
		Int("failures", len(added)).
		Msg("unit completed")
	return next, nil
}

// recordProduced exports composite scores and group statistics written by
// this execution. Values already present before the unit ran are not
// recorded again.
func (iu *InstrumentedUnit) recordProduced(before, after domain.State, unit string) {
	if _, had := domain.Get(before, domain.KeyComposites); !had {
		composites, _ := domain.Get(after, domain.KeyComposites)
		for _, c := range composites {
			iu.metrics.RecordHistogram(MetricScore, c.Value, map[string]string{"unit": unit, "metric": c.Name})
		}
	}

	if _, had := domain.Get(before, domain.KeySummaries); !had {
		rows, _ := domain.Get(after, domain.KeySummaries)
		for _, row := range rows {
			labels := map[string]string{"unit": unit, "metric": row.Metric, "group": row.Group}
			iu.metrics.RecordGauge(MetricGroupMean, row.Mean, labels)
			iu.metrics.RecordGauge(MetricGroupCount, float64(row.Count), labels)
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)     {}
