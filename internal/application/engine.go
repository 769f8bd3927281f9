package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Engine executes compiled plans against input tables. It holds no
// per-run state and is safe for concurrent use.
type Engine struct {
	metrics ports.MetricsCollector
	now     func() time.Time
	newID   func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics records unit metrics through m.
func WithMetrics(m ports.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an Engine. Without WithMetrics no metrics are recorded.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes plan against table and returns the report. Per-subject
// problems are returned in Report.Failures; an error means the run as a
// whole could not complete (missing inputs, misconfiguration, cancellation).
func (e *Engine) Run(ctx context.Context, plan *Plan, table domain.Table) (domain.Report, error) {
	if plan == nil {
		return domain.Report{}, fmt.Errorf("%w: plan is required", domain.ErrInvalidConfiguration)
	}

	rc := domain.RunContext{RunID: e.newID(), Name: plan.Name()}
	logger := zerolog.Ctx(ctx).With().Str("run_id", rc.RunID).Str("run", rc.Name).Logger()
	ctx = logger.WithContext(ctx)

	pipeline := NewPipeline(rc.Name)
	for _, unit := range plan.Units() {
		instrumented := middleware.NewInstrumentedUnit(unit, e.metrics)
		if err := pipeline.Add(NewUnitAdapter(instrumented, unit.Name())); err != nil {
			return domain.Report{}, err
		}
	}

	state := domain.With(domain.NewState(), domain.KeyTable, table).WithRunContext(rc)

	started := e.now()
	logger.Info().Int("rows", len(table.Rows)).Int("units", len(plan.units)).Msg("run started")

	final, err := pipeline.Execute(ctx, state)
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		return domain.Report{}, fmt.Errorf("run %s: %w", rc.RunID, err)
	}

	report := domain.ReportFromState(final)
	report.StartedAt = started
	report.FinishedAt = e.now()

	logger.Info().
		Int("subjects", len(report.Subjects)).
		Int("ranked", len(report.Ranking)).
		Int("failures", len(report.Failures)).
		Dur("elapsed", report.FinishedAt.Sub(started)).
		Msg("run completed")
	return report, nil
}
