package units

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Unit = (*IngestUnit)(nil)

// Shape is the layout of the raw input rows.
type Shape string

const (
	// ShapeLong has one row per measurement: subject, category, value and
	// weight columns. Course grade sheets use this shape.
	ShapeLong Shape = "long"

	// ShapeWide has one row per subject and one column per metric. Image
	// score sheets use this shape; every metric cell becomes a measurement
	// with weight 1 whose category is the (aliased) column name.
	ShapeWide Shape = "wide"
)

// ColumnConfig names the input columns. Each entry is a header name or a
// "#N" positional reference. Empty optional entries are ignored.
type ColumnConfig struct {
	Subject      string `yaml:"subject" json:"subject" validate:"required"`
	Label        string `yaml:"label" json:"label"`
	Group        string `yaml:"group" json:"group"`
	ExternalRank string `yaml:"external_rank" json:"external_rank"`

	// Category, Value and Weight are used by the long shape. Without a
	// weight column every measurement weighs 1.
	Category string `yaml:"category" json:"category"`
	Value    string `yaml:"value" json:"value"`
	Weight   string `yaml:"weight" json:"weight"`

	// Metrics lists the metric columns of the wide shape.
	Metrics []string `yaml:"metrics" json:"metrics" validate:"omitempty,dive,required"`
}

// IngestConfig controls how a raw table becomes subjects and measurements.
type IngestConfig struct {
	Shape   Shape        `yaml:"shape" json:"shape" validate:"required,oneof=long wide"`
	Columns ColumnConfig `yaml:"columns" json:"columns"`

	// CategoryAliases renames category codes (long) or metric column names
	// (wide), e.g. "0" → "degree" or "FID得分" → "FID".
	CategoryAliases map[string]string `yaml:"category_aliases" json:"category_aliases" validate:"omitempty,dive,required"`

	// Group tags every subject of this input with a fixed group when no
	// group column is configured or the group cell is empty.
	Group string `yaml:"group" json:"group"`

	// Directions sets the polarity per category. Unlisted categories are
	// higher_better.
	Directions map[string]domain.Direction `yaml:"directions" json:"directions" validate:"omitempty,dive,oneof=higher_better lower_better"`

	// MaxHeaderDistance allows fuzzy header matching within this many
	// edits. Zero disables fuzzy matching.
	MaxHeaderDistance int `yaml:"max_header_distance" json:"max_header_distance" validate:"min=0,max=16"`
}

// IngestUnit normalizes a raw table into subjects and measurements.
//
// Cells that cannot be parsed mark their subject failed and drop all of its
// measurements; the rest of the table is still ingested. "NaN" and "Inf"
// parse successfully and are left for the aggregator to reject.
type IngestUnit struct {
	name   string
	config IngestConfig
}

// NewIngestUnit creates a new IngestUnit with a validated configuration.
func NewIngestUnit(name string, config IngestConfig) (*IngestUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validateIngestConfig(config); err != nil {
		return nil, err
	}
	return &IngestUnit{name: name, config: config}, nil
}

// Name returns the unit id.
func (iu *IngestUnit) Name() string { return iu.name }

// Execute reads domain.KeyTable and writes domain.KeySubjects and
// domain.KeyMeasurements, appending ingestion failures.
func (iu *IngestUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	table, ok := domain.Get(state, domain.KeyTable)
	if !ok {
		return state, domain.MissingStateError(domain.KeyTable, iu.name)
	}
	if len(table.Header) == 0 {
		return state, fmt.Errorf("unit %s: %w", iu.name, ports.ErrEmptyTable)
	}

	cols, err := iu.resolveColumns(table.Header)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", iu.name, err)
	}

	logger := zerolog.Ctx(ctx).With().Str("unit", iu.name).Logger()

	b := newIngestBatch(iu.name)
	for i, row := range table.Rows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return state, err
			}
		}
		rowNum := i + 1

		id := cell(row, cols.subject)
		if id == "" {
			b.rowFailure(rowNum, "empty subject id")
			continue
		}

		subj := b.subject(id)
		iu.applySubjectColumns(&logger, b, subj, row, cols)
		switch iu.config.Shape {
		case ShapeLong:
			iu.ingestLong(b, subj, row, cols)
		case ShapeWide:
			iu.ingestWide(b, subj, row, cols)
		}
	}

	subjects, measurements, failures := b.result()
	if len(subjects) == 0 {
		logger.Warn().Int("rows", len(table.Rows)).Msg("no subjects found in input")
	}
	logger.Debug().
		Int("rows", len(table.Rows)).
		Int("subjects", len(subjects)).
		Int("measurements", len(measurements)).
		Int("failures", len(failures)).
		Msg("input ingested")

	next := state.WithMultiple(map[string]any{
		domain.KeySubjects.Name():     subjects,
		domain.KeyMeasurements.Name(): measurements,
	})
	return next.AppendFailures(failures...), nil
}

// resolvedColumns holds header positions; -1 means not configured.
type resolvedColumns struct {
	subject, label, group, externalRank int
	category, value, weight             int
	metrics                             []int

	headerNames *columnResolver
}

func (iu *IngestUnit) resolveColumns(header []string) (resolvedColumns, error) {
	r := newColumnResolver(header, iu.config.MaxHeaderDistance)
	c := iu.config.Columns

	optional := func(ref string) (int, error) {
		if ref == "" {
			return -1, nil
		}
		return r.resolve(ref)
	}

	var (
		cols resolvedColumns
		errs []error
	)
	collect := func(dst *int, ref string, required bool) {
		var (
			idx int
			err error
		)
		if required {
			idx, err = r.resolve(ref)
		} else {
			idx, err = optional(ref)
		}
		*dst = idx
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(&cols.subject, c.Subject, true)
	collect(&cols.label, c.Label, false)
	collect(&cols.group, c.Group, false)
	collect(&cols.externalRank, c.ExternalRank, false)

	cols.category, cols.value, cols.weight = -1, -1, -1
	switch iu.config.Shape {
	case ShapeLong:
		collect(&cols.category, c.Category, true)
		collect(&cols.value, c.Value, true)
		collect(&cols.weight, c.Weight, false)
	case ShapeWide:
		cols.metrics = make([]int, len(c.Metrics))
		for i, m := range c.Metrics {
			collect(&cols.metrics[i], m, true)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return resolvedColumns{}, err
	}
	cols.headerNames = r
	return cols, nil
}

func (iu *IngestUnit) applySubjectColumns(
	logger *zerolog.Logger,
	b *ingestBatch,
	subj *domain.Subject,
	row []string,
	cols resolvedColumns,
) {
	if label := cell(row, cols.label); label != "" && subj.Label == subj.ID {
		subj.Label = label
	}

	group := cell(row, cols.group)
	if group == "" {
		group = iu.config.Group
	}
	switch {
	case group == "":
	case subj.Group == "":
		subj.Group = group
	case subj.Group != group:
		logger.Warn().
			Str("subject", subj.ID).
			Str("group", subj.Group).
			Str("ignored_group", group).
			Msg("subject listed under more than one group; keeping the first")
	}

	if raw := cell(row, cols.externalRank); raw != "" && subj.ExternalRank == 0 {
		rank, err := parseRank(raw)
		if err != nil {
			b.fail(subj.ID, fmt.Sprintf("external rank %q: %v", raw, err))
			return
		}
		subj.ExternalRank = rank
	}
}

func (iu *IngestUnit) ingestLong(b *ingestBatch, subj *domain.Subject, row []string, cols resolvedColumns) {
	category := iu.alias(cell(row, cols.category))
	if category == "" {
		b.fail(subj.ID, "empty category")
		return
	}

	rawValue := cell(row, cols.value)
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		b.fail(subj.ID, fmt.Sprintf("value %q in column %s is not a number", rawValue, cols.headerNames.name(cols.value)))
		return
	}

	weight := 1.0
	if cols.weight >= 0 {
		rawWeight := cell(row, cols.weight)
		weight, err = strconv.ParseFloat(rawWeight, 64)
		if err != nil {
			b.fail(subj.ID, fmt.Sprintf("weight %q in column %s is not a number", rawWeight, cols.headerNames.name(cols.weight)))
			return
		}
	}

	b.add(domain.Measurement{
		SubjectID: subj.ID,
		Category:  category,
		Metric:    cols.headerNames.name(cols.value),
		Value:     value,
		Weight:    weight,
		Direction: iu.direction(category),
	})
}

func (iu *IngestUnit) ingestWide(b *ingestBatch, subj *domain.Subject, row []string, cols resolvedColumns) {
	for _, idx := range cols.metrics {
		metric := cols.headerNames.name(idx)
		raw := cell(row, idx)
		// An empty cell means the scorer produced nothing for this metric.
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			b.fail(subj.ID, fmt.Sprintf("value %q in column %s is not a number", raw, metric))
			return
		}
		category := iu.alias(metric)
		b.add(domain.Measurement{
			SubjectID: subj.ID,
			Category:  category,
			Metric:    metric,
			Value:     value,
			Weight:    1,
			Direction: iu.direction(category),
		})
	}
}

func (iu *IngestUnit) alias(name string) string {
	if alias, ok := iu.config.CategoryAliases[name]; ok {
		return alias
	}
	return name
}

func (iu *IngestUnit) direction(category string) domain.Direction {
	if d, ok := iu.config.Directions[category]; ok {
		return d
	}
	return domain.HigherBetter
}

// parseRank accepts integer text, including spreadsheet renderings such as "3.0".
func parseRank(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errors.New("not an integer")
	}
	return int(f), nil
}

// Validate checks the unit configuration.
func (iu *IngestUnit) Validate() error { return validateIngestConfig(iu.config) }

func validateIngestConfig(config IngestConfig) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	c := config.Columns
	switch config.Shape {
	case ShapeLong:
		if c.Category == "" || c.Value == "" {
			return fmt.Errorf("%w: long shape needs category and value columns", ErrInvalidShape)
		}
	case ShapeWide:
		if len(c.Metrics) == 0 {
			return fmt.Errorf("%w: wide shape needs at least one metric column", ErrInvalidShape)
		}
	}
	return nil
}

// DefaultIngestConfig returns the long-shape configuration used by course
// grade sheets, with the documented metric polarities preset.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Shape: ShapeLong,
		Directions: map[string]domain.Direction{
			"FID":   domain.LowerBetter,
			"LPIPS": domain.LowerBetter,
		},
	}
}

// NewIngestFromConfig creates an IngestUnit from a configuration map.
// This is the boundary adapter for YAML/JSON configuration.
func NewIngestFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := overlayConfig(config, DefaultIngestConfig())
	if err != nil {
		return nil, err
	}
	return NewIngestUnit(id, cfg)
}

// ingestBatch accumulates subjects in first-seen order along with their
// measurements and failures.
type ingestBatch struct {
	stage        string
	subjects     []*domain.Subject
	index        map[string]*domain.Subject
	measurements map[string][]domain.Measurement
	failed       map[string]string
	rowFailures  []domain.SubjectFailure
}

func newIngestBatch(stage string) *ingestBatch {
	return &ingestBatch{
		stage:        stage,
		index:        make(map[string]*domain.Subject),
		measurements: make(map[string][]domain.Measurement),
		failed:       make(map[string]string),
	}
}

func (b *ingestBatch) subject(id string) *domain.Subject {
	if s, ok := b.index[id]; ok {
		return s
	}
	s := &domain.Subject{ID: id, Label: id, Order: len(b.subjects)}
	b.subjects = append(b.subjects, s)
	b.index[id] = s
	return s
}

func (b *ingestBatch) add(m domain.Measurement) {
	if _, failed := b.failed[m.SubjectID]; failed {
		return
	}
	b.measurements[m.SubjectID] = append(b.measurements[m.SubjectID], m)
}

// fail records the first reason a subject is rejected and drops its
// measurements.
func (b *ingestBatch) fail(id, reason string) {
	if _, ok := b.failed[id]; ok {
		return
	}
	b.failed[id] = reason
	delete(b.measurements, id)
}

func (b *ingestBatch) rowFailure(row int, reason string) {
	b.rowFailures = append(b.rowFailures, domain.SubjectFailure{
		Row:    row,
		Stage:  b.stage,
		Kind:   domain.FailureIngest,
		Reason: reason,
	})
}

func (b *ingestBatch) result() ([]domain.Subject, []domain.Measurement, []domain.SubjectFailure) {
	subjects := make([]domain.Subject, 0, len(b.subjects))
	var measurements []domain.Measurement
	failures := append([]domain.SubjectFailure(nil), b.rowFailures...)

	for _, s := range b.subjects {
		subjects = append(subjects, *s)
		if reason, ok := b.failed[s.ID]; ok {
			failures = append(failures, domain.SubjectFailure{
				SubjectID: s.ID,
				Stage:     b.stage,
				Kind:      domain.FailureIngest,
				Reason:    reason,
			})
			continue
		}
		measurements = append(measurements, b.measurements[s.ID]...)
	}
	return subjects, measurements, failures
}
