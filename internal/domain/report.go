package domain

import (
	"fmt"
	"time"
)

// FailureKind classifies why a subject was skipped.
type FailureKind string

const (
	// FailureIngest marks rows or subjects that could not be normalized.
	FailureIngest FailureKind = "ingest"

	// FailureInvalidMeasurement marks subjects with a negative weight or a
	// non-finite value.
	FailureInvalidMeasurement FailureKind = "invalid_measurement"

	// FailureMissingCategory marks subjects lacking a category required by
	// the composite or the ranking source.
	FailureMissingCategory FailureKind = "missing_category"
)

// SubjectFailure records a subject (or an input row without a subject) that
// was skipped. The rest of the batch is unaffected.
type SubjectFailure struct {
	// SubjectID is empty for rows that carry no subject identifier.
	SubjectID string `json:"subject_id,omitempty"`

	// Row is the 1-based data row for ingestion failures, 0 otherwise.
	Row int `json:"row,omitempty"`

	// Stage is the id of the unit that reported the failure.
	Stage string `json:"stage"`

	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Error implements the error interface so failures can be logged and
// returned where an error is expected.
func (f SubjectFailure) Error() string {
	if f.SubjectID == "" {
		return fmt.Sprintf("%s: row %d: %s: %s", f.Stage, f.Row, f.Kind, f.Reason)
	}
	return fmt.Sprintf("%s: subject %s: %s: %s", f.Stage, f.SubjectID, f.Kind, f.Reason)
}

// Report is everything that leaves a run: the ranked entries, the group
// summaries and the supporting per-subject values for export.
type Report struct {
	RunID string `json:"run_id"`
	Name  string `json:"name"`

	Subjects   []Subject           `json:"subjects"`
	Aggregates []CategoryAggregate `json:"aggregates"`
	Composites []CompositeScore    `json:"composites"`
	Ranking    []RankedEntry       `json:"ranking"`
	Summaries  []GroupSummary      `json:"summaries"`
	Failures   []SubjectFailure    `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ReportFromState collects the report fields present in s.
func ReportFromState(s State) Report {
	rc, _ := s.GetRunContext()
	r := Report{RunID: rc.RunID, Name: rc.Name}
	r.Subjects, _ = Get(s, KeySubjects)
	r.Aggregates, _ = Get(s, KeyAggregates)
	r.Composites, _ = Get(s, KeyComposites)
	r.Ranking, _ = Get(s, KeyRanking)
	r.Summaries, _ = Get(s, KeySummaries)
	r.Failures, _ = Get(s, KeyFailures)
	return r
}

// SubjectIndex maps subject ids to subjects.
func (r Report) SubjectIndex() map[string]Subject {
	idx := make(map[string]Subject, len(r.Subjects))
	for _, s := range r.Subjects {
		idx[s.ID] = s
	}
	return idx
}

// AggregatesBySubject returns category→value maps keyed by subject id.
func (r Report) AggregatesBySubject() map[string]map[string]float64 {
	return AggregateMap(r.Aggregates)
}

// Categories returns the distinct aggregate categories in first-seen order.
func (r Report) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.Aggregates {
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		out = append(out, a.Category)
	}
	return out
}

// AggregateMap indexes aggregates as subject → category → value.
func AggregateMap(aggregates []CategoryAggregate) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, a := range aggregates {
		if out[a.SubjectID] == nil {
			out[a.SubjectID] = make(map[string]float64)
		}
		out[a.SubjectID][a.Category] = a.Value
	}
	return out
}
