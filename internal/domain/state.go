// Package domain contains pure, dependency-free domain models and the
// aggregation, composite, ranking and statistics rules of the engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string name.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used throughout a run.
// Each key is strongly typed to ensure type safety at compile time.
var (
	// KeyTable stores the raw input table handed to ingestion.
	KeyTable = Key[Table]{"table"}

	// KeySubjects stores the subjects discovered by ingestion in first-seen order.
	KeySubjects = Key[[]Subject]{"subjects"}

	// KeyMeasurements stores the normalized measurements.
	KeyMeasurements = Key[[]Measurement]{"measurements"}

	// KeyAggregates stores one CategoryAggregate per (subject, category).
	KeyAggregates = Key[[]CategoryAggregate]{"aggregates"}

	// KeyComposites stores one CompositeScore per scored subject.
	KeyComposites = Key[[]CompositeScore]{"composites"}

	// KeyRanking stores the final ranked entries.
	KeyRanking = Key[[]RankedEntry]{"ranking"}

	// KeySummaries stores group statistics rows.
	KeySummaries = Key[[]GroupSummary]{"summaries"}

	// KeyFailures stores per-subject failures accumulated by every unit.
	KeyFailures = Key[[]SubjectFailure]{"failures"}

	// Run context keys for tracking metadata across the pipeline.

	// KeyRunID stores the unique identifier of this run.
	KeyRunID = Key[string]{"run.id"}

	// KeyRunName stores the configured name of the run.
	KeyRunName = Key[string]{"run.name"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State represents an immutable collection of run data that flows
// through the pipeline. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between Units.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	subjects, ok := Get(state, KeySubjects)
//	if !ok {
//	    // handle missing value
//	}
//	// subjects is typed as []Subject, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	newState := With(state, KeyRunName, "grades-2024")
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
//
// Example:
//
//	updates := map[string]any{
//	    KeyRunName.name: "grades-2024",
//	    KeySubjects.name: []Subject{{ID: "2024001"}},
//	}
//	newState := state.WithMultiple(updates)
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// RunContext contains metadata about the current run that flows through
// the State. It gives middleware and units consistent access to run identity.
type RunContext struct {
	// RunID is the unique identifier of this run.
	RunID string

	// Name is the configured run name (e.g. "grades-2024").
	Name string
}

// WithRunContext creates a new State carrying run metadata. It should be
// called once before the first unit executes.
func (s State) WithRunContext(rc RunContext) State {
	return s.WithMultiple(map[string]any{
		KeyRunID.name:   rc.RunID,
		KeyRunName.name: rc.Name,
	})
}

// GetRunContext extracts run metadata from the State. The boolean is false
// when the run id is missing.
func (s State) GetRunContext() (RunContext, bool) {
	runID, ok := Get(s, KeyRunID)
	if !ok {
		return RunContext{}, false
	}
	name, _ := Get(s, KeyRunName)
	return RunContext{RunID: runID, Name: name}, true
}

// AppendFailures returns a new State with failures appended to KeyFailures.
func (s State) AppendFailures(failures ...SubjectFailure) State {
	if len(failures) == 0 {
		return s
	}
	existing, _ := Get(s, KeyFailures)
	return With(s, KeyFailures, append(existing, failures...))
}

// ActiveSubjects returns the subjects that have not failed at any stage,
// preserving ingestion order.
func (s State) ActiveSubjects() []Subject {
	subjects, _ := Get(s, KeySubjects)
	failures, _ := Get(s, KeyFailures)
	if len(failures) == 0 {
		return subjects
	}
	failed := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		if f.SubjectID != "" {
			failed[f.SubjectID] = struct{}{}
		}
	}
	active := make([]Subject, 0, len(subjects))
	for _, subj := range subjects {
		if _, bad := failed[subj.ID]; !bad {
			active = append(active, subj)
		}
	}
	return active
}
