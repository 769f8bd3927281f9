// Package ports defines the interfaces that form the contract between the
// domain/application layers and the infrastructure layer.
package ports

import (
	"context"

	"github.com/ahrav/go-tally/internal/domain"
)

// Unit is one stage of a run: ingestion, aggregation, combination, ranking
// or summarization. Each Unit reads what it needs from the State and returns
// a new State carrying its results.
// Units must be stateless between runs and safe for concurrent use.
type Unit interface {
	// Name returns the unit id from the run configuration. It is used in
	// logs, metrics labels and SubjectFailure.Stage.
	Name() string

	// Execute performs the unit's transformation on the provided State and
	// returns a new State. The input State is never modified.
	//
	// Per-subject problems are recorded with State.AppendFailures and do not
	// produce an error. An error aborts the run and is reserved for missing
	// inputs, misconfiguration and context cancellation.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return domain.State{}, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks that the unit is properly configured.
	// It is called when a plan is compiled, before any input is read.
	Validate() error
}

// UnitFactory builds a Unit of one type from its id and decoded parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry maps unit types to factories.
type UnitRegistry interface {
	// RegisterUnitFactory associates unitType with factory, replacing any
	// factory previously registered for it.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// CreateUnit builds a unit of unitType.
	CreateUnit(unitType, id string, config map[string]any) (Unit, error)

	// GetSupportedTypes returns the registered unit types in sorted order.
	GetSupportedTypes() []string
}
