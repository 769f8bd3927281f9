package application

import (
	"context"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// UnitAdapter wraps a ports.Unit to implement ports.Executable so units can
// be placed in a Pipeline.
type UnitAdapter struct {
	unit ports.Unit
	id   string
}

// NewUnitAdapter creates an adapter for unit addressed by id.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// Execute delegates to the underlying unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the unit id from the run configuration.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
