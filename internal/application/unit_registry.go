package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-tally/infrastructure/units"
	"github.com/ahrav/go-tally/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry implements the UnitRegistry interface, mapping unit
// types to factories. It comes with the built-in unit types registered and
// can be extended at runtime.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultUnitRegistry creates a registry with ingest, weighted_mean,
// composite, rank and group_stats registered.
func NewDefaultUnitRegistry() *DefaultUnitRegistry {
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
	}
	registry.registerBuiltinFactories()
	return registry
}

func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	r.factories[units.TypeIngest] = units.NewIngestFromConfig
	r.factories[units.TypeWeightedMean] = units.NewWeightedMeanFromConfig
	r.factories[units.TypeComposite] = units.NewCompositeFromConfig
	r.factories[units.TypeRank] = units.NewRankFromConfig
	r.factories[units.TypeGroupStats] = units.NewGroupStatsFromConfig
}

// CreateUnit creates a new unit instance based on the provided type,
// identifier and decoded parameters.
func (r *DefaultUnitRegistry) CreateUnit(
	unitType string,
	id string,
	config map[string]any,
) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}

	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}

	return unit, nil
}

// RegisterUnitFactory registers a new factory function for a specific unit
// type, replacing any factory already registered for it.
func (r *DefaultUnitRegistry) RegisterUnitFactory(
	unitType string,
	factory ports.UnitFactory,
) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[unitType] = factory
	return nil
}

// Supports reports whether unitType has a registered factory.
func (r *DefaultUnitRegistry) Supports(unitType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[unitType]
	return ok
}

// GetSupportedTypes returns all registered unit types in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)
	return types
}
