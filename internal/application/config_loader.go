package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/infrastructure/units"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Plan is a compiled, validated run configuration: the units it declares,
// instantiated and ordered as the pipeline lists them.
// Plans are cached and shared and MUST NOT be mutated.
type Plan struct {
	// Hash is the SHA-256 of the normalized configuration.
	Hash string
	// Config is the configuration the plan was compiled from.
	Config *RunConfig

	units []ports.Unit
}

// Name returns the run name from the metadata.
func (p *Plan) Name() string { return p.Config.Metadata.Name }

// Units returns the units in pipeline order.
func (p *Plan) Units() []ports.Unit { return slices.Clone(p.units) }

// ConfigLoader parses, validates and compiles run configurations into
// Plans. Compiled plans are cached by the hash of the normalized
// configuration, and concurrent loads of the same configuration compile
// only once.
type ConfigLoader struct {
	// validator performs struct field validation with the custom run
	// validators registered.
	validator *validator.Validate
	// registry creates units by type.
	registry ports.UnitRegistry
	// cache stores compiled plans indexed by configuration hash.
	cache   map[string]*Plan
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines request
	// the same plan simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a loader that builds units through registry.
func NewConfigLoader(registry ports.UnitRegistry) (*ConfigLoader, error) {
	if registry == nil {
		return nil, fmt.Errorf("unit registry is required")
	}

	v := validator.New()
	if err := RegisterRunValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		registry:  registry,
		cache:     make(map[string]*Plan),
	}, nil
}

// LoadFromFile loads and compiles the run configuration at path.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*Plan, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, ports.NewConfigError(cleanPath, err)
	}

	return cl.Load(ctx, data)
}

// LoadFromReader loads and compiles a run configuration read from r.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.Load(ctx, data)
}

// Load compiles a run configuration from YAML bytes.
func (cl *ConfigLoader) Load(ctx context.Context, data []byte) (*Plan, error) {
	config, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized config so formatting differences share a plan.
	hash, err := configHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if plan, ok := cl.cachedPlan(hash); ok {
			return plan, nil
		}

		if err := cl.Validate(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		plan, err := cl.buildPlan(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build plan: %w", err)
		}
		plan.Hash = hash

		cl.cachePlan(hash, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Plan), nil
}

// parseYAML decodes data strictly: unknown fields are an error so typos
// are not silently ignored.
func parseYAML(data []byte) (*RunConfig, error) {
	var config RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: YAML decode failed: %w", domain.ErrInvalidConfiguration, err)
	}
	return &config, nil
}

// Validate checks struct constraints and the relationships between units
// and the pipeline without instantiating any unit.
func (cl *ConfigLoader) Validate(config *RunConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("%w: struct validation failed: %w", domain.ErrInvalidConfiguration, err)
	}

	if verr := cl.validateSemantics(config); verr.HasErrors() {
		return fmt.Errorf("semantic validation failed: %w", verr)
	}

	return nil
}

// validateSemantics collects every rule violation that struct tags cannot
// express: unit id uniqueness, known types, parameter keys, pipeline
// references and the position of ingestion.
func (cl *ConfigLoader) validateSemantics(config *RunConfig) *domain.ValidationError {
	verr := domain.NewValidationError("run config")
	supported := cl.registry.GetSupportedTypes()

	unitTypes := make(map[string]string, len(config.Units))
	for _, unit := range config.Units {
		if _, exists := unitTypes[unit.ID]; exists {
			verr.AddError(fmt.Sprintf("duplicate unit ID %q", unit.ID))
			continue
		}
		unitTypes[unit.ID] = unit.Type

		if !slices.Contains(supported, unit.Type) {
			verr.AddError(fmt.Sprintf("unit %s: unknown unit type %q", unit.ID, unit.Type))
			continue
		}
		if err := ValidateUnitParameters(unit.Type, unit.Parameters); err != nil {
			verr.AddError(fmt.Sprintf("unit %s: %v", unit.ID, err))
		}
	}

	seen := make(map[string]struct{}, len(config.Pipeline))
	ingests := 0
	for i, id := range config.Pipeline {
		unitType, exists := unitTypes[id]
		if !exists {
			verr.AddError(fmt.Sprintf("pipeline references non-existent unit: %s", id))
			continue
		}
		if _, dup := seen[id]; dup {
			verr.AddError(fmt.Sprintf("unit %s appears more than once in the pipeline", id))
			continue
		}
		seen[id] = struct{}{}

		if unitType == units.TypeIngest {
			ingests++
			if i != 0 {
				verr.AddError(fmt.Sprintf("ingest unit %s must be the first pipeline step", id))
			}
		}
	}
	if len(config.Pipeline) > 0 {
		if unitType, ok := unitTypes[config.Pipeline[0]]; ok && unitType != units.TypeIngest {
			verr.AddError(fmt.Sprintf("pipeline must start with an ingest unit, got %s (%s)", config.Pipeline[0], unitType))
		}
	}
	if ingests > 1 {
		verr.AddError("pipeline contains more than one ingest unit")
	}

	for _, unit := range config.Units {
		if _, used := seen[unit.ID]; !used {
			verr.AddError(fmt.Sprintf("unit %s is declared but not used by the pipeline", unit.ID))
		}
	}

	return verr
}

// buildPlan instantiates the pipeline's units through the registry and
// validates each one.
func (cl *ConfigLoader) buildPlan(ctx context.Context, config *RunConfig) (*Plan, error) {
	byID := make(map[string]UnitConfig, len(config.Units))
	for _, u := range config.Units {
		byID[u.ID] = u
	}

	plan := &Plan{Config: config, units: make([]ports.Unit, 0, len(config.Pipeline))}
	for _, id := range config.Pipeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, err := cl.createUnit(byID[id])
		if err != nil {
			return nil, err
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s: %w", id, err)
		}
		plan.units = append(plan.units, unit)
	}
	return plan, nil
}

// createUnit decodes the unit's parameters and delegates to the registry.
func (cl *ConfigLoader) createUnit(config UnitConfig) (ports.Unit, error) {
	params := make(map[string]any)
	if config.Parameters.Kind != 0 {
		if err := config.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("unit %s: failed to decode parameters: %w", config.ID, err)
		}
	}

	unit, err := cl.registry.CreateUnit(config.Type, config.ID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return unit, nil
}

// configHash computes the SHA-256 of a re-encoded RunConfig so that
// semantically identical configurations share a hash regardless of
// whitespace or comments.
func configHash(config *RunConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) cachedPlan(hash string) (*Plan, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	plan, ok := cl.cache[hash]
	return plan, ok
}

func (cl *ConfigLoader) cachePlan(hash string, plan *Plan) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = plan
}

// ClearCache removes all cached plans, forcing subsequent loads to
// recompile from source.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*Plan)
}

// CacheSize returns the number of cached plans.
func (cl *ConfigLoader) CacheSize() int {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	return len(cl.cache)
}
