package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/infrastructure/units"
)

// unitIDPattern restricts unit ids to identifiers that are safe to use as
// metric labels and log fields.
var unitIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,99}$`)

// parameterSchemas maps built-in unit types to the config struct their
// parameters decode into. Types registered at runtime have no schema and
// are validated by their factory alone.
var parameterSchemas = map[string]func() any{
	units.TypeIngest:       func() any { return &units.IngestConfig{} },
	units.TypeWeightedMean: func() any { return &units.WeightedMeanConfig{} },
	units.TypeComposite:    func() any { return &units.CompositeConfig{} },
	units.TypeRank:         func() any { return &units.RankConfig{} },
	units.TypeGroupStats:   func() any { return &units.GroupStatsConfig{} },
}

// ValidateUnitParameters checks that params is a mapping whose keys are all
// known to unitType. Misspelled keys would otherwise be silently dropped
// and the unit would run on its defaults.
// Value constraints are checked later by the unit's own validation.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	if params.Kind == 0 {
		return nil
	}
	if params.Kind != yaml.MappingNode {
		return fmt.Errorf("parameters must be a mapping, got %s", nodeKind(params.Kind))
	}

	schema, ok := parameterSchemas[unitType]
	if !ok {
		return nil
	}

	data, err := yaml.Marshal(&params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(schema()); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s parameters: %w", unitType, err)
	}
	return nil
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// RegisterRunValidators registers the custom struct tag validators used by
// RunConfig.
func RegisterRunValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("unitid", validateUnitID); err != nil {
		return fmt.Errorf("failed to register unitid validator: %w", err)
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(value, "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

func validateUnitID(fl validator.FieldLevel) bool {
	return unitIDPattern.MatchString(fl.Field().String())
}
