package application

import (
	"gopkg.in/yaml.v3"
)

// RunConfig is the complete declaration of a scoring run: which units
// exist, how each is parameterized and the order they execute in.
// Every weight, multiplier, direction and tie-break lives here; nothing is
// taken from process-wide defaults.
type RunConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across releases.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata names and describes the run.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Units declares the units available to the pipeline.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
	// Pipeline lists unit ids in execution order. Ingestion comes first and
	// ranking runs only after every score it needs has been produced.
	Pipeline []string `yaml:"pipeline" validate:"required,min=1,dive,unitid"`
}

// Metadata provides descriptive information about a run for logs,
// exported reports and operators.
type Metadata struct {
	// Name identifies the run in logs and report headers.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the run scores.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are free-form labels such as "grades" or "images".
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs carried into the report.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig declares a single unit.
type UnitConfig struct {
	// ID is the unit's unique identifier, used in the pipeline, in logs
	// and as the stage of any SubjectFailure it reports.
	ID string `yaml:"id" validate:"required,unitid"`
	// Type selects the unit implementation from the registry.
	Type string `yaml:"type" validate:"required,min=1,max=100"`
	// Parameters holds type-specific configuration, decoded by the unit
	// onto its defaults.
	Parameters yaml.Node `yaml:"parameters"`
}
