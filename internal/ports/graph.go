package ports

import (
	"context"

	"github.com/ahrav/go-tally/internal/domain"
)

// Executable is anything that can run against a State inside a run:
// a single adapted unit or a whole pipeline.
type Executable interface {
	// Execute processes the given state and returns the updated state.
	// The input state is immutable and MUST NOT be modified; use domain.With
	// or State.WithMultiple to derive a new one.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the identifier of this executable. It must be unique
	// within the containing pipeline.
	ID() string
}

// Pipeline runs executables in strict order, where each executable's
// output becomes the input of the next.
type Pipeline interface {
	Executable

	// Add appends an executable to the end of the pipeline. It returns an
	// error for a nil executable or a duplicate id.
	Add(exec Executable) error

	// Executables returns the ordered executables.
	// The returned slice should not be modified by callers.
	Executables() []Executable
}
