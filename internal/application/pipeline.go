package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Pipeline = (*Pipeline)(nil)

// Pipeline is a sequential execution container where each executable's
// output state becomes the input of the next.
type Pipeline struct {
	// id names the pipeline in error messages.
	id string
	// executables run in the order they were added.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mu guards executables and idSet against concurrent Add and Execute.
	mu sync.RWMutex
}

// NewPipeline creates an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute runs every executable in order. The context is checked before
// each step; on cancellation the last completed state is returned along
// with the context error. An executable error stops the pipeline and is
// wrapped with the executable's id.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := make([]ports.Executable, len(p.executables))
	copy(executables, p.executables)
	p.mu.RUnlock()

	currentState := state
	for _, exec := range executables {
		if err := ctx.Err(); err != nil {
			return currentState, err
		}
		newState, err := exec.Execute(ctx, currentState)
		if err != nil {
			return currentState, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		currentState = newState
	}

	return currentState, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Add appends exec to the end of the pipeline. It returns an error if exec
// is nil or its ID is already present.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}

	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered executables.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}
