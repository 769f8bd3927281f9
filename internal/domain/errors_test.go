package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateError(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		operation string
		err       error
		wantMsg   string
	}{
		{
			name:      "basic state error",
			key:       KeySubjects.Name(),
			operation: "Get",
			err:       ErrKeyNotFound,
			wantMsg:   "state error: operation=Get, key=subjects, err=key not found",
		},
		{
			name:      "with wrapped error",
			key:       KeyAggregates.Name(),
			operation: "With",
			err:       ErrInvalidState,
			wantMsg:   "state error: operation=With, key=aggregates, err=invalid state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStateError(tt.key, tt.operation, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.key, err.Key, "Key mismatch")
			assert.Equal(t, tt.operation, err.Operation, "Operation mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestMissingStateError(t *testing.T) {
	err := MissingStateError(KeyMeasurements, "aggregate")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), "measurements")
}

func TestMeasurementError(t *testing.T) {
	m := Measurement{SubjectID: "s1", Category: "degree", Metric: "grade", Value: 80, Weight: -2}
	err := m.Validate()
	require.Error(t, err)

	var merr *MeasurementError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "s1", merr.SubjectID)
	assert.ErrorIs(t, err, ErrInvalidMeasurement)
	assert.Equal(t, "invalid measurement: subject=s1, category=degree, metric=grade: weight is negative: -2", err.Error())

	wrapped := fmt.Errorf("aggregate: %w", err)
	assert.ErrorIs(t, wrapped, ErrInvalidMeasurement)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("RunConfig")
		err.AddError("version is required")

		assert.True(t, err.HasErrors())
		assert.Equal(t, "validation error for RunConfig: version is required", err.Error())
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("composite")
		err.AddError("a")
		err.AddError("b")
		assert.Equal(t, "validation errors for composite: [a b]", err.Error())
	})

	t.Run("no errors", func(t *testing.T) {
		assert.False(t, NewValidationError("x").HasErrors())
	})
}

func TestSubjectFailure_Error(t *testing.T) {
	withSubject := SubjectFailure{SubjectID: "img_01.png", Stage: "composite", Kind: FailureMissingCategory, Reason: `missing category: "FID"`}
	assert.Equal(t, `composite: subject img_01.png: missing_category: missing category: "FID"`, withSubject.Error())

	rowOnly := SubjectFailure{Row: 4, Stage: "ingest", Kind: FailureIngest, Reason: "empty subject id"}
	assert.Equal(t, "ingest: row 4: ingest: empty subject id", rowOnly.Error())
}
