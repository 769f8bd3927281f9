package testutils

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeTable(t *testing.T) {
	table := GradeTable(
		GradeRow{StudentID: "2024001", Name: "Ann", CourseType: 0, Score: 80, Credit: 3},
		GradeRow{StudentID: "2024001", Name: "Ann", CourseType: 1, Score: 70.5, Credit: 1.5},
	)

	assert.Equal(t, GradeHeader, table.Header)
	assert.Equal(t, [][]string{
		{"2024001", "Ann", "0", "80", "3"},
		{"2024001", "Ann", "1", "70.5", "1.5"},
	}, table.Rows)

	table.Header[0] = "changed"
	assert.Equal(t, "学号", GradeHeader[0], "tables do not alias the shared header")
}

func TestGenerateGrades_Deterministic(t *testing.T) {
	a := GenerateGrades(42, 20, 6)
	b := GenerateGrades(42, 20, 6)
	assert.Equal(t, a, b)

	students := make(map[string]struct{})
	for _, row := range a.Rows {
		require.Len(t, row, len(GradeHeader))
		students[row[0]] = struct{}{}

		score, err := strconv.ParseFloat(row[3], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 55.0)
		assert.LessOrEqual(t, score, 100.0)

		credit, err := strconv.ParseFloat(row[4], 64)
		require.NoError(t, err)
		assert.Positive(t, credit)
	}
	assert.Len(t, students, 20)
}

func TestGenerateImageScores(t *testing.T) {
	table := GenerateImageScores(7, 10, 5)
	assert.Equal(t, ImageHeader, table.Header)
	require.Len(t, table.Rows, 10)
	assert.Equal(t, "1", table.Rows[0][2])
	assert.Equal(t, "5", table.Rows[4][2])
	assert.Equal(t, "1", table.Rows[5][2])
	assert.Equal(t, table, GenerateImageScores(7, 10, 5))
}

func TestRecordingMetrics(t *testing.T) {
	m := NewRecordingMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordCounter("subjects_processed", 2, map[string]string{"unit": "ingest"})
		}()
	}
	wg.Wait()

	labels := map[string]string{"unit": "rank"}
	m.RecordLatency("unit_execute", 1500*time.Millisecond, labels)
	labels["unit"] = "mutated"
	m.RecordGauge("group_mean", 15, map[string]string{"group": "1"})
	m.RecordHistogram("score", 3.625, nil)

	assert.Len(t, m.Calls(), 13)
	assert.Equal(t, 20.0, m.Sum(KindCounter, "subjects_processed", map[string]string{"unit": "ingest"}))
	assert.Equal(t, 0.0, m.Sum(KindCounter, "subjects_processed", map[string]string{"unit": "rank"}))

	latency := m.Find(KindLatency, "unit_execute")
	require.Len(t, latency, 1)
	assert.Equal(t, 1.5, latency[0].Value)
	assert.Equal(t, "rank", latency[0].Labels["unit"], "labels are copied on record")
}
