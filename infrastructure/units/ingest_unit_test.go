package units

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

func gradeTable() domain.Table {
	return domain.Table{
		Header: []string{"学号", "姓名", "课程名称", "课程性质", "成绩", "学分"},
		Rows: [][]string{
			{"2024001", "张三", "高等数学", "0", "80", "3"},
			{"2024001", "张三", "线性代数", "0", "90", "2"},
			{"2024002", "李四", "高等数学", "0", "75", "3"},
			{"2024001", "张三", "体育", "1", "70", "1"},
		},
	}
}

func gradeIngestConfig() IngestConfig {
	cfg := DefaultIngestConfig()
	cfg.Columns = ColumnConfig{
		Subject:  "学号",
		Label:    "姓名",
		Category: "课程性质",
		Value:    "成绩",
		Weight:   "学分",
	}
	cfg.CategoryAliases = map[string]string{"0": "degree", "1": "non_degree"}
	return cfg
}

func imageTable() domain.Table {
	return domain.Table{
		Header: []string{"序号", "类型", "文件名", "FID得分", "HPSv2得分", "ImageReward得分"},
		Rows: [][]string{
			{"1", "1", "img_01.png", "20", "0.28", "0.15"},
			{"2", "2", "img_02.png", "31.5", "0.25", "-0.4"},
		},
	}
}

func imageIngestConfig() IngestConfig {
	cfg := DefaultIngestConfig()
	cfg.Shape = ShapeWide
	cfg.Columns = ColumnConfig{
		Subject:      "文件名",
		Group:        "类型",
		ExternalRank: "序号",
		Metrics:      []string{"FID得分", "HPSv2得分", "ImageReward得分"},
	}
	cfg.CategoryAliases = map[string]string{
		"FID得分":         "FID",
		"HPSv2得分":       "HPSv2",
		"ImageReward得分": "ImageReward",
	}
	return cfg
}

func runIngest(t *testing.T, cfg IngestConfig, table domain.Table) domain.State {
	t.Helper()
	unit, err := NewIngestUnit("ingest", cfg)
	require.NoError(t, err)
	state, err := unit.Execute(context.Background(), domain.With(domain.NewState(), domain.KeyTable, table))
	require.NoError(t, err)
	return state
}

func TestIngestUnit_LongShape(t *testing.T) {
	state := runIngest(t, gradeIngestConfig(), gradeTable())

	subjects, ok := domain.Get(state, domain.KeySubjects)
	require.True(t, ok)
	require.Len(t, subjects, 2)
	assert.Equal(t, domain.Subject{ID: "2024001", Label: "张三", Order: 0}, subjects[0])
	assert.Equal(t, domain.Subject{ID: "2024002", Label: "李四", Order: 1}, subjects[1])

	measurements, ok := domain.Get(state, domain.KeyMeasurements)
	require.True(t, ok)
	require.Len(t, measurements, 4)
	assert.Equal(t, domain.Measurement{
		SubjectID: "2024001",
		Category:  "degree",
		Metric:    "成绩",
		Value:     80,
		Weight:    3,
		Direction: domain.HigherBetter,
	}, measurements[0])
	assert.Equal(t, "non_degree", measurements[2].Category, "measurements are grouped by subject in ingestion order")
	assert.Equal(t, "2024002", measurements[3].SubjectID)

	failures, _ := domain.Get(state, domain.KeyFailures)
	assert.Empty(t, failures)
}

func TestIngestUnit_WideShape(t *testing.T) {
	state := runIngest(t, imageIngestConfig(), imageTable())

	subjects, _ := domain.Get(state, domain.KeySubjects)
	require.Len(t, subjects, 2)
	assert.Equal(t, "1", subjects[0].Group)
	assert.Equal(t, 1, subjects[0].ExternalRank)
	assert.Equal(t, "img_01.png", subjects[0].Label)

	measurements, _ := domain.Get(state, domain.KeyMeasurements)
	require.Len(t, measurements, 6)

	fid := measurements[0]
	assert.Equal(t, "FID", fid.Category)
	assert.Equal(t, "FID得分", fid.Metric)
	assert.Equal(t, 20.0, fid.Value)
	assert.Equal(t, 1.0, fid.Weight)
	assert.Equal(t, domain.LowerBetter, fid.Direction, "FID defaults to lower_better")
	assert.Equal(t, domain.HigherBetter, measurements[1].Direction)
	assert.Equal(t, -0.4, measurements[5].Value)
}

func TestIngestUnit_WideShapeSkipsEmptyCells(t *testing.T) {
	table := imageTable()
	table.Rows[1][3] = ""

	state := runIngest(t, imageIngestConfig(), table)
	measurements, _ := domain.Get(state, domain.KeyMeasurements)
	assert.Len(t, measurements, 5)
	for _, m := range measurements {
		if m.SubjectID == "img_02.png" {
			assert.NotEqual(t, "FID", m.Category)
		}
	}
}

func TestIngestUnit_FixedGroup(t *testing.T) {
	cfg := imageIngestConfig()
	cfg.Columns.Group = ""
	cfg.Group = "5"

	state := runIngest(t, cfg, imageTable())
	subjects, _ := domain.Get(state, domain.KeySubjects)
	for _, s := range subjects {
		assert.Equal(t, "5", s.Group)
	}
}

func TestIngestUnit_FirstGroupWins(t *testing.T) {
	cfg := imageIngestConfig()
	table := imageTable()
	table.Rows = append(table.Rows, []string{"3", "4", "img_01.png", "", "", ""})

	state := runIngest(t, cfg, table)
	subjects, _ := domain.Get(state, domain.KeySubjects)
	require.Len(t, subjects, 2)
	assert.Equal(t, "1", subjects[0].Group)
	assert.Equal(t, 1, subjects[0].ExternalRank)
}

func TestIngestUnit_ColumnResolution(t *testing.T) {
	table := domain.Table{
		Header: []string{" Student ID ", "Kind", "Score", "Credits"},
		Rows:   [][]string{{"s1", "0", "88", "2"}},
	}

	tests := []struct {
		name        string
		columns     ColumnConfig
		maxDistance int
		wantErr     bool
	}{
		{
			name:    "case folded names",
			columns: ColumnConfig{Subject: "student id", Category: "KIND", Value: "score", Weight: "credits"},
		},
		{
			name:    "positional references",
			columns: ColumnConfig{Subject: "#1", Category: "#2", Value: "#3", Weight: "#4"},
		},
		{
			name:        "fuzzy match within distance",
			columns:     ColumnConfig{Subject: "Student ID", Category: "Kind", Value: "Scores", Weight: "Credit"},
			maxDistance: 1,
		},
		{
			name:    "fuzzy match disabled",
			columns: ColumnConfig{Subject: "Student ID", Category: "Kind", Value: "Scores", Weight: "Credits"},
			wantErr: true,
		},
		{
			name:    "position out of range",
			columns: ColumnConfig{Subject: "#9", Category: "Kind", Value: "Score"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultIngestConfig()
			cfg.Columns = tt.columns
			cfg.MaxHeaderDistance = tt.maxDistance
			unit, err := NewIngestUnit("ingest", cfg)
			require.NoError(t, err)

			state, err := unit.Execute(context.Background(), domain.With(domain.NewState(), domain.KeyTable, table))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrColumnNotFound)
				return
			}
			require.NoError(t, err)
			measurements, _ := domain.Get(state, domain.KeyMeasurements)
			require.Len(t, measurements, 1)
			assert.Equal(t, domain.Measurement{
				SubjectID: "s1", Category: "0", Metric: "Score", Value: 88, Weight: 2, Direction: domain.HigherBetter,
			}, measurements[0])
		})
	}
}

func TestIngestUnit_Failures(t *testing.T) {
	table := gradeTable()
	table.Rows = append(table.Rows,
		[]string{"2024003", "王五", "化学", "0", "缺考", "2"},
		[]string{"2024003", "王五", "物理", "0", "85", "2"},
		[]string{"", "无名", "化学", "0", "60", "2"},
		[]string{"2024004", "赵六", "化学", "0", "NaN", "2"},
		[]string{"2024005", "钱七", "化学", "0", "66", "two"},
	)

	state := runIngest(t, gradeIngestConfig(), table)

	failures, ok := domain.Get(state, domain.KeyFailures)
	require.True(t, ok)
	require.Len(t, failures, 3)

	assert.Equal(t, domain.SubjectFailure{Row: 7, Stage: "ingest", Kind: domain.FailureIngest, Reason: "empty subject id"}, failures[0])
	assert.Equal(t, "2024003", failures[1].SubjectID)
	assert.Contains(t, failures[1].Reason, "缺考")
	assert.Equal(t, "2024005", failures[2].SubjectID)
	assert.Contains(t, failures[2].Reason, "weight")

	measurements, _ := domain.Get(state, domain.KeyMeasurements)
	var nanSeen bool
	for _, m := range measurements {
		assert.NotEqual(t, "2024003", m.SubjectID, "a failed subject keeps none of its measurements")
		assert.NotEqual(t, "2024005", m.SubjectID)
		if m.SubjectID == "2024004" {
			nanSeen = math.IsNaN(m.Value)
		}
	}
	assert.True(t, nanSeen, "NaN text is passed on for the aggregator to reject")

	active := state.ActiveSubjects()
	ids := make([]string, len(active))
	for i, s := range active {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"2024001", "2024002", "2024004"}, ids)
}

func TestIngestUnit_Errors(t *testing.T) {
	unit, err := NewIngestUnit("ingest", gradeIngestConfig())
	require.NoError(t, err)

	_, err = unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	_, err = unit.Execute(context.Background(), domain.With(domain.NewState(), domain.KeyTable, domain.Table{}))
	assert.ErrorIs(t, err, ports.ErrEmptyTable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = unit.Execute(ctx, domain.With(domain.NewState(), domain.KeyTable, gradeTable()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewIngestUnit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		unit    string
		mutate  func(*IngestConfig)
		wantErr error
		wantMsg string
	}{
		{name: "empty name", unit: "", mutate: func(*IngestConfig) {}, wantErr: ErrEmptyUnitName},
		{name: "long without value", unit: "in", mutate: func(c *IngestConfig) { c.Columns.Value = "" }, wantErr: ErrInvalidShape},
		{name: "wide without metrics", unit: "in", mutate: func(c *IngestConfig) { c.Shape = ShapeWide }, wantErr: ErrInvalidShape},
		{name: "unknown shape", unit: "in", mutate: func(c *IngestConfig) { c.Shape = "tall" }, wantMsg: "Shape"},
		{name: "missing subject column", unit: "in", mutate: func(c *IngestConfig) { c.Columns.Subject = "" }, wantMsg: "Subject"},
		{
			name:    "bad direction",
			unit:    "in",
			mutate:  func(c *IngestConfig) { c.Directions = map[string]domain.Direction{"FID": "down"} },
			wantMsg: "Directions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gradeIngestConfig()
			tt.mutate(&cfg)
			_, err := NewIngestUnit(tt.unit, cfg)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNewIngestFromConfig(t *testing.T) {
	unit, err := NewIngestFromConfig("ingest", map[string]any{
		"shape": "wide",
		"columns": map[string]any{
			"subject": "文件名",
			"metrics": []any{"HPSv2得分"},
		},
		"directions": map[string]any{"SSIM": "higher_better"},
	})
	require.NoError(t, err)

	iu := unit.(*IngestUnit)
	assert.Equal(t, ShapeWide, iu.config.Shape)
	assert.Equal(t, domain.LowerBetter, iu.config.Directions["FID"], "defaults survive the overlay")
	assert.Equal(t, domain.HigherBetter, iu.config.Directions["SSIM"])

	_, err = NewIngestFromConfig("ingest", map[string]any{"shape": "long", "columns": map[string]any{"subject": "id"}})
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestNewIngestFromConfig_YAMLParameters(t *testing.T) {
	decode := func(t *testing.T, doc string) map[string]any {
		t.Helper()
		params := make(map[string]any)
		require.NoError(t, yaml.Unmarshal([]byte(doc), &params))
		return params
	}

	unit, err := NewIngestFromConfig("ingest", decode(t, `
shape: wide
group: "3"
columns:
  subject: "#3"
  metrics: ["#4", "#5"]
`))
	require.NoError(t, err)
	iu := unit.(*IngestUnit)
	assert.Equal(t, ShapeWide, iu.config.Shape)
	assert.Equal(t, "3", iu.config.Group)
	assert.Equal(t, []string{"#4", "#5"}, iu.config.Columns.Metrics)

	_, err = NewIngestFromConfig("ingest", decode(t, `shape: wide`))
	assert.Error(t, err)
}

func FuzzIngestUnit_Cells(f *testing.F) {
	f.Add("2024001", "0", "80", "3")
	f.Add("", "1", "NaN", "-1")
	f.Add("x", "", "1e400", "abc")

	unit, err := NewIngestUnit("ingest", gradeIngestConfig())
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, id, category, value, weight string) {
		table := domain.Table{
			Header: []string{"学号", "姓名", "课程性质", "成绩", "学分"},
			Rows:   [][]string{{id, "n", category, value, weight}},
		}
		state, err := unit.Execute(context.Background(), domain.With(domain.NewState(), domain.KeyTable, table))
		if err != nil {
			t.Fatalf("per-row problems must not abort ingestion: %v", err)
		}
		subjects, _ := domain.Get(state, domain.KeySubjects)
		failures, _ := domain.Get(state, domain.KeyFailures)
		measurements, _ := domain.Get(state, domain.KeyMeasurements)
		if len(subjects) > 1 || len(measurements) > 1 {
			t.Fatalf("one subject and at most one measurement expected, got %d and %d", len(subjects), len(measurements))
		}
		if len(measurements) == 1 && len(failures) > 0 {
			for _, failure := range failures {
				if failure.SubjectID == measurements[0].SubjectID {
					t.Fatalf("failed subject kept a measurement")
				}
			}
		}
	})
}
