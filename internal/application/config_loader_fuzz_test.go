package application

import (
	"context"
	"testing"
)

// FuzzConfigLoader_Load checks that arbitrary input never panics the
// loader and that every accepted configuration yields a usable plan.
func FuzzConfigLoader_Load(f *testing.F) {
	f.Add([]byte(scoreRankYAML))
	f.Add([]byte(scoreRankReformatted))
	f.Add([]byte(`version: "1.0.0"`))
	f.Add([]byte("units: [{id: a, type: ingest, parameters: 3}]\npipeline: [a]"))
	f.Add([]byte("{}"))
	f.Add([]byte(""))

	loader, err := NewConfigLoader(NewDefaultUnitRegistry())
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		plan, err := loader.Load(context.Background(), data)
		if err != nil {
			return
		}
		if plan == nil {
			t.Fatal("nil plan without error")
		}
		if len(plan.Units()) != len(plan.Config.Pipeline) {
			t.Fatalf("plan has %d units for a %d step pipeline", len(plan.Units()), len(plan.Config.Pipeline))
		}
		if plan.Name() == "" {
			t.Fatal("accepted a run without a name")
		}
	})
}
