package estimate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/workforcehq/foreman/pkg/models"
)

func TestEstimateSumsPerTask(t *testing.T) {
	table := &Table{Default: Entry{DurationMinutes: 3, CostCents: 50}}
	est := NewEstimator(table)

	plan := &models.Plan{}
	for i := 0; i < 5; i++ {
		plan.Tasks = append(plan.Tasks, &models.Task{ID: string(rune('a' + i))})
	}

	got := est.Estimate(plan)
	if got.TaskCount != 5 {
		t.Errorf("TaskCount = %d, want 5", got.TaskCount)
	}
	if got.EstimatedDurationMinutes != 15 {
		t.Errorf("EstimatedDurationMinutes = %d, want 15", got.EstimatedDurationMinutes)
	}
	if got.EstimatedCostCents != 250 {
		t.Errorf("EstimatedCostCents = %d, want 250", got.EstimatedCostCents)
	}
}

func TestLookupFallbackChain(t *testing.T) {
	table := &Table{
		Default: Entry{DurationMinutes: 1, CostCents: 10},
		Domains: map[string]DomainEntry{
			"research": {
				Default: &Entry{DurationMinutes: 2, CostCents: 20},
				Agents: map[string]Entry{
					"archivist": {DurationMinutes: 3, CostCents: 30},
				},
			},
			"design": {},
		},
	}

	if e := table.Lookup("research", "archivist"); e.CostCents != 30 {
		t.Errorf("agent entry: got %d cents, want 30", e.CostCents)
	}
	if e := table.Lookup("research", "unknown"); e.CostCents != 20 {
		t.Errorf("domain default: got %d cents, want 20", e.CostCents)
	}
	if e := table.Lookup("design", "anyone"); e.CostCents != 10 {
		t.Errorf("domain without default: got %d cents, want 10", e.CostCents)
	}
	if e := table.Lookup("aviation", "pilot"); e.CostCents != 10 {
		t.Errorf("unknown domain: got %d cents, want 10", e.CostCents)
	}
}

func TestEstimateUsesDomainProjections(t *testing.T) {
	est := NewEstimator(nil)
	plan := &models.Plan{Tasks: []*models.Task{
		{ID: "a", Domain: "research"},
		{ID: "b", Domain: "engineering"},
	}}

	got := est.Estimate(plan)
	want := DefaultTable()
	wantMinutes := want.Domains["research"].Default.DurationMinutes +
		want.Domains["engineering"].Default.DurationMinutes
	if got.EstimatedDurationMinutes != wantMinutes {
		t.Errorf("EstimatedDurationMinutes = %d, want %d", got.EstimatedDurationMinutes, wantMinutes)
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.yaml")
	content := `default:
  duration_minutes: 4
  cost_cents: 75
domains:
  research:
    default:
      duration_minutes: 9
      cost_cents: 140
    agents:
      archivist:
        duration_minutes: 11
        cost_cents: 180
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if table.Default.CostCents != 75 {
		t.Errorf("default cost = %d, want 75", table.Default.CostCents)
	}
	if e := table.Lookup("research", "archivist"); e.DurationMinutes != 11 {
		t.Errorf("agent duration = %d, want 11", e.DurationMinutes)
	}
	if e := table.Lookup("research", "other"); e.CostCents != 140 {
		t.Errorf("domain default cost = %d, want 140", e.CostCents)
	}
}

func TestLoadTableMissingDefaultFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.yaml")
	content := `domains:
  design:
    default:
      duration_minutes: 7
      cost_cents: 90
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	builtin := DefaultTable().Default
	if table.Default != builtin {
		t.Errorf("missing default must fall back to built-in, got %+v", table.Default)
	}
}

func TestLoadTableErrors(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("default: [not a map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Error("malformed yaml must error")
	}
}
