package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("failed to load default catalog: %v", err)
	}

	pts, ok := c.Points("dryer")
	if !ok || pts != 190 {
		t.Errorf("dryer = %d,%v want 190,true", pts, ok)
	}
	pts, ok = c.Points("lights_off")
	if !ok || pts != 10 {
		t.Errorf("lights_off = %d,%v want 10,true", pts, ok)
	}
	if _, ok := c.Points("none"); ok {
		t.Error("the none sentinel must not resolve to a catalog action")
	}
	if _, ok := c.Points("jet_ski"); ok {
		t.Error("unknown ids must not resolve")
	}

	for _, a := range c.Actions() {
		if a.Points < 5 || a.Points > 190 {
			t.Errorf("action %s has out-of-range point value %d", a.ID, a.Points)
		}
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.yaml")
	yaml := `actions:
  - id: lights_off
    label: Lights off
    description: Turn the lights off
    points: 10
  - id: dryer
    label: Skip the dryer
    description: Air-dry instead
    points: 190
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	if len(c.Actions()) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(c.Actions()))
	}
	if pts, _ := c.Points("dryer"); pts != 190 {
		t.Errorf("dryer = %d want 190", pts)
	}
}

func TestLoadRejectsDuplicatesAndReservedIDs(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	os.WriteFile(dup, []byte("actions:\n  - id: a\n    points: 5\n  - id: a\n    points: 6\n"), 0o644)
	if _, err := Load(dup); err == nil {
		t.Error("duplicate ids should be rejected")
	}

	reserved := filepath.Join(dir, "reserved.yaml")
	os.WriteFile(reserved, []byte("actions:\n  - id: none\n    points: 5\n"), 0o644)
	if _, err := Load(reserved); err == nil {
		t.Error("the none sentinel should be rejected as an action id")
	}
}

func TestBuildWeek(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, time.March, 9, 14, 30, 0, 0, time.UTC)
	week := c.BuildWeek(start)

	if len(week.Challenges) != 7 {
		t.Fatalf("expected 7 challenges, got %d", len(week.Challenges))
	}
	if !week.Start.Equal(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start should be truncated to midnight, got %v", week.Start)
	}

	for i, ch := range week.Challenges {
		if ch.ID != i+1 {
			t.Errorf("challenge at position %d has id %d", i, ch.ID)
		}
		wantDate := week.Start.AddDate(0, 0, i)
		if !ch.Date.Equal(wantDate) {
			t.Errorf("challenge %d date = %v want %v", ch.ID, ch.Date, wantDate)
		}
		if ch.StartTime.Hour() != 19 || ch.EndTime.Hour() != 20 {
			t.Errorf("challenge %d window = %v-%v want 19:00-20:00", ch.ID, ch.StartTime, ch.EndTime)
		}
		if len(ch.RecommendedActions) == 0 {
			t.Errorf("challenge %d has no recommended actions", ch.ID)
		}
		for _, id := range ch.RecommendedActions {
			if !c.Has(id) {
				t.Errorf("challenge %d recommends unknown action %q", ch.ID, id)
			}
		}
	}

	if week.ByID(0) != nil || week.ByID(8) != nil {
		t.Error("out-of-range ids should resolve to nil")
	}
	if week.ByID(3) != week.Challenges[2] {
		t.Error("ByID should index 1-based")
	}
}
