package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()

	s, err := Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return s
}

// cleanupRun builds a plausible record for the given root table, offset into
// the timeline by n seconds.
func cleanupRun(root string, n int) Run {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return Run{
		RunID:      "run-" + root,
		Tool:       "cleanup",
		Connection: "mssql://sql.local:1433/app",
		Database:   "app",
		RootTable:  root,
		Mode:       "script",
		Tables:     3,
		Records:    120,
		MaxLevel:   2,
		DurationMS: 450,
		Artifact:   "output/scripts/app_cleanup.sql",
		StartedAt:  base.Add(time.Duration(n) * time.Second),
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("history db not created: %v", err)
	}

	runs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() on new store error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Recent() on new store = %d runs, want 0", len(runs))
	}
}

func TestAddAndRecent(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	roots := []string{"orders", "customers", "invoices", "shipments", "payments"}
	for i, root := range roots {
		if err := s.Add(cleanupRun(root, i)); err != nil {
			t.Fatalf("Add() run %d error = %v", i, err)
		}
	}

	runs, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent(3) error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Recent(3) returned %d runs, want 3", len(runs))
	}

	// Most recent first: payments, shipments, invoices
	wantRoots := []string{"payments", "shipments", "invoices"}
	for i, want := range wantRoots {
		if runs[i].RootTable != want {
			t.Errorf("runs[%d].RootTable = %q, want %q", i, runs[i].RootTable, want)
		}
	}
}

func TestSearchMatchesRootDatabaseAndTool(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	runs := []Run{
		cleanupRun("orders", 0),
		cleanupRun("order_items", 1),
		cleanupRun("customers", 2),
	}
	smoke := cleanupRun("", 3)
	smoke.Tool = "smoke"
	smoke.Database = "reporting"
	runs = append(runs, smoke)

	for i, r := range runs {
		if err := s.Add(r); err != nil {
			t.Fatalf("Add() run %d error = %v", i, err)
		}
	}

	tests := []struct {
		name    string
		pattern string
		want    int
	}{
		{"root prefix", "order%", 2},
		{"root exact", "customers", 1},
		{"database", "reporting", 1},
		{"tool", "smoke", 1},
		{"shared database", "app", 3},
		{"no match", "%nonexistent%", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(tt.pattern, 100)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.pattern, err)
			}
			if len(got) != tt.want {
				t.Errorf("Search(%q) returned %d runs, want %d", tt.pattern, len(got), tt.want)
			}
		})
	}
}

func TestSearchOrdersMostRecentFirst(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	for i, root := range []string{"orders_a", "orders_b", "orders_c"} {
		if err := s.Add(cleanupRun(root, i)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got, err := s.Search("orders%", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Search() returned %d runs, want 3", len(got))
	}
	if got[0].RootTable != "orders_c" {
		t.Errorf("got[0].RootTable = %q, want orders_c", got[0].RootTable)
	}
}

func TestRecentWithLimit(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	for i := range 10 {
		if err := s.Add(cleanupRun("t"+string(rune('0'+i)), i)); err != nil {
			t.Fatalf("Add() run %d error = %v", i, err)
		}
	}

	runs, err := s.Recent(5)
	if err != nil {
		t.Fatalf("Recent(5) error = %v", err)
	}
	if len(runs) != 5 {
		t.Fatalf("Recent(5) returned %d runs, want 5", len(runs))
	}

	all, err := s.Recent(100)
	if err != nil {
		t.Fatalf("Recent(100) error = %v", err)
	}
	if len(all) != 10 {
		t.Errorf("Recent(100) returned %d runs, want 10", len(all))
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	for i := range 3 {
		if err := s.Add(cleanupRun("t"+string(rune('A'+i)), i)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	before, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() before clear error = %v", err)
	}
	if len(before) != 3 {
		t.Fatalf("Recent() before clear = %d, want 3", len(before))
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	after, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() after clear error = %v", err)
	}
	if len(after) != 0 {
		t.Errorf("Recent() after clear = %d runs, want 0", len(after))
	}
}

func TestRunFieldsRoundtrip(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	started := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	run := Run{
		RunID:      "7d9e2f10-1b2c-4d3e-8f4a-5b6c7d8e9f00",
		Tool:       "cleanup",
		Connection: "postgres://%2A%2A%2A@db.prod:5432/shop",
		Database:   "shop",
		RootTable:  "dbo.orders",
		Mode:       "execute",
		Tables:     7,
		Records:    15234,
		MaxLevel:   4,
		Committed:  true,
		DurationMS: 8421,
		Artifact:   "output/scripts/shop_cleanup_20260315_143000.sql",
		StartedAt:  started,
	}

	if err := s.Add(run); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	runs, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent(1) error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Recent(1) returned %d runs, want 1", len(runs))
	}

	got := runs[0]
	if got.ID == 0 {
		t.Error("ID should be non-zero after insert")
	}
	if got.RunID != run.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, run.RunID)
	}
	if got.Tool != run.Tool {
		t.Errorf("Tool = %q, want %q", got.Tool, run.Tool)
	}
	if got.Connection != run.Connection {
		t.Errorf("Connection = %q, want %q", got.Connection, run.Connection)
	}
	if got.RootTable != run.RootTable {
		t.Errorf("RootTable = %q, want %q", got.RootTable, run.RootTable)
	}
	if got.Mode != run.Mode {
		t.Errorf("Mode = %q, want %q", got.Mode, run.Mode)
	}
	if got.Tables != run.Tables || got.Records != run.Records || got.MaxLevel != run.MaxLevel {
		t.Errorf("counters = (%d, %d, %d), want (%d, %d, %d)",
			got.Tables, got.Records, got.MaxLevel, run.Tables, run.Records, run.MaxLevel)
	}
	if !got.Committed {
		t.Error("Committed = false, want true")
	}
	if got.DurationMS != run.DurationMS {
		t.Errorf("DurationMS = %d, want %d", got.DurationMS, run.DurationMS)
	}
	if got.Artifact != run.Artifact {
		t.Errorf("Artifact = %q, want %q", got.Artifact, run.Artifact)
	}
	// SQLite may lose sub-second precision.
	if got.StartedAt.Sub(started).Abs() > time.Second {
		t.Errorf("StartedAt = %v, want approximately %v", got.StartedAt, started)
	}
}

func TestAddStampsMissingStart(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()

	run := cleanupRun("orders", 0)
	run.StartedAt = time.Time{}
	before := time.Now().UTC().Add(-time.Second)

	if err := s.Add(run); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	runs, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent(1) error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Recent(1) returned %d runs, want 1", len(runs))
	}
	if runs[0].StartedAt.Before(before) {
		t.Errorf("StartedAt = %v, want stamped at insert time", runs[0].StartedAt)
	}
}

func TestCloseAndReopen(t *testing.T) {
	dir := t.TempDir()

	// First session: add runs
	s1 := newTestStore(t, dir)
	for i := range 3 {
		if err := s1.Add(cleanupRun("t"+string(rune('A'+i)), i)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() first session error = %v", err)
	}

	// Second session: reopen and verify runs persist
	s2 := newTestStore(t, dir)
	defer s2.Close()

	runs, err := s2.Recent(10)
	if err != nil {
		t.Fatalf("Recent() after reopen error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Recent() after reopen = %d runs, want 3", len(runs))
	}

	if runs[0].RootTable != "tC" {
		t.Errorf("runs[0].RootTable = %q, want tC", runs[0].RootTable)
	}
	if runs[2].RootTable != "tA" {
		t.Errorf("runs[2].RootTable = %q, want tA", runs[2].RootTable)
	}
}
