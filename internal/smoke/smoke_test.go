package smoke

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
)

type fakeRunner struct {
	queries []string
	failFor map[string]error
}

func (f *fakeRunner) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	f.queries = append(f.queries, query)
	for frag, err := range f.failFor {
		if strings.Contains(query, frag) {
			return nil, err
		}
	}
	return &adapter.QueryResult{}, nil
}

func doubleQuote(ident string) string { return `"` + ident + `"` }

// fixedDefaults keeps procedure argument expectations year-independent.
func fixedDefaults() Defaults {
	return Defaults{
		Integer:       "1",
		Bit:           "0",
		Decimal:       "1.0",
		Varchar:       "test",
		StartDate:     "2024-01-01",
		EndDate:       "2024-12-31",
		StartDateTime: "2024-01-01 00:00:00",
		EndDateTime:   "2024-12-31 23:59:59",
	}
}

func TestProbeViewsUsesTopOnSQLServer(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo"})

	views := []schema.View{{Name: "v_orders"}, {Name: "v_customers"}}
	outcomes, err := suite.ProbeViews(context.Background(), views)
	if err != nil {
		t.Fatalf("ProbeViews() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcome count = %d, want 2", len(outcomes))
	}

	// Probes run in name order.
	want := []string{
		"SELECT TOP 1 * FROM [dbo].[v_customers]",
		"SELECT TOP 1 * FROM [dbo].[v_orders]",
	}
	if !reflect.DeepEqual(run.queries, want) {
		t.Errorf("queries = %v, want %v", run.queries, want)
	}
	for _, o := range outcomes {
		if !o.OK || o.Kind != KindView {
			t.Errorf("outcome %+v, want passing view probe", o)
		}
	}
}

func TestProbeViewsUsesLimitElsewhere(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "postgres", Quote: doubleQuote, Schema: "public"})

	if _, err := suite.ProbeViews(context.Background(), []schema.View{{Name: "v_orders"}}); err != nil {
		t.Fatalf("ProbeViews() error = %v", err)
	}
	want := `SELECT * FROM "public"."v_orders" LIMIT 1`
	if run.queries[0] != want {
		t.Errorf("query = %q, want %q", run.queries[0], want)
	}
}

func TestProbeViewsRecordsFailure(t *testing.T) {
	run := &fakeRunner{failFor: map[string]error{
		"v_broken": errors.New("mssql: Invalid column name 'legacy_flag'.\nstatement aborted"),
	}}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo"})

	outcomes, err := suite.ProbeViews(context.Background(), []schema.View{
		{Name: "v_broken"}, {Name: "v_ok"},
	})
	if err != nil {
		t.Fatalf("ProbeViews() error = %v", err)
	}

	failed := Failures(outcomes)
	if len(failed) != 1 || failed[0].Name != "v_broken" {
		t.Fatalf("Failures() = %+v, want only v_broken", failed)
	}
	if failed[0].Err != "mssql: Invalid column name 'legacy_flag'." {
		t.Errorf("Err = %q, want first line only", failed[0].Err)
	}

	ok, bad := Counts(outcomes)
	if ok != 1 || bad != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", ok, bad)
	}
}

func TestProbeProceduresSynthesizesArguments(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo", Defaults: fixedDefaults()})

	proc := schema.Routine{
		Name: "usp_rebuild_report",
		Type: "PROCEDURE",
		Params: []schema.RoutineParam{
			{Name: "@start_date", Type: "date", Position: 1},
			{Name: "@end_date", Type: "datetime", Position: 2},
			{Name: "@batch", Type: "int", Position: 3},
			{Name: "@label", Type: "nvarchar(50)", Position: 4},
			{Name: "@dry_run", Type: "bit", Position: 5},
			{Name: "@rate", Type: "decimal(18,2)", Position: 6},
			{Name: "@payload", Type: "varbinary(max)", Position: 7},
		},
	}

	if _, err := suite.ProbeProcedures(context.Background(), []schema.Routine{proc}); err != nil {
		t.Fatalf("ProbeProcedures() error = %v", err)
	}

	want := "EXEC [dbo].[usp_rebuild_report] " +
		"'2024-01-01', '2024-12-31 23:59:59', '1', 'test', '0', '1.0', NULL"
	if run.queries[0] != want {
		t.Errorf("call = %q\nwant   %q", run.queries[0], want)
	}
}

func TestProbeProceduresOrdersByPosition(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo", Defaults: fixedDefaults()})

	proc := schema.Routine{
		Name: "usp_window",
		Type: "PROCEDURE",
		Params: []schema.RoutineParam{
			{Name: "@end_date", Type: "date", Position: 2},
			{Name: "@start_date", Type: "date", Position: 1},
		},
	}

	if _, err := suite.ProbeProcedures(context.Background(), []schema.Routine{proc}); err != nil {
		t.Fatalf("ProbeProcedures() error = %v", err)
	}
	want := "EXEC [dbo].[usp_window] '2024-01-01', '2024-12-31'"
	if run.queries[0] != want {
		t.Errorf("call = %q, want %q", run.queries[0], want)
	}
}

func TestProbeProceduresSkipsFunctions(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo"})

	outcomes, err := suite.ProbeProcedures(context.Background(), []schema.Routine{
		{Name: "fn_total", Type: "FUNCTION"},
		{Name: "usp_nightly", Type: "PROCEDURE"},
	})
	if err != nil {
		t.Fatalf("ProbeProcedures() error = %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Name != "usp_nightly" {
		t.Errorf("outcomes = %+v, want only usp_nightly", outcomes)
	}
	if run.queries[0] != "EXEC [dbo].[usp_nightly]" {
		t.Errorf("no-arg call = %q", run.queries[0])
	}
}

func TestProbeProceduresCallDialect(t *testing.T) {
	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "postgres", Quote: doubleQuote, Schema: "public", Defaults: fixedDefaults()})

	proc := schema.Routine{
		Name: "refresh_totals",
		Type: "PROCEDURE",
		Params: []schema.RoutineParam{
			{Name: "batch_size", Type: "integer", Position: 1},
		},
	}
	if _, err := suite.ProbeProcedures(context.Background(), []schema.Routine{proc}); err != nil {
		t.Fatalf("ProbeProcedures() error = %v", err)
	}
	want := `CALL "public"."refresh_totals"('1')`
	if run.queries[0] != want {
		t.Errorf("call = %q, want %q", run.queries[0], want)
	}
}

func TestProbeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &fakeRunner{}
	suite := New(run, Options{Adapter: "mssql", Schema: "dbo"})

	outcomes, err := suite.ProbeViews(ctx, []schema.View{{Name: "v_orders"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(outcomes) != 0 || len(run.queries) != 0 {
		t.Errorf("cancelled sweep still probed: %v", run.queries)
	}
}

func TestPickDate(t *testing.T) {
	cases := []struct{ name, want string }{
		{"@start_date", "lo"},
		{"@end_date", "hi"},
		{"@END_DATETIME", "hi"},
		{"@as_of", "lo"},
	}
	for _, c := range cases {
		if got := pickDate(c.name, "lo", "hi"); got != c.want {
			t.Errorf("pickDate(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestBaseType(t *testing.T) {
	cases := []struct{ in, want string }{
		{"INT", "int"},
		{"nvarchar(50)", "nvarchar"},
		{"decimal(18,2)", "decimal"},
		{"timestamp without time zone", "timestamp without time zone"},
		{" datetime2(7) ", "datetime2"},
	}
	for _, c := range cases {
		if got := baseType(c.in); got != c.want {
			t.Errorf("baseType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestArgForUnknownTypeIsNull(t *testing.T) {
	suite := New(&fakeRunner{}, Options{Adapter: "mssql", Defaults: fixedDefaults()})
	if got := suite.argFor(schema.RoutineParam{Name: "@geo", Type: "geography"}); got != "NULL" {
		t.Errorf("argFor(geography) = %q, want NULL", got)
	}
}

func TestArgForEscapesDefaults(t *testing.T) {
	d := fixedDefaults()
	d.Varchar = "o'brien"
	suite := New(&fakeRunner{}, Options{Adapter: "mssql", Defaults: d})
	if got := suite.argFor(schema.RoutineParam{Name: "@name", Type: "varchar(20)"}); got != "'o''brien'" {
		t.Errorf("argFor(varchar) = %q", got)
	}
}

func TestStandardDefaultsFilled(t *testing.T) {
	d := StandardDefaults()
	if d.Integer == "" || d.StartDate == "" || d.EndDateTime == "" {
		t.Errorf("StandardDefaults() left fields empty: %+v", d)
	}
	if !strings.HasSuffix(d.StartDate, "-01-01") || !strings.HasSuffix(d.EndDate, "-12-31") {
		t.Errorf("defaults should span a calendar year: %+v", d)
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil)
	if _, err := s.Start("not a cron line", func() {}); err == nil {
		t.Error("Start() with malformed spec should fail")
	}
}

func TestSchedulerReportsNextRun(t *testing.T) {
	s := NewScheduler(nil)
	next, err := s.Start("*/5 * * * *", func() {})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if next.IsZero() {
		t.Error("Start() returned zero next-run time")
	}
}

func TestViewProbeQuotesIdentifiers(t *testing.T) {
	suite := New(&fakeRunner{}, Options{Adapter: "mssql", Schema: "dbo"})
	got := suite.viewProbe("v]tricky")
	if got != "SELECT TOP 1 * FROM [dbo].[v]]tricky]" {
		t.Errorf("probe = %q", got)
	}
}
