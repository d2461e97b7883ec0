// Package smoke probes database views and stored procedures to find
// objects broken by schema drift. Views are probed with a single-row
// select; procedures are executed with synthesized default arguments.
package smoke

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
	"github.com/sqlsweep/sqlsweep/internal/sqlgen"
)

// Object kinds a probe can target.
const (
	KindView      = "view"
	KindProcedure = "procedure"
)

// Runner executes one statement. The open adapter connection satisfies it.
type Runner interface {
	Execute(ctx context.Context, query string) (*adapter.QueryResult, error)
}

// Defaults are the literal values substituted for procedure parameters by
// type. Date values are ISO formatted strings.
type Defaults struct {
	Integer       string
	Bit           string
	Decimal       string
	Varchar       string
	StartDate     string
	EndDate       string
	StartDateTime string
	EndDateTime   string
}

// StandardDefaults spans the current calendar year, so date-bounded
// procedures see a plausible reporting window.
func StandardDefaults() Defaults {
	year := time.Now().Year()
	return Defaults{
		Integer:       "1",
		Bit:           "0",
		Decimal:       "1.0",
		Varchar:       "test",
		StartDate:     fmt.Sprintf("%d-01-01", year),
		EndDate:       fmt.Sprintf("%d-12-31", year),
		StartDateTime: fmt.Sprintf("%d-01-01 00:00:00", year),
		EndDateTime:   fmt.Sprintf("%d-12-31 23:59:59", year),
	}
}

// Outcome records one probe.
type Outcome struct {
	Name    string
	Kind    string
	OK      bool
	Elapsed time.Duration
	Query   string
	Err     string
}

// Failures filters the outcomes down to the broken objects.
func Failures(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.OK {
			out = append(out, o)
		}
	}
	return out
}

// Counts tallies passed and failed probes.
func Counts(outcomes []Outcome) (ok, failed int) {
	for _, o := range outcomes {
		if o.OK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// Options configure a Suite for one connection.
type Options struct {
	// Adapter is the engine name; it selects the probe dialect (TOP for
	// SQL Server, LIMIT elsewhere) and EXEC versus CALL.
	Adapter  string
	Quote    sqlgen.Quoter
	Schema   string
	Defaults Defaults
	Log      *slog.Logger
}

// Suite runs probes against one connection.
type Suite struct {
	run  Runner
	opts Options
}

// New builds a Suite. A zero Defaults value is replaced with
// StandardDefaults; a nil logger falls back to slog.Default.
func New(run Runner, opts Options) *Suite {
	if opts.Defaults == (Defaults{}) {
		opts.Defaults = StandardDefaults()
	}
	if opts.Quote == nil {
		opts.Quote = sqlgen.BracketQuote
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Suite{run: run, opts: opts}
}

// ProbeViews selects one row from each view, in name order. A cancelled
// context stops the sweep and returns the outcomes gathered so far along
// with the context error.
func (s *Suite) ProbeViews(ctx context.Context, views []schema.View) ([]Outcome, error) {
	sorted := make([]schema.View, len(views))
	copy(sorted, views)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var outcomes []Outcome
	for _, v := range sorted {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, s.probe(ctx, KindView, v.Name, s.viewProbe(v.Name)))
	}
	return outcomes, nil
}

// ProbeProcedures executes each stored procedure with synthesized
// arguments, in name order. Routines that are not procedures are skipped.
func (s *Suite) ProbeProcedures(ctx context.Context, routines []schema.Routine) ([]Outcome, error) {
	procs := make([]schema.Routine, 0, len(routines))
	for _, r := range routines {
		if r.Type == "PROCEDURE" {
			procs = append(procs, r)
		}
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })

	var outcomes []Outcome
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, s.probe(ctx, KindProcedure, p.Name, s.procCall(p)))
	}
	return outcomes, nil
}

func (s *Suite) probe(ctx context.Context, kind, name, query string) Outcome {
	start := time.Now()
	_, err := s.run.Execute(ctx, query)
	elapsed := time.Since(start)

	outcome := Outcome{Name: name, Kind: kind, OK: err == nil, Elapsed: elapsed, Query: query}
	if err != nil {
		outcome.Err = briefError(err)
		s.opts.Log.Warn("probe failed", "kind", kind, "name", name, "error", outcome.Err)
	} else {
		s.opts.Log.Debug("probe passed", "kind", kind, "name", name, "elapsed", elapsed)
	}
	return outcome
}

func (s *Suite) viewProbe(name string) string {
	qualified := sqlgen.QualifiedTable(s.opts.Quote, s.opts.Schema, name)
	if s.opts.Adapter == "mssql" {
		return "SELECT TOP 1 * FROM " + qualified
	}
	return "SELECT * FROM " + qualified + " LIMIT 1"
}

func (s *Suite) procCall(p schema.Routine) string {
	params := make([]schema.RoutineParam, len(p.Params))
	copy(params, p.Params)
	sort.Slice(params, func(i, j int) bool { return params[i].Position < params[j].Position })

	args := make([]string, 0, len(params))
	for _, param := range params {
		args = append(args, s.argFor(param))
	}

	qualified := sqlgen.QualifiedTable(s.opts.Quote, s.opts.Schema, p.Name)
	list := strings.Join(args, ", ")
	if s.opts.Adapter == "mssql" {
		if list == "" {
			return "EXEC " + qualified
		}
		return "EXEC " + qualified + " " + list
	}
	return "CALL " + qualified + "(" + list + ")"
}

// argFor picks a literal for one parameter. Values are passed as quoted
// strings and left to the engine's implicit conversion; types without a
// mapping get NULL.
func (s *Suite) argFor(p schema.RoutineParam) string {
	d := s.opts.Defaults
	switch base := baseType(p.Type); base {
	case "date":
		return sqlgen.StringLiteral(pickDate(p.Name, d.StartDate, d.EndDate))
	case "datetime", "datetime2", "smalldatetime", "timestamp",
		"timestamp without time zone", "timestamp with time zone":
		return sqlgen.StringLiteral(pickDate(p.Name, d.StartDateTime, d.EndDateTime))
	case "int", "integer", "bigint", "smallint", "tinyint":
		return sqlgen.StringLiteral(d.Integer)
	case "bit", "bool", "boolean":
		return sqlgen.StringLiteral(d.Bit)
	case "decimal", "numeric", "money", "smallmoney", "float", "real", "double precision":
		return sqlgen.StringLiteral(d.Decimal)
	case "varchar", "nvarchar", "char", "nchar", "text", "character varying", "character":
		return sqlgen.StringLiteral(d.Varchar)
	default:
		return "NULL"
	}
}

// pickDate chooses the window edge from the parameter name: anything
// mentioning "end" gets the upper bound, everything else the lower.
func pickDate(paramName, start, end string) string {
	if strings.Contains(strings.ToLower(paramName), "end") {
		return end
	}
	return start
}

// baseType reduces a declared type to its bare name.
func baseType(t string) string {
	s := strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// briefError keeps the first line of a driver error so summaries stay one
// row per object.
func briefError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	return msg
}
