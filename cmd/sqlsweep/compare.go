package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/objdiff"
	"github.com/sqlsweep/sqlsweep/internal/suggest"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui/progress"
)

var kindTitles = map[string]string{
	objdiff.KindView:      "Views",
	objdiff.KindProcedure: "Procedures",
	objdiff.KindFunction:  "Functions",
}

func newCompareCmd(rt *rootState) *cobra.Command {
	var (
		schemaName string
		kind       string
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "compare <connection> <connection> [connection...]",
		Short: "Compare object definitions across environments",
		Long: `compare checksums the definitions of views, procedures, and functions in
two or more saved connections and prints a matrix showing which environments
agree. Definitions are normalized before hashing, so formatting differences
do not count.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "all", objdiff.KindView, objdiff.KindProcedure, objdiff.KindFunction:
			default:
				return fmt.Errorf("invalid kind %q (view, procedure, function, all)", kind)
			}
			return runCompare(cmd.Context(), rt, args, schemaName, kind, save)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&schemaName, "schema", "s", "", "Schema to compare")
	f.StringVarP(&kind, "kind", "k", "all", "Object kind: view, procedure, function, or all")
	f.BoolVar(&save, "save", false, "Write the comparison matrix as a CSV artifact")
	return cmd
}

func runCompare(ctx context.Context, rt *rootState, envs []string, schemaName, kind string, save bool) error {
	start := time.Now()
	p := rt.printer

	conns := make(map[string]adapter.Connection, len(envs))
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for _, env := range envs {
		conn, err := connectSaved(ctx, rt, env)
		if err != nil {
			return err
		}
		conns[env] = conn
	}

	kinds := []string{kind}
	if kind == "all" {
		kinds = objdiff.Kinds
	}

	results := make([]*objdiff.Result, 0, len(kinds))
	err := progress.Run("Fetching definitions...", theme.Current, func() error {
		for _, k := range kinds {
			defs := make(map[string]map[string]string, len(envs))
			for _, env := range envs {
				conn := conns[env]
				d, err := objdiff.FetchDefinitions(ctx, conn, conn.DatabaseName(), schemaName, k)
				if err != nil {
					return fmt.Errorf("%s: %w", env, err)
				}
				defs[env] = d
			}
			results = append(results, objdiff.Compare(schemaName, k, envs, defs))
		}
		return nil
	})
	if err != nil {
		return err
	}

	differing := 0
	for _, res := range results {
		printCompareResult(rt, res)
		differing += len(res.Differing())
	}
	if differing == 0 {
		p.Successf("All definitions match across %s.", strings.Join(envs, ", "))
	}

	var artifactLoc string
	if save {
		sink, err := rt.openSink(ctx)
		if err != nil {
			return err
		}
		data, err := compareCSV(results)
		if err != nil {
			return err
		}
		artifactLoc, err = sink.Write(ctx, artifact.Name("reports", "definition_compare", "csv", start), data)
		if err != nil {
			return fmt.Errorf("write comparison: %w", err)
		}
		p.Successf("Comparison written to %s", artifactLoc)
	}

	recordRun(rt, history.Run{
		RunID:      newRunID(),
		Tool:       "compare",
		Connection: strings.Join(envs, ","),
		Mode:       kind,
		Tables:     differing,
		DurationMS: time.Since(start).Milliseconds(),
		Artifact:   artifactLoc,
		StartedAt:  start,
	})
	return nil
}

// connectSaved opens one saved connection by name, for commands that take
// environments as positional arguments.
func connectSaved(ctx context.Context, rt *rootState, env string) (adapter.Connection, error) {
	sc, ok := rt.cfg.Connection(env)
	if !ok {
		msg := fmt.Sprintf("unknown connection %q", env)
		if hint := suggest.Hint(env, rt.cfg.ConnectionNames()); hint != "" {
			msg += ", " + hint
		}
		return nil, fmt.Errorf("%s", msg)
	}
	dsn, err := sc.ResolveDSN()
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", env, err)
	}
	a, ok := adapter.Get(strings.ToLower(sc.Adapter))
	if !ok {
		return nil, fmt.Errorf("connection %q: unknown adapter %q", env, sc.Adapter)
	}
	conn, err := a.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", env, err)
	}
	return conn, nil
}

func printCompareResult(rt *rootState, res *objdiff.Result) {
	p := rt.printer
	p.Title(kindTitles[res.Kind])
	if len(res.Rows) == 0 {
		p.Mutedf("No %s found.", strings.ToLower(kindTitles[res.Kind]))
		return
	}

	headers := append([]string{"OBJECT"}, upperAll(res.Environments)...)
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		rows = append(rows, append([]string{row.Name}, row.Checksums...))
	}
	p.Table(headers, rows)

	if diff := res.Differing(); len(diff) > 0 {
		names := make([]string, 0, len(diff))
		for _, row := range diff {
			names = append(names, row.Name)
		}
		p.Warnf("%d of %d differ: %s", len(diff), len(res.Rows), strings.Join(names, ", "))
	}
}

func compareCSV(results []*objdiff.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, res := range results {
		if i == 0 {
			if err := w.Write(append([]string{"kind", "object"}, res.Environments...)); err != nil {
				return nil, err
			}
		}
		for _, row := range res.Rows {
			record := append([]string{res.Kind, row.Name}, row.Checksums...)
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
