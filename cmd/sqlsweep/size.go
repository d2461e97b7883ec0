package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/sizereport"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui/progress"
)

func newSizeCmd(rt *rootState) *cobra.Command {
	var csvOut bool

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Report per-schema storage usage",
		Long: `size reads physical storage figures from the engine catalog and prints a
per-schema breakdown, largest first, with a database total.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSize(cmd.Context(), rt, csvOut)
		},
	}
	cmd.Flags().BoolVar(&csvOut, "csv", false, "Also write the report as a CSV artifact")
	return cmd
}

func runSize(ctx context.Context, rt *rootState, csvOut bool) error {
	start := time.Now()
	p := rt.printer

	_, conn, dsn, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	db := conn.DatabaseName()

	src, ok := conn.(adapter.SizeReporter)
	if !ok {
		return fmt.Errorf("%s size report: %w", conn.AdapterName(), adapter.ErrNotSupported)
	}

	var rep *sizereport.Report
	err = progress.Run("Measuring schemas...", theme.Current, func() error {
		var err error
		rep, err = sizereport.Collect(ctx, src, db)
		return err
	})
	if err != nil {
		return fmt.Errorf("size report: %w", err)
	}

	p.Title("Storage Report: " + db)
	if len(rep.Schemas) == 0 {
		p.Println("No schemas found.")
		return nil
	}
	p.Table([]string{"SCHEMA", "TABLES", "TOTAL MB", "DATA MB", "INDEX MB"}, rep.Rows())

	t := rep.Total()
	p.KeyValue("Database total", fmt.Sprintf("%s MB (data %s MB, index %s MB, %d tables)",
		sizereport.FormatMB(t.TotalMB), sizereport.FormatMB(t.DataMB),
		sizereport.FormatMB(t.IndexMB), t.TableCount))

	var artifactLoc string
	if csvOut {
		sink, err := rt.openSink(ctx)
		if err != nil {
			return err
		}
		data, err := rep.CSV()
		if err != nil {
			return fmt.Errorf("render csv: %w", err)
		}
		artifactLoc, err = sink.Write(ctx, artifact.Name("reports", db+"_sizes", "csv", start), data)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		p.Successf("Report written to %s", artifactLoc)
	}

	recordRun(rt, history.Run{
		RunID:      newRunID(),
		Tool:       "size",
		Connection: audit.SanitizeDSN(dsn),
		Database:   db,
		Tables:     t.TableCount,
		DurationMS: time.Since(start).Milliseconds(),
		Artifact:   artifactLoc,
		StartedAt:  start,
	})
	return nil
}
