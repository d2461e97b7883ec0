package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/export"
	"github.com/sqlsweep/sqlsweep/internal/history"
)

type exportOptions struct {
	query    string
	format   string
	pageSize int
	baseName string
	toStdout bool
}

func newExportCmd(rt *rootState) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export [query]",
		Short: "Stream a query result to CSV, JSON, or Parquet",
		Long: `export runs a query and streams its rows into a portable file in the
artifact directory. Results are fetched page by page, so exports larger than
memory work.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.query = args[0]
			}
			if opts.query == "" {
				return errors.New("pass a query as an argument or with --query")
			}
			if opts.format == "" {
				opts.format = rt.cfg.Export.Format
			}
			switch opts.format {
			case export.FormatCSV, export.FormatJSON, export.FormatParquet:
			default:
				return fmt.Errorf("invalid format %q (csv, json, parquet)", opts.format)
			}
			if !cmd.Flags().Changed("page-size") {
				opts.pageSize = rt.cfg.Export.PageSize
			}
			return runExport(cmd.Context(), rt, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.query, "query", "q", "", "Query to export")
	f.StringVar(&opts.format, "format", "", "Output format: csv, json, or parquet")
	f.IntVar(&opts.pageSize, "page-size", 0, "Rows fetched per round trip")
	f.StringVar(&opts.baseName, "name", "export", "Artifact base name")
	f.BoolVar(&opts.toStdout, "stdout", false, "Stream to stdout instead of the artifact directory")
	return cmd
}

func runExport(ctx context.Context, rt *rootState, opts exportOptions) error {
	start := time.Now()
	p := rt.printer

	_, conn, dsn, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	db := conn.DatabaseName()

	runID := newRunID()
	auditLog := rt.openAudit()
	defer auditLog.Close()
	rec := auditLog.ForRun(runID, "export", dsn, db)

	iter, err := conn.ExecuteStreaming(ctx, opts.query, opts.pageSize)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	defer iter.Close()

	if opts.toStdout {
		n, err := export.Write(ctx, opts.format, os.Stdout, iter)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		rec.Record(audit.Entry{
			Event:      audit.EventLookup,
			Query:      opts.query,
			DurationMS: time.Since(start).Milliseconds(),
			RowCount:   n,
		})
		return nil
	}

	var buf bytes.Buffer
	n, err := export.Write(ctx, opts.format, &buf, iter)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	rec.Record(audit.Entry{
		Event:      audit.EventLookup,
		Query:      opts.query,
		DurationMS: time.Since(start).Milliseconds(),
		RowCount:   n,
	})

	sink, err := rt.openSink(ctx)
	if err != nil {
		return err
	}
	loc, err := sink.Write(ctx, artifact.Name("exports", opts.baseName, opts.format, start), buf.Bytes())
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	rec.Record(audit.Entry{Event: audit.EventArtifact, Artifact: loc})
	p.Successf("Exported %d rows to %s", n, loc)

	recordRun(rt, history.Run{
		RunID:      runID,
		Tool:       "export",
		Connection: audit.SanitizeDSN(dsn),
		Database:   db,
		Mode:       opts.format,
		Records:    int(n),
		DurationMS: time.Since(start).Milliseconds(),
		Artifact:   loc,
		StartedAt:  start,
	})
	return nil
}
