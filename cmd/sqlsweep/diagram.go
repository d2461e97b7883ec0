package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/diagram"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/schema"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui/progress"
)

var diagramExt = map[string]string{
	diagram.FormatMermaid:  "mmd",
	diagram.FormatPlantUML: "puml",
	diagram.FormatDBML:     "dbml",
}

func newDiagramCmd(rt *rootState) *cobra.Command {
	var (
		format     string
		columns    string
		schemaName string
		toStdout   bool
	)

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Render an ER diagram of the connected schema",
		Long: `diagram reads tables, columns, and foreign keys from the live catalog and
renders them as an entity-relationship diagram in mermaid, plantuml, or dbml
notation. The output lands in the artifact directory unless --stdout is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = rt.cfg.Diagram.Format
			}
			if columns == "" {
				columns = rt.cfg.Diagram.Columns
			}
			if _, ok := diagramExt[format]; !ok {
				return fmt.Errorf("unknown diagram format %q (mermaid, plantuml, dbml)", format)
			}
			return runDiagram(cmd.Context(), rt, format, columns, schemaName, toStdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", "", "Diagram notation: mermaid, plantuml, or dbml")
	f.StringVar(&columns, "columns", "", "Column detail: all, keys, or none")
	f.StringVarP(&schemaName, "schema", "s", "", "Limit to one schema")
	f.BoolVar(&toStdout, "stdout", false, "Print the diagram instead of writing an artifact")
	return cmd
}

func runDiagram(ctx context.Context, rt *rootState, format, columns, schemaName string, toStdout bool) error {
	start := time.Now()
	p := rt.printer

	_, conn, dsn, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	db := conn.DatabaseName()

	var tables []schema.Table
	err = progress.Run("Reading schema...", theme.Current, func() error {
		var err error
		tables, err = collectTables(ctx, conn, db, schemaName)
		return err
	})
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if len(tables) == 0 {
		p.Println("No tables found.")
		return nil
	}

	out, err := diagram.Render(tables, diagram.Options{Format: format, Columns: columns})
	if err != nil {
		return err
	}

	if toStdout {
		p.Println(out)
		return nil
	}

	sink, err := rt.openSink(ctx)
	if err != nil {
		return err
	}
	name := artifact.Name("diagrams", db+"_schema", diagramExt[format], start)
	loc, err := sink.Write(ctx, name, []byte(out))
	if err != nil {
		return fmt.Errorf("write diagram: %w", err)
	}
	p.Successf("Diagram written to %s (%d tables)", loc, len(tables))

	runID := newRunID()
	auditLog := rt.openAudit()
	defer auditLog.Close()
	rec := auditLog.ForRun(runID, "diagram", dsn, db)
	rec.Record(audit.Entry{Event: audit.EventArtifact, Artifact: loc})

	recordRun(rt, history.Run{
		RunID:      runID,
		Tool:       "diagram",
		Connection: audit.SanitizeDSN(dsn),
		Database:   db,
		Mode:       format,
		Tables:     len(tables),
		DurationMS: time.Since(start).Milliseconds(),
		Artifact:   loc,
		StartedAt:  start,
	})
	return nil
}

// collectTables loads every table with its columns and foreign keys, using
// the adapter's batch introspection when it offers one.
func collectTables(ctx context.Context, conn adapter.Connection, db, schemaName string) ([]schema.Table, error) {
	tables, err := conn.Tables(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}

	if bi, ok := conn.(adapter.BatchIntrospector); ok {
		cols, err := bi.AllColumns(ctx, db, schemaName)
		if err == nil {
			fks, ferr := bi.AllForeignKeys(ctx, db, schemaName)
			if ferr == nil {
				for i := range tables {
					tables[i].Columns = cols[tables[i].Name]
					tables[i].FKs = fks[tables[i].Name]
				}
				return tables, nil
			}
		}
		// Batch paths can fail on older engine versions; per-table lookups
		// below still work there.
	}

	for i := range tables {
		t := &tables[i]
		if t.Columns, err = conn.Columns(ctx, db, t.Schema, t.Name); err != nil {
			return nil, fmt.Errorf("columns of %s.%s: %w", t.Schema, t.Name, err)
		}
		if t.FKs, err = conn.ForeignKeys(ctx, db, t.Schema, t.Name); err != nil {
			return nil, fmt.Errorf("foreign keys of %s.%s: %w", t.Schema, t.Name, err)
		}
	}
	return tables, nil
}
