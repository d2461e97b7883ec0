package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/cascade"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/metadata"
	"github.com/sqlsweep/sqlsweep/internal/schema"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui"
	"github.com/sqlsweep/sqlsweep/internal/ui/progress"
	"github.com/sqlsweep/sqlsweep/internal/ui/prompt"
)

type cleanupOptions struct {
	table          string
	ids            string
	idsQuery       string
	mode           string
	batchSize      int
	batchThreshold int
	maxIterations  int
	yes            bool
	preview        bool
}

func newCleanupCmd(rt *rootState) *cobra.Command {
	var opts cleanupOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Plan and run a referential cascade deletion",
		Long: `cleanup computes the full set of rows that depend, directly or through
intermediate tables, on the given root rows, and plans their deletion in an
order that never violates a foreign key.

Modes:
  summary  print the plan and stop (default)
  script   write a replayable SQL script to the artifact directory
  execute  run the deletes inside one transaction, with confirmation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("batch-size") {
				opts.batchSize = rt.cfg.Cleanup.BatchSize
			}
			if !cmd.Flags().Changed("batch-threshold") {
				opts.batchThreshold = rt.cfg.Cleanup.BatchThreshold
			}
			if !cmd.Flags().Changed("max-iterations") {
				opts.maxIterations = rt.cfg.Cleanup.MaxIterations
			}
			if opts.mode == "" {
				opts.mode = rt.cfg.Cleanup.Mode
			}
			switch opts.mode {
			case "summary", "script", "execute":
			default:
				return fmt.Errorf("invalid mode %q (summary, script, execute)", opts.mode)
			}
			if opts.table == "" {
				return errors.New("--table is required")
			}
			if opts.ids == "" && opts.idsQuery == "" {
				return errors.New("pass root rows with --ids or --ids-query")
			}
			return runCleanup(cmd.Context(), rt, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.table, "table", "t", "", "Root table, optionally schema-qualified (dbo.customers)")
	f.StringVar(&opts.ids, "ids", "", "Comma-separated root row IDs")
	f.StringVar(&opts.idsQuery, "ids-query", "", "Query whose result rows are the root keys")
	f.StringVarP(&opts.mode, "mode", "m", "", "summary, script, or execute")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Rows per DELETE batch")
	f.IntVar(&opts.batchThreshold, "batch-threshold", 0, "Row count at which deletes switch to batches (0 disables)")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "Upper bound on planner iterations")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompts in execute mode")
	f.BoolVar(&opts.preview, "preview", false, "Print the generated script with highlighting")
	return cmd
}

func runCleanup(ctx context.Context, rt *rootState, opts cleanupOptions) error {
	start := time.Now()
	p := rt.printer

	a, conn, dsn, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	db := conn.DatabaseName()
	root := schema.ParseTableRef(opts.table, rt.cfg.Cleanup.DefaultSchema)
	runID := newRunID()

	auditLog := rt.openAudit()
	defer auditLog.Close()
	rec := auditLog.ForRun(runID, "cleanup", dsn, db)
	rec.Record(audit.Entry{Event: audit.EventRunStart, Table: root.Key()})

	ids, err := resolveRootIDs(ctx, conn, opts, rec)
	if err != nil {
		rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
		return err
	}
	if ids.Len() == 0 {
		p.Println("No data found for cleanup. Exiting.")
		rec.Record(audit.Entry{Event: audit.EventRunEnd})
		return nil
	}

	svc := metadata.NewService(conn, slog.Default())
	if _, err := svc.Preload(ctx, root.Schema); err != nil {
		slog.Debug("metadata preload unavailable, falling back to per-table lookups", "error", err)
	}

	var h *schema.Hierarchy
	err = progress.Run("Discovering relationships...", theme.Current, func() error {
		var err error
		h, err = svc.BuildHierarchy(ctx, root)
		if err != nil {
			return err
		}
		_, err = cascade.AugmentRelationships(ctx, h, svc, slog.Default())
		return err
	})
	if err != nil {
		rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
		return fmt.Errorf("discover relationships: %w", err)
	}

	planner := cascade.NewPlanner(svc, conn, cascade.Config{
		BatchSize:      opts.batchSize,
		BatchThreshold: opts.batchThreshold,
		MaxIterations:  opts.maxIterations,
		Quote:          a.Quote,
		Logger:         slog.Default(),
	})

	var res *cascade.Result
	err = progress.Run("Computing dependent rows...", theme.Current, func() error {
		var err error
		res, err = planner.Plan(ctx, h, ids)
		return err
	})
	if err != nil {
		rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
		return fmt.Errorf("plan cascade: %w", err)
	}

	printPlanSummary(p, root, db, h, res)

	var artifactLoc string
	committed := false

	switch opts.mode {
	case "script":
		artifactLoc, err = writeCleanupScript(ctx, rt, p, res, opts, dsn, db, start, rec)
		if err != nil {
			rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
			return err
		}
	case "execute":
		committed, err = executeCleanup(ctx, p, conn, a, res, opts, db, rec)
		if err != nil {
			rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
			return err
		}
	}

	recordRun(rt, history.Run{
		RunID:      runID,
		Tool:       "cleanup",
		Connection: audit.SanitizeDSN(dsn),
		Database:   db,
		RootTable:  root.Key(),
		Mode:       opts.mode,
		Tables:     res.Stats.TablesProcessed,
		Records:    res.Stats.TotalRecordsFound,
		MaxLevel:   res.Stats.MaxLevelReached,
		Committed:  committed,
		DurationMS: time.Since(start).Milliseconds(),
		Artifact:   artifactLoc,
		StartedAt:  start,
	})
	rec.Record(audit.Entry{
		Event:      audit.EventRunEnd,
		DurationMS: time.Since(start).Milliseconds(),
		RowCount:   int64(res.Stats.TotalRecordsFound),
	})
	return nil
}

// resolveRootIDs builds the root key set from --ids or --ids-query. Integer
// looking IDs are kept as int64 so lookup SQL renders them unquoted.
func resolveRootIDs(ctx context.Context, conn adapter.Connection, opts cleanupOptions, rec *audit.Recorder) (*cascade.KeySet, error) {
	if opts.ids != "" {
		set := cascade.NewKeySet()
		for _, part := range strings.Split(opts.ids, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if n, err := strconv.ParseInt(part, 10, 64); err == nil {
				set.Add(cascade.NewKey(n))
			} else {
				set.Add(cascade.NewKey(part))
			}
		}
		return set, nil
	}

	lookupStart := time.Now()
	vals, err := conn.QueryValues(ctx, opts.idsQuery)
	if err != nil {
		return nil, fmt.Errorf("ids query: %w", err)
	}
	rec.Record(audit.Entry{
		Event:      audit.EventLookup,
		Query:      opts.idsQuery,
		DurationMS: time.Since(lookupStart).Milliseconds(),
		RowCount:   int64(len(vals.Rows)),
	})
	set := cascade.NewKeySet()
	for _, row := range vals.Rows {
		set.Add(cascade.NewKey(row...))
	}
	return set, nil
}

func printPlanSummary(p *ui.Printer, root schema.TableRef, db string, h *schema.Hierarchy, res *cascade.Result) {
	p.Title("Cascade Deletion Plan")
	p.KeyValue("Root", root.String())
	p.KeyValue("Database", db)
	p.KeyValue("Tables", strconv.Itoa(res.Stats.TablesProcessed))
	p.KeyValue("Relationships", strconv.Itoa(res.Stats.RelationshipsProcessed))
	p.KeyValue("Rows to delete", strconv.Itoa(res.Stats.TotalRecordsFound))
	p.KeyValue("Max level", strconv.Itoa(res.Stats.MaxLevelReached))
	p.KeyValue("Planned in", res.Stats.ProcessingTime.Round(time.Millisecond).String())

	var rows [][]string
	for _, ref := range res.DeletionOrder {
		op := res.Operations[ref.Key()]
		if op == nil || op.IDs.Len() == 0 {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(h.Level(ref)),
			ref.String(),
			strconv.Itoa(op.IDs.Len()),
		})
	}
	if len(rows) > 0 {
		p.Table([]string{"LEVEL", "TABLE", "ROWS"}, rows)
	}
	if res.BoundExceeded {
		p.Warnf("Iteration bound reached before the graph was exhausted; plan may be incomplete. Raise --max-iterations.")
	}
}

func writeCleanupScript(ctx context.Context, rt *rootState, p *ui.Printer, res *cascade.Result, opts cleanupOptions, dsn, db string, start time.Time, rec *audit.Recorder) (string, error) {
	script := cascade.RenderScript(res, cascade.ScriptOptions{
		Connection:     audit.SanitizeDSN(dsn),
		Database:       db,
		BatchSize:      opts.batchSize,
		BatchThreshold: opts.batchThreshold,
		GeneratedAt:    start,
	})

	sink, err := rt.openSink(ctx)
	if err != nil {
		return "", err
	}
	name := artifact.Name("scripts", db+"_cleanup", "sql", start)
	loc, err := sink.Write(ctx, name, []byte(script))
	if err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	rec.Record(audit.Entry{Event: audit.EventArtifact, Artifact: loc})
	p.Successf("Script written to %s", loc)

	if opts.preview {
		p.Println("")
		p.SQL(ui.NewHighlighter("mssql"), script)
	}
	return loc, nil
}

func executeCleanup(ctx context.Context, p *ui.Printer, conn adapter.Connection, a adapter.Adapter, res *cascade.Result, opts cleanupOptions, db string, rec *audit.Recorder) (bool, error) {
	execOpts := cascade.ExecuteOptions{
		BatchSize:      opts.batchSize,
		BatchThreshold: opts.batchThreshold,
		Quote:          a.Quote,
		Logger:         slog.Default(),
	}
	if !opts.yes {
		execOpts.ConfirmRun = func() bool {
			body := fmt.Sprintf("Delete %d rows across %d tables in %s?",
				res.Stats.TotalRecordsFound, res.Stats.TablesProcessed, db)
			return prompt.Confirm("Execute cascade deletion", body, theme.Current)
		}
		execOpts.ConfirmCommit = func() bool {
			return prompt.Confirm("Commit transaction",
				"All deletes ran inside one transaction. Commit the changes?", theme.Current)
		}
	}

	execStart := time.Now()
	report, err := cascade.Execute(ctx, conn, res, execOpts)
	if err != nil {
		return false, fmt.Errorf("execute cleanup: %w", err)
	}
	rec.Record(audit.Entry{
		Event:      audit.EventExecute,
		DurationMS: time.Since(execStart).Milliseconds(),
		RowCount:   report.TotalRows,
	})

	switch {
	case !report.Executed:
		p.Mutedf("Cleanup aborted before execution.")
	case report.Committed:
		p.Successf("Deleted %d rows across %d tables.", report.TotalRows, len(report.RowsByTable))
	default:
		p.Warnf("Transaction rolled back; no rows were deleted.")
	}
	return report.Committed, nil
}

// recordRun appends to the run history, silently skipping when the store is
// disabled or unavailable.
func recordRun(rt *rootState, run history.Run) {
	store := rt.openHistory()
	if store == nil {
		return
	}
	defer store.Close()
	if err := store.Add(run); err != nil {
		slog.Warn("history write failed", "error", err)
	}
}
