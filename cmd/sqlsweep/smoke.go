package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/smoke"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui/progress"
)

type smokeOptions struct {
	schemaName string
	viewsOnly  bool
	procsOnly  bool
	schedule   string
}

func newSmokeCmd(rt *rootState) *cobra.Command {
	var opts smokeOptions

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Probe views and procedures for breakage",
		Long: `smoke selects one row from every view and executes every stored procedure
with synthesized arguments, reporting which objects error. With --schedule
the sweep repeats on a cron expression until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.viewsOnly && opts.procsOnly {
				return errors.New("--views-only and --procs-only are mutually exclusive")
			}
			return runSmoke(cmd.Context(), rt, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.schemaName, "schema", "s", "", "Schema to probe")
	f.BoolVar(&opts.viewsOnly, "views-only", false, "Probe views only")
	f.BoolVar(&opts.procsOnly, "procs-only", false, "Probe procedures only")
	f.StringVar(&opts.schedule, "schedule", "", "Cron expression for repeated sweeps (five fields)")
	return cmd
}

func runSmoke(ctx context.Context, rt *rootState, opts smokeOptions) error {
	p := rt.printer

	a, conn, dsn, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	db := conn.DatabaseName()

	suite := smoke.New(conn, smoke.Options{
		Adapter: a.Name(),
		Quote:   a.Quote,
		Schema:  opts.schemaName,
		Log:     slog.Default(),
	})

	auditLog := rt.openAudit()
	defer auditLog.Close()

	sweep := func(ctx context.Context) error {
		start := time.Now()
		runID := newRunID()
		rec := auditLog.ForRun(runID, "smoke", dsn, db)
		rec.Record(audit.Entry{Event: audit.EventRunStart})

		var outcomes []smoke.Outcome
		err := progress.Run("Probing objects...", theme.Current, func() error {
			var err error
			outcomes, err = smokeSweep(ctx, conn, suite, db, opts)
			return err
		})
		if err != nil {
			rec.Record(audit.Entry{Event: audit.EventRunEnd, Error: err.Error()})
			return err
		}

		printSmokeOutcomes(rt, outcomes)

		_, failed := smoke.Counts(outcomes)
		rec.Record(audit.Entry{
			Event:      audit.EventRunEnd,
			DurationMS: time.Since(start).Milliseconds(),
			RowCount:   int64(len(outcomes)),
		})
		recordRun(rt, history.Run{
			RunID:      runID,
			Tool:       "smoke",
			Connection: audit.SanitizeDSN(dsn),
			Database:   db,
			Mode:       smokeMode(opts),
			Tables:     len(outcomes),
			Records:    failed,
			Committed:  failed == 0,
			DurationMS: time.Since(start).Milliseconds(),
			StartedAt:  start,
		})
		return nil
	}

	if err := sweep(ctx); err != nil {
		return err
	}
	if opts.schedule == "" {
		return nil
	}

	sched := smoke.NewScheduler(slog.Default())
	next, err := sched.Start(opts.schedule, func() {
		if err := sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	p.Mutedf("Next sweep at %s. Press Ctrl+C to stop.", next.Format("2006-01-02 15:04:05"))

	<-ctx.Done()
	sched.Stop()
	p.Println("Scheduler stopped.")
	return nil
}

func smokeSweep(ctx context.Context, conn adapter.Connection, suite *smoke.Suite, db string, opts smokeOptions) ([]smoke.Outcome, error) {
	var outcomes []smoke.Outcome

	if !opts.procsOnly {
		lister, ok := conn.(adapter.ViewLister)
		if !ok {
			if opts.viewsOnly {
				return nil, fmt.Errorf("%s view probes: %w", conn.AdapterName(), adapter.ErrNotSupported)
			}
			slog.Debug("adapter cannot list views, skipping view probes", "adapter", conn.AdapterName())
		} else {
			views, err := lister.Views(ctx, db, opts.schemaName)
			if err != nil {
				return nil, fmt.Errorf("list views: %w", err)
			}
			res, err := suite.ProbeViews(ctx, views)
			outcomes = append(outcomes, res...)
			if err != nil {
				return outcomes, err
			}
		}
	}

	if !opts.viewsOnly {
		lister, ok := conn.(adapter.RoutineLister)
		if !ok {
			if opts.procsOnly {
				return nil, fmt.Errorf("%s procedure probes: %w", conn.AdapterName(), adapter.ErrNotSupported)
			}
			slog.Debug("adapter cannot list routines, skipping procedure probes", "adapter", conn.AdapterName())
		} else {
			routines, err := lister.Routines(ctx, db, opts.schemaName)
			if err != nil {
				return nil, fmt.Errorf("list routines: %w", err)
			}
			res, err := suite.ProbeProcedures(ctx, routines)
			outcomes = append(outcomes, res...)
			if err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}

func printSmokeOutcomes(rt *rootState, outcomes []smoke.Outcome) {
	p := rt.printer
	if len(outcomes) == 0 {
		p.Println("Nothing to probe.")
		return
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		result := "OK"
		if !o.OK {
			result = "FAIL"
		}
		rows = append(rows, []string{o.Name, o.Kind, result, o.Elapsed.Round(time.Millisecond).String()})
	}
	p.Table([]string{"OBJECT", "KIND", "RESULT", "TIME"}, rows)

	ok, failed := smoke.Counts(outcomes)
	if failed == 0 {
		p.Successf("All %d probes passed.", ok)
		return
	}
	p.Warnf("%d passed, %d failed:", ok, failed)
	for _, o := range smoke.Failures(outcomes) {
		p.Errorf("  %s (%s): %s", o.Name, o.Kind, o.Err)
	}
}

func smokeMode(opts smokeOptions) string {
	switch {
	case opts.viewsOnly:
		return "views"
	case opts.procsOnly:
		return "procedures"
	default:
		return "all"
	}
}
