package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/sqlgen"
)

// TxBeginner opens an explicit transaction on the live connection.
type TxBeginner interface {
	Begin(ctx context.Context) (adapter.Tx, error)
}

// ExecuteOptions controls live execution of a plan. ConfirmRun and
// ConfirmCommit gate the two irreversible moments; a nil hook counts as
// approval, for callers that gate earlier in the flow.
type ExecuteOptions struct {
	BatchSize      int
	BatchThreshold int
	Quote          sqlgen.Quoter
	Logger         *slog.Logger
	ConfirmRun     func() bool
	ConfirmCommit  func() bool
}

// ExecuteReport summarizes one execution run.
type ExecuteReport struct {
	Executed    bool
	Committed   bool
	RowsByTable map[string]int64
	TotalRows   int64
}

// Execute runs the plan's DELETEs inside a single transaction, in
// deletion order. Any statement failure rolls back the entire
// transaction, so partial commits are impossible. Declining the commit
// confirmation rolls back and still returns the per-table counts
// observed inside the transaction.
func Execute(ctx context.Context, db TxBeginner, res *Result, opts ExecuteOptions) (*ExecuteReport, error) {
	if opts.Quote == nil {
		opts.Quote = sqlgen.BracketQuote
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if opts.ConfirmRun != nil && !opts.ConfirmRun() {
		log.Info("execution cancelled")
		return &ExecuteReport{}, nil
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cleanup transaction: %w", err)
	}

	report := &ExecuteReport{
		Executed:    true,
		RowsByTable: make(map[string]int64),
	}

	for _, table := range res.DeletionOrder {
		op, ok := res.Operations[table.Key()]
		if !ok || op.IDs.Len() == 0 {
			continue
		}

		var statements []string
		if op.UseBatching(opts.BatchThreshold) {
			statements = op.BatchedDeleteStatements(opts.Quote, opts.BatchSize)
		} else if stmt := op.DeleteStatement(opts.Quote); stmt != "" {
			statements = []string{stmt}
		}

		for _, stmt := range statements {
			affected, err := tx.Exec(ctx, stmt)
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					log.Error("rollback failed", "table", table.Key(), "error", rbErr)
				}
				return nil, fmt.Errorf("delete from %s: %w (transaction rolled back)", table.Key(), err)
			}
			report.RowsByTable[table.Key()] += affected
			report.TotalRows += affected
		}
		log.Info("deleted rows", "table", table.Key(), "rows", report.RowsByTable[table.Key()])
	}

	if opts.ConfirmCommit != nil && !opts.ConfirmCommit() {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("rollback cleanup transaction: %w", err)
		}
		log.Info("transaction rolled back", "rows", report.TotalRows)
		return report, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cleanup transaction: %w", err)
	}
	report.Committed = true
	log.Info("transaction committed", "rows", report.TotalRows)
	return report, nil
}
