package cascade

import (
	"fmt"
	"strings"
	"time"

	"github.com/sqlsweep/sqlsweep/internal/sqlgen"
)

// ScriptOptions carries the header identity and batching settings for a
// rendered cleanup script.
type ScriptOptions struct {
	Connection     string
	Database       string
	BatchSize      int
	BatchThreshold int

	// GeneratedAt stamps the header; the zero value means now.
	GeneratedAt time.Time
}

// RenderScript renders the plan as a replayable SQL script: header
// comments, one transaction, DELETEs in deletion order, and commented
// COMMIT and ROLLBACK lines left for the operator to choose. Identifiers
// are always bracket quoted so a saved script stays hand-editable in the
// same form regardless of which engine produced it.
func RenderScript(res *Result, opts ScriptOptions) string {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	var lines []string
	lines = append(lines, "-- Data Cleanup Script")
	lines = append(lines, "-- Connection: "+opts.Connection)
	lines = append(lines, "-- Database: "+opts.Database)
	lines = append(lines, "-- Generated: "+opts.GeneratedAt.Format("2006-01-02 15:04:05"))

	if opts.BatchThreshold > 0 {
		lines = append(lines, "-- Batch Processing: Enabled")
		lines = append(lines, fmt.Sprintf("-- Batch Size: %d records", opts.BatchSize))
		lines = append(lines, fmt.Sprintf("-- Batch Threshold: %d records", opts.BatchThreshold))
	} else {
		lines = append(lines, "-- Batch Processing: Disabled")
	}

	lines = append(lines, "\nBEGIN TRANSACTION;\n")

	totalRecords := 0
	batchedTables := 0

	for _, table := range res.DeletionOrder {
		op, ok := res.Operations[table.Key()]
		if !ok || op.IDs.Len() == 0 {
			continue
		}

		recordCount := op.IDs.Len()
		totalRecords += recordCount

		lines = append(lines, "-- Table: "+table.Key())
		lines = append(lines, fmt.Sprintf("-- Records to delete: %d", recordCount))

		if op.UseBatching(opts.BatchThreshold) {
			batchedTables++
			statements := op.BatchedDeleteStatements(sqlgen.BracketQuote, opts.BatchSize)
			batchCount := len(statements)
			lines = append(lines, fmt.Sprintf("-- Using %d batches of max %d records each",
				batchCount, opts.BatchSize))
			for i, stmt := range statements {
				startIdx := i*opts.BatchSize + 1
				endIdx := (i + 1) * opts.BatchSize
				if endIdx > recordCount {
					endIdx = recordCount
				}
				lines = append(lines, fmt.Sprintf("-- Batch %d/%d: records %d-%d",
					i+1, batchCount, startIdx, endIdx))
				lines = append(lines, stmt+";")
			}
		} else if stmt := op.DeleteStatement(sqlgen.BracketQuote); stmt != "" {
			lines = append(lines, stmt+";")
		}

		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("-- Script Summary: %d records across %d tables",
		totalRecords, len(res.Operations)))
	if batchedTables > 0 {
		lines = append(lines, fmt.Sprintf("-- %d tables processed with batching", batchedTables))
	}

	lines = append(lines, "\n-- COMMIT TRANSACTION;")
	lines = append(lines, "-- ROLLBACK TRANSACTION;")

	return strings.Join(lines, "\n")
}
