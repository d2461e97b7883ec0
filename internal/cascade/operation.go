package cascade

import (
	"github.com/sqlsweep/sqlsweep/internal/schema"
	"github.com/sqlsweep/sqlsweep/internal/sqlgen"
)

// Operation is the final, queue-independent result for one table: the
// rows to delete, addressed by primary key.
type Operation struct {
	Table     schema.TableRef
	PKColumns []string
	IDs       *KeySet
}

// UseBatching reports whether the operation's row count is at or above
// the batching threshold. A threshold of zero disables batching
// entirely.
func (op *Operation) UseBatching(threshold int) bool {
	return threshold > 0 && op.IDs.Len() >= threshold
}

// DeleteStatement renders one DELETE covering every row in the
// operation, or "" when there is nothing to delete or the table's
// primary key is unknown.
func (op *Operation) DeleteStatement(q sqlgen.Quoter) string {
	if op.IDs.Len() == 0 || len(op.PKColumns) == 0 {
		return ""
	}
	return sqlgen.DeleteStatement(q, op.Table.Schema, op.Table.Name, op.PKColumns, op.IDs.Tuples())
}

// BatchedDeleteStatements renders one DELETE per chunk of at most
// batchSize rows. A non-positive batchSize renders nothing.
func (op *Operation) BatchedDeleteStatements(q sqlgen.Quoter, batchSize int) []string {
	if op.IDs.Len() == 0 || len(op.PKColumns) == 0 || batchSize <= 0 {
		return nil
	}
	batches := sqlgen.Chunk(op.IDs.Tuples(), batchSize)
	statements := make([]string, len(batches))
	for i, batch := range batches {
		statements[i] = sqlgen.DeleteStatement(q, op.Table.Schema, op.Table.Name, op.PKColumns, batch)
	}
	return statements
}
