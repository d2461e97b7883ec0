// Package sqlgen builds SQL fragments for key-based lookups and deletes.
// Values are rendered as inline literals rather than bind parameters so
// that generated scripts can be saved, hand-edited, and replayed.
package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quoter renders an identifier for a target engine.
type Quoter func(ident string) string

// BracketQuote quotes an identifier in SQL Server style. Emitted script
// artifacts always use this form regardless of the connected engine.
func BracketQuote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// QualifiedTable renders schema.table with both parts quoted.
func QualifiedTable(q Quoter, schemaName, table string) string {
	return q(schemaName) + "." + q(table)
}

// StringLiteral renders s as a single-quoted SQL string with embedded
// quotes doubled.
func StringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a single value as a SQL literal. Strings are quoted
// with embedded quotes doubled, nil renders as NULL, numerics render
// unquoted.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return StringLiteral(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.9999999") + "'"
	case []byte:
		return "0x" + hex.EncodeToString(val)
	default:
		return StringLiteral(fmt.Sprint(val))
	}
}

// KeyPredicate renders a WHERE clause body matching cols against the
// given key tuples. A single column renders as an IN list with NULL as a
// bare literal; multiple columns render one parenthesized AND group per
// tuple with NULL as IS NULL, OR'ed together. An empty tuple set renders
// as the always-false 1=0 so a generated DELETE can never run
// unrestricted.
func KeyPredicate(q Quoter, cols []string, tuples [][]any) string {
	if len(tuples) == 0 || len(cols) == 0 {
		return "1=0"
	}

	if len(cols) == 1 {
		items := make([]string, 0, len(tuples))
		for _, tuple := range tuples {
			if len(tuple) == 0 {
				continue
			}
			items = append(items, Literal(tuple[0]))
		}
		if len(items) == 0 {
			return "1=0"
		}
		return q(cols[0]) + " IN (" + strings.Join(items, ", ") + ")"
	}

	groups := make([]string, 0, len(tuples))
	for _, tuple := range tuples {
		n := len(cols)
		if len(tuple) < n {
			n = len(tuple)
		}
		conditions := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if tuple[i] == nil {
				conditions = append(conditions, q(cols[i])+" IS NULL")
			} else {
				conditions = append(conditions, q(cols[i])+" = "+Literal(tuple[i]))
			}
		}
		if len(conditions) == 0 {
			continue
		}
		groups = append(groups, "("+strings.Join(conditions, " AND ")+")")
	}
	if len(groups) == 0 {
		return "1=0"
	}
	return strings.Join(groups, " OR ")
}

// SelectDistinct renders a projection of outCols from the table for rows
// whose keyCols match the given tuples.
func SelectDistinct(q Quoter, outCols []string, schemaName, table string, keyCols []string, tuples [][]any) string {
	quoted := make([]string, len(outCols))
	for i, col := range outCols {
		quoted[i] = q(col)
	}
	return "SELECT DISTINCT " + strings.Join(quoted, ", ") +
		" FROM " + QualifiedTable(q, schemaName, table) +
		" WHERE " + KeyPredicate(q, keyCols, tuples)
}

// DeleteStatement renders a DELETE for the rows whose key columns match
// the given tuples. The statement carries no trailing semicolon.
func DeleteStatement(q Quoter, schemaName, table string, cols []string, tuples [][]any) string {
	return "DELETE FROM " + QualifiedTable(q, schemaName, table) +
		" WHERE " + KeyPredicate(q, cols, tuples)
}

// Chunk splits tuples into batches of at most size elements. A size of
// zero or less returns the input as a single batch.
func Chunk(tuples [][]any, size int) [][][]any {
	if len(tuples) == 0 {
		return nil
	}
	if size <= 0 || len(tuples) <= size {
		return [][][]any{tuples}
	}
	batches := make([][][]any, 0, (len(tuples)+size-1)/size)
	for start := 0; start < len(tuples); start += size {
		end := start + size
		if end > len(tuples) {
			end = len(tuples)
		}
		batches = append(batches, tuples[start:end])
	}
	return batches
}
