//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
)

func init() {
	adapter.Register(&duckdbAdapter{})
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type duckdbAdapter struct{}

func (a *duckdbAdapter) Name() string     { return "duckdb" }
func (a *duckdbAdapter) DefaultPort() int { return 0 }

func (a *duckdbAdapter) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (a *duckdbAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	// Strip the "duckdb://" prefix if present.
	dsn = strings.TrimPrefix(dsn, "duckdb://")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	dbName := dsn
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		dbName = dsn
	}

	return &duckdbConn{
		db:     db,
		dsn:    dsn,
		dbName: dbName,
	}, nil
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type duckdbConn struct {
	db     *sql.DB
	dsn    string
	dbName string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *duckdbConn) DatabaseName() string { return c.dbName }
func (c *duckdbConn) AdapterName() string  { return "duckdb" }

func (c *duckdbConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *duckdbConn) Close() error {
	return c.db.Close()
}

// Cancel cancels the currently running query, if any.
func (c *duckdbConn) Cancel() error {
	c.mu.Lock()
	fn := c.cancel
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (c *duckdbConn) catalogAndSchema(db, schemaName string) (string, string) {
	if db == "" {
		db = c.dbName
	}
	if schemaName == "" {
		schemaName = "main"
	}
	return db, schemaName
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

func (c *duckdbConn) Databases(ctx context.Context) ([]schema.Database, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT database_name FROM duckdb_databases() ORDER BY database_name`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: databases: %w", err)
	}
	defer rows.Close()

	var dbs []schema.Database
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: databases scan: %w", err)
		}
		dbs = append(dbs, schema.Database{Name: name})
	}
	return dbs, rows.Err()
}

func (c *duckdbConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	query := `SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ?
		ORDER BY table_name`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Schema: schemaName, Name: name})
	}
	return tables, rows.Err()
}

func (c *duckdbConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	query := `SELECT c.column_name,
			c.data_type,
			CASE WHEN c.is_nullable = 'YES' THEN true ELSE false END,
			COALESCE(c.column_default, ''),
			COALESCE(pk.ordinal_position, 0)
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, kcu.ordinal_position
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			  AND tc.table_catalog = kcu.table_catalog
			  AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_catalog = ?
			  AND tc.table_schema = ?
			  AND tc.table_name = ?
		) pk ON pk.column_name = c.column_name
		WHERE c.table_catalog = ? AND c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			col   schema.Column
			pkOrd int64
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &pkOrd); err != nil {
			return nil, fmt.Errorf("duckdb: columns scan: %w", err)
		}
		col.IsPK = pkOrd > 0
		col.PKOrding = int(pkOrd)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *duckdbConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	query := `SELECT index_name, is_unique, sql
		FROM duckdb_indexes()
		WHERE database_name = ? AND schema_name = ? AND table_name = ?
		ORDER BY index_name`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: indexes: %w", err)
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var isUnique bool
		var sqlStr sql.NullString
		if err := rows.Scan(&idx.Name, &isUnique, &sqlStr); err != nil {
			return nil, fmt.Errorf("duckdb: indexes scan: %w", err)
		}
		idx.Unique = isUnique
		// Extract column names from the index SQL if available.
		idx.Columns = parseIndexColumns(sqlStr.String)
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// parseIndexColumns extracts column names from a CREATE INDEX SQL statement.
// Example: "CREATE INDEX idx ON tbl (col1, col2)" -> ["col1", "col2"]
func parseIndexColumns(sqlStr string) []string {
	if sqlStr == "" {
		return nil
	}
	start := strings.LastIndex(sqlStr, "(")
	end := strings.LastIndex(sqlStr, ")")
	if start < 0 || end <= start {
		return nil
	}
	inner := sqlStr[start+1 : end]
	parts := strings.Split(inner, ",")
	var cols []string
	for _, p := range parts {
		col := strings.TrimSpace(p)
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// fkQuery joins the referencing and referenced key column usage by ordinal so
// multi-column constraints stay aligned.
const fkQuery = `SELECT
		rc.constraint_name,
		kcu.table_schema   AS src_schema,
		kcu.table_name     AS src_table,
		kcu.column_name    AS src_column,
		kcu2.table_schema  AS ref_schema,
		kcu2.table_name    AS ref_table,
		kcu2.column_name   AS ref_column
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage kcu
	  ON rc.constraint_catalog = kcu.constraint_catalog
	  AND rc.constraint_schema = kcu.constraint_schema
	  AND rc.constraint_name = kcu.constraint_name
	JOIN information_schema.key_column_usage kcu2
	  ON rc.unique_constraint_catalog = kcu2.constraint_catalog
	  AND rc.unique_constraint_schema = kcu2.constraint_schema
	  AND rc.unique_constraint_name = kcu2.constraint_name
	  AND kcu.ordinal_position = kcu2.ordinal_position`

func (c *duckdbConn) ForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	query := fkQuery + `
		WHERE kcu.table_catalog = ? AND kcu.table_schema = ? AND kcu.table_name = ?
		ORDER BY rc.constraint_name, kcu.ordinal_position`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: foreign keys: %w", err)
	}
	defer rows.Close()

	return scanConstraintRows(rows)
}

// ReferencingForeignKeys returns constraints in other tables pointing at the
// given table.
func (c *duckdbConn) ReferencingForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	query := fkQuery + `
		WHERE kcu2.table_catalog = ? AND kcu2.table_schema = ? AND kcu2.table_name = ?
		ORDER BY kcu.table_schema, kcu.table_name, rc.constraint_name, kcu.ordinal_position`
	rows, err := c.db.QueryContext(ctx, query, db, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: referencing foreign keys: %w", err)
	}
	defer rows.Close()

	return scanConstraintRows(rows)
}

func scanConstraintRows(rows *sql.Rows) ([]schema.ForeignKey, error) {
	type fkKey struct{ schema, table, name string }
	fkMap := map[fkKey]*schema.ForeignKey{}
	var order []fkKey

	for rows.Next() {
		var name, srcSchema, srcTable, srcCol, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &srcSchema, &srcTable, &srcCol, &refSchema, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("duckdb: foreign keys scan: %w", err)
		}
		key := fkKey{srcSchema, srcTable, name}
		fk, ok := fkMap[key]
		if !ok {
			fk = &schema.ForeignKey{
				Name:      name,
				Schema:    srcSchema,
				Table:     srcTable,
				RefSchema: refSchema,
				RefTable:  refTable,
			}
			fkMap[key] = fk
			order = append(order, key)
		}
		fk.Columns = append(fk.Columns, srcCol)
		fk.RefColumns = append(fk.RefColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, key := range order {
		fks = append(fks, *fkMap[key])
	}
	return fks, nil
}

// Views returns view definitions from information_schema.
func (c *duckdbConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	db, schemaName = c.catalogAndSchema(db, schemaName)

	rows, err := c.db.QueryContext(ctx,
		`SELECT table_name, COALESCE(view_definition, '')
		 FROM information_schema.views
		 WHERE table_catalog = ? AND table_schema = ?
		 ORDER BY table_name`, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("duckdb: views: %w", err)
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var v schema.View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, fmt.Errorf("duckdb: views scan: %w", err)
		}
		v.Schema = schemaName
		views = append(views, v)
	}
	return views, rows.Err()
}

// ---------------------------------------------------------------------------
// Query execution
// ---------------------------------------------------------------------------

func (c *duckdbConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	start := time.Now()
	trimmed := strings.TrimSpace(query)
	isSelect := isSelectQuery(trimmed)

	if isSelect {
		return c.executeSelect(ctx, query, start)
	}
	return c.executeExec(ctx, query, start)
}

func isSelectQuery(q string) bool {
	upper := strings.ToUpper(q)
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "FROM"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func (c *duckdbConn) executeSelect(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("duckdb: column types: %w", err)
	}

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		cols[i] = adapter.ColumnMeta{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	var resultRows [][]string
	nCols := len(cols)
	truncated := false
	for rows.Next() {
		if len(resultRows) >= adapter.DefaultMaxRows {
			truncated = true
			break
		}
		vals := make([]sql.NullString, nCols)
		ptrs := make([]any, nCols)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("duckdb: scan: %w", err)
		}
		row := make([]string, nCols)
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: rows iteration: %w", err)
	}

	return &adapter.QueryResult{
		Columns:   cols,
		Rows:      resultRows,
		RowCount:  int64(len(resultRows)),
		Duration:  time.Since(start),
		IsSelect:  true,
		Truncated: truncated,
	}, nil
}

func (c *duckdbConn) executeExec(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckdb: exec: %w", err)
	}

	affected, _ := result.RowsAffected()
	return &adapter.QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		IsSelect: false,
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}

// QueryValues runs a read query and keeps driver-native values, normalized
// per column type.
func (c *duckdbConn) QueryValues(ctx context.Context, query string) (*adapter.ValueResult, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query values: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("duckdb: column types: %w", err)
	}

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		cols[i] = adapter.ColumnMeta{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("duckdb: query values scan: %w", err)
		}
		for i := range values {
			values[i] = adapter.NormalizeValue(cols[i].Type, values[i])
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: query values rows: %w", err)
	}

	return &adapter.ValueResult{
		Columns:  cols,
		Rows:     out,
		Duration: time.Since(start),
	}, nil
}

// Begin opens an explicit transaction.
func (c *duckdbConn) Begin(ctx context.Context) (adapter.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("duckdb: begin: %w", err)
	}
	return &duckdbTx{tx: tx}, nil
}

type duckdbTx struct {
	tx *sql.Tx
}

func (t *duckdbTx) Exec(ctx context.Context, query string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (t *duckdbTx) Commit() error   { return t.tx.Commit() }
func (t *duckdbTx) Rollback() error { return t.tx.Rollback() }

// ---------------------------------------------------------------------------
// Streaming (LIMIT/OFFSET pagination)
// ---------------------------------------------------------------------------

func (c *duckdbConn) ExecuteStreaming(ctx context.Context, query string, pageSize int) (adapter.RowIterator, error) {
	if pageSize <= 0 {
		pageSize = adapter.DefaultPageSize
	}

	// Run a quick query to discover columns without fetching all rows.
	probeCtx, probeCancel := context.WithCancel(ctx)
	defer probeCancel()

	probeQuery := fmt.Sprintf("SELECT * FROM (%s) AS __probe LIMIT 0", query)
	probeRows, err := c.db.QueryContext(probeCtx, probeQuery)
	if err != nil {
		return nil, fmt.Errorf("duckdb: streaming probe: %w", err)
	}

	colTypes, err := probeRows.ColumnTypes()
	if err != nil {
		probeRows.Close()
		return nil, fmt.Errorf("duckdb: streaming column types: %w", err)
	}
	probeRows.Close()

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		cols[i] = adapter.ColumnMeta{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	return &duckdbIterator{
		db:       c.db,
		query:    query,
		pageSize: pageSize,
		cols:     cols,
		offset:   0,
	}, nil
}

type duckdbIterator struct {
	db       *sql.DB
	query    string
	pageSize int
	cols     []adapter.ColumnMeta
	offset   int
	done     bool
}

func (it *duckdbIterator) Columns() []adapter.ColumnMeta { return it.cols }
func (it *duckdbIterator) TotalRows() int64              { return -1 }
func (it *duckdbIterator) Close() error                  { return nil }

func (it *duckdbIterator) FetchNext(ctx context.Context) ([][]string, error) {
	if it.done {
		return nil, io.EOF
	}

	paged := fmt.Sprintf("SELECT * FROM (%s) AS __paged LIMIT %d OFFSET %d", it.query, it.pageSize, it.offset)
	rows, err := it.db.QueryContext(ctx, paged)
	if err != nil {
		return nil, fmt.Errorf("duckdb: fetch next: %w", err)
	}
	defer rows.Close()

	page, err := scanPage(rows, len(it.cols))
	if err != nil {
		return nil, err
	}

	if len(page) < it.pageSize {
		it.done = true
	}
	if len(page) == 0 {
		return nil, io.EOF
	}
	it.offset += len(page)
	return page, nil
}

func (it *duckdbIterator) FetchPrev(ctx context.Context) ([][]string, error) {
	if it.offset <= 0 {
		return nil, io.EOF
	}

	newOffset := it.offset - 2*it.pageSize
	if newOffset < 0 {
		newOffset = 0
	}

	paged := fmt.Sprintf("SELECT * FROM (%s) AS __paged LIMIT %d OFFSET %d", it.query, it.pageSize, newOffset)
	rows, err := it.db.QueryContext(ctx, paged)
	if err != nil {
		return nil, fmt.Errorf("duckdb: fetch prev: %w", err)
	}
	defer rows.Close()

	page, err := scanPage(rows, len(it.cols))
	if err != nil {
		return nil, err
	}

	if len(page) == 0 {
		return nil, io.EOF
	}
	it.offset = newOffset + len(page)
	it.done = false
	return page, nil
}

func scanPage(rows *sql.Rows, nCols int) ([][]string, error) {
	var page [][]string
	for rows.Next() {
		vals := make([]sql.NullString, nCols)
		ptrs := make([]any, nCols)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("duckdb: scan page: %w", err)
		}
		row := make([]string, nCols)
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		page = append(page, row)
	}
	return page, rows.Err()
}
