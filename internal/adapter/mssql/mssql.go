package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
)

func init() {
	adapter.Register(&mssqlAdapter{})
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type mssqlAdapter struct{}

func (a *mssqlAdapter) Name() string     { return "mssql" }
func (a *mssqlAdapter) DefaultPort() int { return 1433 }

func (a *mssqlAdapter) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (a *mssqlAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}

	dbName := extractDBName(dsn)
	if dbName == "" {
		// Fall back to the session database.
		_ = db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&dbName)
	}

	return &mssqlConn{
		db:     db,
		dsn:    dsn,
		dbName: dbName,
	}, nil
}

// normalizeDSN rewrites the mssql:// scheme alias to the sqlserver:// scheme
// the driver expects. ADO-style "server=...;database=..." strings pass
// through untouched.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "mssql://") {
		return "sqlserver://" + strings.TrimPrefix(dsn, "mssql://")
	}
	return dsn
}

// extractDBName pulls the database name out of a sqlserver:// URL or an
// ADO-style connection string.
func extractDBName(dsn string) string {
	if strings.HasPrefix(dsn, "sqlserver://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		return u.Query().Get("database")
	}
	for _, part := range strings.Split(dsn, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "database") {
			return strings.TrimSpace(kv[1])
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type mssqlConn struct {
	db     *sql.DB
	dsn    string
	dbName string

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

func (c *mssqlConn) AdapterName() string  { return "mssql" }
func (c *mssqlConn) DatabaseName() string { return c.dbName }

func (c *mssqlConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *mssqlConn) Close() error {
	return c.db.Close()
}

// Cancel cancels the in-flight query. The driver sends an attention signal
// to the server when the context is cancelled.
func (c *mssqlConn) Cancel() error {
	c.mu.Lock()
	fn := c.cancelFn
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func schemaOrDefault(schemaName string) string {
	if schemaName == "" {
		return "dbo"
	}
	return schemaName
}

// qualify builds the bracket-quoted two-part name OBJECT_ID understands.
func qualify(schemaName, table string) string {
	q := func(s string) string { return "[" + strings.ReplaceAll(s, "]", "]]") + "]" }
	return q(schemaOrDefault(schemaName)) + "." + q(table)
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

func (c *mssqlConn) Databases(ctx context.Context) ([]schema.Database, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("mssql: databases: %w", err)
	}
	defer rows.Close()

	var dbs []schema.Database
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("mssql: databases scan: %w", err)
		}
		dbs = append(dbs, schema.Database{Name: name})
	}
	return dbs, rows.Err()
}

func (c *mssqlConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	sch := schemaOrDefault(schemaName)

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		ORDER BY t.name`, sch)
	if err != nil {
		return nil, fmt.Errorf("mssql: tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("mssql: tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Schema: sch, Name: name})
	}
	return tables, rows.Err()
}

func (c *mssqlConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.name,
		       ty.name,
		       c.is_nullable,
		       COALESCE(OBJECT_DEFINITION(c.default_object_id), ''),
		       COALESCE(ic.key_ordinal, 0)
		FROM sys.columns c
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.indexes i
			ON i.object_id = c.object_id AND i.is_primary_key = 1
		LEFT JOIN sys.index_columns ic
			ON ic.object_id = c.object_id
			AND ic.index_id = i.index_id
			AND ic.column_id = c.column_id
		WHERE c.object_id = OBJECT_ID(@p1)
		ORDER BY c.column_id`, qualify(schemaName, table))
	if err != nil {
		return nil, fmt.Errorf("mssql: columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			col   schema.Column
			pkOrd int
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &pkOrd); err != nil {
			return nil, fmt.Errorf("mssql: columns scan: %w", err)
		}
		col.IsPK = pkOrd > 0
		col.PKOrding = pkOrd
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *mssqlConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT i.name, col.name, i.is_unique
		FROM sys.indexes i
		JOIN sys.index_columns ic
			ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns col
			ON col.object_id = ic.object_id AND col.column_id = ic.column_id
		WHERE i.object_id = OBJECT_ID(@p1)
		  AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal`, qualify(schemaName, table))
	if err != nil {
		return nil, fmt.Errorf("mssql: indexes: %w", err)
	}
	defer rows.Close()

	indexMap := make(map[string]*schema.Index)
	var order []string
	for rows.Next() {
		var (
			idxName string
			colName string
			unique  bool
		)
		if err := rows.Scan(&idxName, &colName, &unique); err != nil {
			return nil, fmt.Errorf("mssql: indexes scan: %w", err)
		}
		idx, ok := indexMap[idxName]
		if !ok {
			idx = &schema.Index{Name: idxName, Unique: unique}
			indexMap[idxName] = idx
			order = append(order, idxName)
		}
		idx.Columns = append(idx.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]schema.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}

// fkSelect returns one row per constraint column, referencing and referenced
// columns paired by constraint_column_id.
const fkSelect = `
	SELECT fk.name,
	       OBJECT_SCHEMA_NAME(fk.parent_object_id),
	       OBJECT_NAME(fk.parent_object_id),
	       cp.name,
	       OBJECT_SCHEMA_NAME(fk.referenced_object_id),
	       OBJECT_NAME(fk.referenced_object_id),
	       cr.name
	FROM sys.foreign_keys fk
	JOIN sys.foreign_key_columns fkc
		ON fkc.constraint_object_id = fk.object_id
	JOIN sys.columns cp
		ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
	JOIN sys.columns cr
		ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id`

func (c *mssqlConn) ForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, fkSelect+`
		WHERE fk.parent_object_id = OBJECT_ID(@p1)
		ORDER BY fk.name, fkc.constraint_column_id`, qualify(schemaName, table))
	if err != nil {
		return nil, fmt.Errorf("mssql: foreign keys: %w", err)
	}
	defer rows.Close()

	return scanConstraintRows(rows)
}

// ReferencingForeignKeys returns constraints held by other tables whose
// referenced side is the given table.
func (c *mssqlConn) ReferencingForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, fkSelect+`
		WHERE fk.referenced_object_id = OBJECT_ID(@p1)
		ORDER BY OBJECT_SCHEMA_NAME(fk.parent_object_id), OBJECT_NAME(fk.parent_object_id),
		         fk.name, fkc.constraint_column_id`, qualify(schemaName, table))
	if err != nil {
		return nil, fmt.Errorf("mssql: referencing foreign keys: %w", err)
	}
	defer rows.Close()

	return scanConstraintRows(rows)
}

func scanConstraintRows(rows *sql.Rows) ([]schema.ForeignKey, error) {
	type fkKey struct{ schema, table, name string }
	fkMap := make(map[fkKey]*schema.ForeignKey)
	var order []fkKey

	for rows.Next() {
		var name, srcSchema, srcTable, srcCol, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &srcSchema, &srcTable, &srcCol, &refSchema, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("mssql: foreign keys scan: %w", err)
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

// ---------------------------------------------------------------------------
// Batch introspection (implements adapter.BatchIntrospector)
// ---------------------------------------------------------------------------

func (c *mssqlConn) AllColumns(ctx context.Context, db, schemaName string) (map[string][]schema.Column, error) {
	sch := schemaOrDefault(schemaName)

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name,
		       c.name,
		       ty.name,
		       c.is_nullable,
		       COALESCE(OBJECT_DEFINITION(c.default_object_id), ''),
		       COALESCE(ic.key_ordinal, 0)
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.columns c ON c.object_id = t.object_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.indexes i
			ON i.object_id = c.object_id AND i.is_primary_key = 1
		LEFT JOIN sys.index_columns ic
			ON ic.object_id = c.object_id
			AND ic.index_id = i.index_id
			AND ic.column_id = c.column_id
		WHERE s.name = @p1
		ORDER BY t.name, c.column_id`, sch)
	if err != nil {
		return nil, fmt.Errorf("mssql: all columns: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]schema.Column)
	for rows.Next() {
		var (
			table string
			col   schema.Column
			pkOrd int
		)
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.Nullable, &col.Default, &pkOrd); err != nil {
			return nil, fmt.Errorf("mssql: all columns scan: %w", err)
		}
		col.IsPK = pkOrd > 0
		col.PKOrding = pkOrd
		result[table] = append(result[table], col)
	}
	return result, rows.Err()
}

func (c *mssqlConn) AllForeignKeys(ctx context.Context, db, schemaName string) (map[string][]schema.ForeignKey, error) {
	sch := schemaOrDefault(schemaName)

	rows, err := c.db.QueryContext(ctx, fkSelect+`
		WHERE OBJECT_SCHEMA_NAME(fk.parent_object_id) = @p1
		ORDER BY OBJECT_NAME(fk.parent_object_id), fk.name, fkc.constraint_column_id`, sch)
	if err != nil {
		return nil, fmt.Errorf("mssql: all foreign keys: %w", err)
	}
	defer rows.Close()

	fks, err := scanConstraintRows(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]schema.ForeignKey)
	for _, fk := range fks {
		result[fk.Table] = append(result[fk.Table], fk)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Views, routines, sizes
// ---------------------------------------------------------------------------

func (c *mssqlConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	sch := schemaOrDefault(schemaName)

	rows, err := c.db.QueryContext(ctx, `
		SELECT v.name, COALESCE(m.definition, '')
		FROM sys.views v
		JOIN sys.schemas s ON s.schema_id = v.schema_id
		LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
		WHERE s.name = @p1
		ORDER BY v.name`, sch)
	if err != nil {
		return nil, fmt.Errorf("mssql: views: %w", err)
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var v schema.View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, fmt.Errorf("mssql: views scan: %w", err)
		}
		v.Schema = sch
		views = append(views, v)
	}
	return views, rows.Err()
}

func (c *mssqlConn) Routines(ctx context.Context, db, schemaName string) ([]schema.Routine, error) {
	sch := schemaOrDefault(schemaName)

	rows, err := c.db.QueryContext(ctx, `
		SELECT o.name, o.type, COALESCE(m.definition, '')
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		LEFT JOIN sys.sql_modules m ON m.object_id = o.object_id
		WHERE o.type IN ('P', 'FN', 'IF', 'TF')
		  AND s.name = @p1
		ORDER BY o.name`, sch)
	if err != nil {
		return nil, fmt.Errorf("mssql: routines: %w", err)
	}
	defer rows.Close()

	var routines []schema.Routine
	for rows.Next() {
		var (
			r       schema.Routine
			sysType string
		)
		if err := rows.Scan(&r.Name, &sysType, &r.Definition); err != nil {
			return nil, fmt.Errorf("mssql: routines scan: %w", err)
		}
		r.Schema = sch
		if strings.TrimSpace(sysType) == "P" {
			r.Type = "PROCEDURE"
		} else {
			r.Type = "FUNCTION"
		}
		routines = append(routines, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range routines {
		params, err := c.routineParams(ctx, sch, routines[i].Name)
		if err != nil {
			return nil, err
		}
		routines[i].Params = params
	}
	return routines, nil
}

func (c *mssqlConn) routineParams(ctx context.Context, sch, routine string) ([]schema.RoutineParam, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT pa.name, ty.name, pa.parameter_id, pa.is_output
		FROM sys.parameters pa
		JOIN sys.types ty ON ty.user_type_id = pa.user_type_id
		WHERE pa.object_id = OBJECT_ID(@p1)
		  AND pa.parameter_id > 0
		ORDER BY pa.parameter_id`, qualify(sch, routine))
	if err != nil {
		return nil, fmt.Errorf("mssql: routine params: %w", err)
	}
	defer rows.Close()

	var params []schema.RoutineParam
	for rows.Next() {
		var p schema.RoutineParam
		if err := rows.Scan(&p.Name, &p.Type, &p.Position, &p.IsOutput); err != nil {
			return nil, fmt.Errorf("mssql: routine params scan: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// SchemaSizes aggregates allocation pages per schema. A page is 8 KB.
func (c *mssqlConn) SchemaSizes(ctx context.Context, db string) ([]adapter.SchemaSize, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT s.name,
		       COUNT(DISTINCT t.object_id),
		       CAST(SUM(a.total_pages) * 8.0 / 1024 AS FLOAT),
		       CAST(SUM(a.data_pages) * 8.0 / 1024 AS FLOAT),
		       CAST(SUM(a.used_pages - a.data_pages) * 8.0 / 1024 AS FLOAT)
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.indexes i ON i.object_id = t.object_id
		JOIN sys.partitions p
			ON p.object_id = i.object_id AND p.index_id = i.index_id
		JOIN sys.allocation_units a ON a.container_id = p.partition_id
		GROUP BY s.name
		ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("mssql: schema sizes: %w", err)
	}
	defer rows.Close()

	var sizes []adapter.SchemaSize
	for rows.Next() {
		var s adapter.SchemaSize
		if err := rows.Scan(&s.Schema, &s.TableCount, &s.TotalMB, &s.DataMB, &s.IndexMB); err != nil {
			return nil, fmt.Errorf("mssql: schema sizes scan: %w", err)
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}

// ---------------------------------------------------------------------------
// Query execution
// ---------------------------------------------------------------------------

func (c *mssqlConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.cancelFn = nil
		c.mu.Unlock()
		cancel()
	}()

	start := time.Now()

	if isSelectQuery(query) {
		return c.executeSelect(ctx, query, start)
	}
	return c.executeExec(ctx, query, start)
}

func (c *mssqlConn) executeSelect(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("mssql: query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("mssql: column types: %w", err)
	}

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i].Name = ct.Name()
		cols[i].Type = ct.DatabaseTypeName()
		if n, ok := ct.Nullable(); ok {
			cols[i].Nullable = n
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
			return nil, fmt.Errorf("mssql: scan: %w", err)
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
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("mssql: rows: %w", err)
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

func (c *mssqlConn) executeExec(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("mssql: exec: %w", err)
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
func (c *mssqlConn) QueryValues(ctx context.Context, query string) (*adapter.ValueResult, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("mssql: query values: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("mssql: column types: %w", err)
	}

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i].Name = ct.Name()
		cols[i].Type = ct.DatabaseTypeName()
		if n, ok := ct.Nullable(); ok {
			cols[i].Nullable = n
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
			return nil, fmt.Errorf("mssql: query values scan: %w", err)
		}
		for i := range values {
			values[i] = adapter.NormalizeValue(cols[i].Type, values[i])
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: query values rows: %w", err)
	}

	return &adapter.ValueResult{
		Columns:  cols,
		Rows:     out,
		Duration: time.Since(start),
	}, nil
}

// Begin opens an explicit transaction.
func (c *mssqlConn) Begin(ctx context.Context) (adapter.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	return &mssqlTx{tx: tx}, nil
}

type mssqlTx struct {
	tx *sql.Tx
}

func (t *mssqlTx) Exec(ctx context.Context, query string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (t *mssqlTx) Commit() error   { return t.tx.Commit() }
func (t *mssqlTx) Rollback() error { return t.tx.Rollback() }

// ---------------------------------------------------------------------------
// Streaming (OFFSET/FETCH pagination)
// ---------------------------------------------------------------------------

func (c *mssqlConn) ExecuteStreaming(ctx context.Context, query string, pageSize int) (adapter.RowIterator, error) {
	if pageSize <= 0 {
		pageSize = adapter.DefaultPageSize
	}

	base := strings.TrimRight(query, "; \t\n")

	// Probe columns without fetching rows.
	probeQuery := fmt.Sprintf("SELECT TOP 0 * FROM (%s) AS _t", base)
	rows, err := c.db.QueryContext(ctx, probeQuery)
	if err != nil {
		return nil, fmt.Errorf("mssql: streaming probe: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("mssql: streaming column types: %w", err)
	}
	rows.Close()

	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i].Name = ct.Name()
		cols[i].Type = ct.DatabaseTypeName()
		if n, ok := ct.Nullable(); ok {
			cols[i].Nullable = n
		}
	}

	return &rowIterator{
		db:        c.db,
		baseQuery: base,
		pageSize:  pageSize,
		cols:      cols,
	}, nil
}

type rowIterator struct {
	db        *sql.DB
	baseQuery string
	pageSize  int
	cols      []adapter.ColumnMeta
	offset    int
}

func (it *rowIterator) Columns() []adapter.ColumnMeta { return it.cols }
func (it *rowIterator) TotalRows() int64              { return -1 }
func (it *rowIterator) Close() error                  { return nil }

func (it *rowIterator) pagedQuery(offset int) string {
	// OFFSET/FETCH requires an ORDER BY clause; ORDER BY (SELECT NULL)
	// preserves the underlying order without naming a column.
	return fmt.Sprintf(
		"SELECT * FROM (%s) AS _t ORDER BY (SELECT NULL) OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		it.baseQuery, offset, it.pageSize)
}

func (it *rowIterator) FetchNext(ctx context.Context) ([][]string, error) {
	rows, err := it.db.QueryContext(ctx, it.pagedQuery(it.offset))
	if err != nil {
		return nil, fmt.Errorf("mssql: fetch next: %w", err)
	}
	defer rows.Close()

	page, err := scanPage(rows, len(it.cols))
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, io.EOF
	}
	it.offset += len(page)
	return page, nil
}

func (it *rowIterator) FetchPrev(ctx context.Context) ([][]string, error) {
	if it.offset <= it.pageSize {
		return nil, adapter.ErrNoBidirectional
	}
	newOffset := it.offset - 2*it.pageSize
	if newOffset < 0 {
		newOffset = 0
	}

	rows, err := it.db.QueryContext(ctx, it.pagedQuery(newOffset))
	if err != nil {
		return nil, fmt.Errorf("mssql: fetch prev: %w", err)
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
			return nil, fmt.Errorf("mssql: scan page: %w", err)
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

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// isSelectQuery returns true if the trimmed, uppercased query starts with a
// keyword that produces a result set.
func isSelectQuery(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "EXEC", "DECLARE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
