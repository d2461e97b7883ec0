// Package adapter defines the database engine abstraction used by every
// tool in the suite. Engines register themselves at init time; callers pick
// one from the registry by name and work against the Connection interface.
package adapter

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

var (
	ErrNoBidirectional = errors.New("adapter does not support bidirectional scrolling")
	ErrNotConnected    = errors.New("not connected to database")
	ErrCancelled       = errors.New("query cancelled")
	ErrNotSupported    = errors.New("operation not supported by this adapter")
)

// DefaultPageSize is the fallback page size for streaming reads.
const DefaultPageSize = 1000

// DefaultMaxRows caps how many rows Execute materializes for display.
// Streaming callers are unaffected.
const DefaultMaxRows = 10000

// Adapter creates database connections for one engine.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int

	// Quote wraps an identifier in the engine's quoting style. Generated
	// scripts always use bracket quoting; live lookups use this.
	Quote(ident string) string
}

// Connection represents an active database connection.
type Connection interface {
	// Introspection
	Databases(ctx context.Context) ([]schema.Database, error)
	Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error)
	Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error)
	Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error)
	ForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error)

	// ReferencingForeignKeys returns the constraints held by OTHER tables
	// that point at the given table. This is the outward edge set the
	// hierarchy walk follows.
	ReferencingForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error)

	// Query execution. Execute renders every value as a display string;
	// QueryValues keeps driver-native values for callers that need to
	// round-trip them (key sets, literal formatting).
	Execute(ctx context.Context, query string) (*QueryResult, error)
	QueryValues(ctx context.Context, query string) (*ValueResult, error)
	Cancel() error

	// Streaming for large results
	ExecuteStreaming(ctx context.Context, query string, pageSize int) (RowIterator, error)

	// Begin opens an explicit transaction for destructive statement runs.
	Begin(ctx context.Context) (Tx, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
}

// Tx is an open transaction. Statements run on it see each other's effects
// and nothing is visible outside until Commit.
type Tx interface {
	Exec(ctx context.Context, query string) (int64, error)
	Commit() error
	Rollback() error
}

// BatchIntrospector is implemented by adapters that can fetch metadata for a
// whole database in one round trip per catalog. The diagram tool prefers it
// over per-table introspection.
type BatchIntrospector interface {
	AllColumns(ctx context.Context, db, schemaName string) (map[string][]schema.Column, error)
	AllForeignKeys(ctx context.Context, db, schemaName string) (map[string][]schema.ForeignKey, error)
}

// ViewLister is implemented by adapters that can enumerate views with their
// definitions. Used by the smoke tester and the definition comparer.
type ViewLister interface {
	Views(ctx context.Context, db, schemaName string) ([]schema.View, error)
}

// RoutineLister is implemented by adapters that can enumerate stored
// procedures and functions.
type RoutineLister interface {
	Routines(ctx context.Context, db, schemaName string) ([]schema.Routine, error)
}

// SizeReporter is implemented by adapters that can report physical storage
// usage per schema.
type SizeReporter interface {
	SchemaSizes(ctx context.Context, db string) ([]SchemaSize, error)
}

// SchemaSize is one row of a storage report.
type SchemaSize struct {
	Schema     string
	TableCount int
	TotalMB    float64
	DataMB     float64
	IndexMB    float64
}

// RowIterator provides paginated access to query results.
type RowIterator interface {
	FetchNext(ctx context.Context) ([][]string, error)
	FetchPrev(ctx context.Context) ([][]string, error)
	Columns() []ColumnMeta
	TotalRows() int64 // -1 if unknown
	Close() error
}

// QueryResult holds the result of a query execution.
type QueryResult struct {
	Columns   []ColumnMeta
	Rows      [][]string
	RowCount  int64 // -1 if unknown
	Duration  time.Duration
	IsSelect  bool
	Truncated bool
	Message   string
}

// ValueResult holds rows with driver-native values: int64, float64, bool,
// []byte, string, time.Time, or nil. Byte slices are the driver's raw form
// of text; callers normalize them before use.
type ValueResult struct {
	Columns  []ColumnMeta
	Rows     [][]any
	Duration time.Duration
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
}

// SentinelEOF returns true if err is io.EOF.
func SentinelEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Get returns the adapter registered under name.
func Get(name string) (Adapter, bool) {
	a, ok := Registry[name]
	return a, ok
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	out := make([]string, 0, len(Registry))
	for name := range Registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
