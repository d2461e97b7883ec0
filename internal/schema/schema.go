// Package schema defines the metadata value types shared by the adapters,
// the metadata service, and the cascade planner: columns, keys, tables,
// foreign-key relationships, and the dependency hierarchy built from them.
package schema

import (
	"fmt"
	"strings"
)

// Database represents a database with its schemas.
type Database struct {
	Name    string
	Schemas []Schema
}

// Schema represents a database schema (e.g., "dbo" in SQL Server,
// "public" in PostgreSQL).
type Schema struct {
	Name   string
	Tables []Table
	Views  []View
}

// Table represents a database table as listed by an adapter.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
	Indexes []Index
	FKs     []ForeignKey
}

// Column represents a table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
	IsPK     bool
	PKOrding int // 1-based position within the primary key, 0 if not part of it
}

// Index represents a table index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey represents a foreign key constraint. Schema and Table identify
// the table holding the constraint (the dependent side); RefSchema and
// RefTable identify the table being pointed at. Columns and RefColumns are
// positionally paired and always have equal length.
type ForeignKey struct {
	Name       string
	Schema     string
	Table      string
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
}

// View represents a database view.
type View struct {
	Schema     string
	Name       string
	Columns    []Column
	Definition string
}

// Routine represents a stored procedure or function.
type Routine struct {
	Schema     string
	Name       string
	Type       string // "PROCEDURE" or "FUNCTION"
	Params     []RoutineParam
	Definition string
}

// RoutineParam represents one parameter of a stored routine.
type RoutineParam struct {
	Name     string
	Type     string
	Position int
	IsOutput bool
}

// TableRef identifies a table by schema and name. It is the identity used
// everywhere tables are compared, hashed, or used as map keys.
type TableRef struct {
	Schema string
	Name   string
}

// Key returns the canonical "schema.table" lookup key.
func (r TableRef) Key() string {
	return r.Schema + "." + r.Name
}

// String returns the bracket-quoted qualified name, e.g. "[dbo].[Orders]".
func (r TableRef) String() string {
	return fmt.Sprintf("[%s].[%s]", r.Schema, r.Name)
}

// ParseTableRef splits "schema.table" into a TableRef. A bare name gets the
// provided default schema.
func ParseTableRef(s, defaultSchema string) TableRef {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return TableRef{Schema: s[:i], Name: s[i+1:]}
	}
	return TableRef{Schema: defaultSchema, Name: s}
}

// TableKey holds a named ordered column list: a primary key or unique key.
type TableKey struct {
	Name    string
	Columns []string
}

// TableMeta is the accumulating metadata record for one table. It is created
// once per run by the metadata service and extended (never shrunk) as more
// catalog information is loaded.
type TableMeta struct {
	Ref        TableRef
	PrimaryKey *TableKey
	UniqueKeys []TableKey
	Columns    []Column

	// ForeignKeys is keyed by constraint name. FKsLoaded records whether a
	// full foreign-key load has happened, since a table can legitimately
	// have zero constraints.
	ForeignKeys map[string]ForeignKey
	FKsLoaded   bool
}

// HasPrimaryKey reports whether a primary key was discovered for the table.
func (m *TableMeta) HasPrimaryKey() bool {
	return m.PrimaryKey != nil && len(m.PrimaryKey.Columns) > 0
}

// Relationship is one traversable foreign-key edge of the dependency graph.
// Dependent is the table holding the foreign key (its rows must go first);
// Ancestor is the table being referenced. The column slices are positionally
// paired: Dependent.DependentColumns[i] references Ancestor.AncestorColumns[i].
type Relationship struct {
	Name             string
	Dependent        TableRef
	DependentColumns []string
	Ancestor         TableRef
	AncestorColumns  []string
}

// NewRelationship validates the column arity pairing at construction time.
func NewRelationship(name string, dependent TableRef, depCols []string, ancestor TableRef, ancCols []string) (Relationship, error) {
	if len(depCols) == 0 || len(depCols) != len(ancCols) {
		return Relationship{}, fmt.Errorf("relationship %s: dependent columns (%d) and ancestor columns (%d) must pair up",
			name, len(depCols), len(ancCols))
	}
	return Relationship{
		Name:             name,
		Dependent:        dependent,
		DependentColumns: depCols,
		Ancestor:         ancestor,
		AncestorColumns:  ancCols,
	}, nil
}

// FromForeignKey converts catalog foreign-key metadata into a Relationship.
func FromForeignKey(fk ForeignKey) (Relationship, error) {
	return NewRelationship(
		fk.Name,
		TableRef{Schema: fk.Schema, Name: fk.Table},
		fk.Columns,
		TableRef{Schema: fk.RefSchema, Name: fk.RefTable},
		fk.RefColumns,
	)
}

// ident returns the tuple that makes a relationship unique within a run.
func (r Relationship) ident() [3]string {
	return [3]string{r.Dependent.Key(), r.Ancestor.Key(), r.Name}
}
