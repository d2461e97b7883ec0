// Package metadata provides cached catalog discovery on top of an adapter
// connection. Each table involved in a run gets one accumulating record, so
// columns, primary keys, and foreign keys are fetched from the catalog at
// most once. The package also builds the dependency hierarchy the cleanup
// planner starts from, by walking referencing foreign keys outward from a
// root table.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
)

// maxWalkDepth bounds the hierarchy walk. The visited set already keeps the
// walk finite; the cap is a second stop for catalogs where constraint chains
// run absurdly deep.
const maxWalkDepth = 100

// Catalog is the slice of adapter.Connection the service reads from.
type Catalog interface {
	Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error)
	ForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error)
	ReferencingForeignKeys(ctx context.Context, db, schemaName, table string) ([]schema.ForeignKey, error)
	DatabaseName() string
}

// Service caches catalog metadata for one run. Records grow as more of the
// catalog is loaded and are never invalidated; a run sees one consistent
// snapshot. Not safe for concurrent use.
type Service struct {
	cat Catalog
	log *slog.Logger

	tables map[string]*schema.TableMeta
}

// NewService wraps a catalog source. A nil logger falls back to slog.Default.
func NewService(cat Catalog, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cat:    cat,
		log:    log,
		tables: make(map[string]*schema.TableMeta),
	}
}

// Table returns the accumulating record for ref, creating it on first use.
func (s *Service) Table(ref schema.TableRef) *schema.TableMeta {
	if m, ok := s.tables[ref.Key()]; ok {
		return m
	}
	m := &schema.TableMeta{Ref: ref}
	s.tables[ref.Key()] = m
	return m
}

// Columns returns the table's columns, loading them on first call. Loading
// columns also derives the primary key from the key ordinals they carry.
func (s *Service) Columns(ctx context.Context, ref schema.TableRef) ([]schema.Column, error) {
	m := s.Table(ref)
	if m.Columns != nil {
		return m.Columns, nil
	}
	cols, err := s.cat.Columns(ctx, s.cat.DatabaseName(), ref.Schema, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", ref.Key(), err)
	}
	m.Columns = cols
	if m.PrimaryKey == nil {
		m.PrimaryKey = primaryKeyFromColumns(cols)
	}
	return cols, nil
}

// PrimaryKey returns the table's primary key, or nil when it has none.
// A table confirmed to lack one is not asked again.
func (s *Service) PrimaryKey(ctx context.Context, ref schema.TableRef) (*schema.TableKey, error) {
	m := s.Table(ref)
	if m.PrimaryKey != nil {
		return m.PrimaryKey, nil
	}
	if m.Columns != nil {
		return nil, nil
	}
	if _, err := s.Columns(ctx, ref); err != nil {
		return nil, err
	}
	return s.Table(ref).PrimaryKey, nil
}

// ForeignKeys returns the constraints held by the table, keyed by constraint
// name. The FKsLoaded flag on the record distinguishes "never asked" from
// "asked, zero constraints", so leaf tables are only queried once.
func (s *Service) ForeignKeys(ctx context.Context, ref schema.TableRef) (map[string]schema.ForeignKey, error) {
	m := s.Table(ref)
	if m.FKsLoaded {
		return m.ForeignKeys, nil
	}
	fks, err := s.cat.ForeignKeys(ctx, s.cat.DatabaseName(), ref.Schema, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", ref.Key(), err)
	}
	m.ForeignKeys = make(map[string]schema.ForeignKey, len(fks))
	for _, fk := range fks {
		m.ForeignKeys[fk.Name] = fk
	}
	m.FKsLoaded = true
	return m.ForeignKeys, nil
}

// Preload warms the cache for every table of one schema in two catalog round
// trips when the underlying connection supports batch introspection. Reports
// whether a batch load happened; without support it is a no-op and per-table
// lookups proceed lazily.
func (s *Service) Preload(ctx context.Context, schemaName string) (bool, error) {
	bi, ok := s.cat.(adapter.BatchIntrospector)
	if !ok {
		return false, nil
	}
	db := s.cat.DatabaseName()

	cols, err := bi.AllColumns(ctx, db, schemaName)
	if err != nil {
		return false, fmt.Errorf("preload columns of schema %s: %w", schemaName, err)
	}
	fks, err := bi.AllForeignKeys(ctx, db, schemaName)
	if err != nil {
		return false, fmt.Errorf("preload foreign keys of schema %s: %w", schemaName, err)
	}

	for name, tableCols := range cols {
		m := s.Table(schema.TableRef{Schema: schemaName, Name: name})
		m.Columns = tableCols
		if m.PrimaryKey == nil {
			m.PrimaryKey = primaryKeyFromColumns(tableCols)
		}
		// The schema-wide constraint load covers every table of the
		// schema, including those holding none.
		byName := make(map[string]schema.ForeignKey, len(fks[name]))
		for _, fk := range fks[name] {
			byName[fk.Name] = fk
		}
		m.ForeignKeys = byName
		m.FKsLoaded = true
	}
	return true, nil
}

// BuildHierarchy discovers the dependency graph below root by walking
// referencing foreign keys breadth-first. Levels are assigned by discovery
// depth; callers augment the relationship set afterwards and rebuild levels
// before ordering deletions. A failed lookup on one table logs a warning and
// leaves that branch unexplored, never failing the whole walk.
func (s *Service) BuildHierarchy(ctx context.Context, root schema.TableRef) (*schema.Hierarchy, error) {
	h := schema.NewHierarchy(root)
	db := s.cat.DatabaseName()

	type frontier struct {
		ref   schema.TableRef
		depth int
	}
	visited := map[string]bool{root.Key(): true}
	queue := []frontier{{root, 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxWalkDepth {
			s.log.Warn("hierarchy walk depth limit reached",
				"table", cur.ref.Key(), "depth", cur.depth)
			continue
		}

		fks, err := s.cat.ReferencingForeignKeys(ctx, db, cur.ref.Schema, cur.ref.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("referencing constraint lookup failed",
				"table", cur.ref.Key(), "error", err)
			continue
		}
		for _, fk := range fks {
			rel, err := schema.FromForeignKey(fk)
			if err != nil {
				s.log.Warn("skipping malformed constraint",
					"constraint", fk.Name, "error", err)
				continue
			}
			h.Add(rel)
			key := rel.Dependent.Key()
			if !visited[key] {
				visited[key] = true
				h.Levels[key] = cur.depth + 1
				queue = append(queue, frontier{rel.Dependent, cur.depth + 1})
			}
		}
	}
	return h, nil
}

// primaryKeyFromColumns assembles the key from per-column ordinals, ordered
// by position within the key. Returns nil when no column is part of one.
func primaryKeyFromColumns(cols []schema.Column) *schema.TableKey {
	var pk []schema.Column
	for _, c := range cols {
		if c.IsPK {
			pk = append(pk, c)
		}
	}
	if len(pk) == 0 {
		return nil
	}
	sort.SliceStable(pk, func(i, j int) bool { return pk[i].PKOrding < pk[j].PKOrding })
	key := &schema.TableKey{Columns: make([]string, len(pk))}
	for i, c := range pk {
		key.Columns[i] = c.Name
	}
	return key
}
