package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/schema"
	"github.com/sqlsweep/sqlsweep/internal/sqlgen"
)

const (
	// DefaultBatchSize is the chunk size for batched lookups and deletes.
	DefaultBatchSize = 1000

	// DefaultBatchThreshold is the value-set size at which lookups and
	// deletes switch to batched mode.
	DefaultBatchThreshold = 1000

	// DefaultMaxIterations bounds the planner loop. A finite schema graph
	// drains well below this; hitting it means relationship discovery
	// produced an unanticipated cycle, and the run stops with the partial
	// result rather than spinning.
	DefaultMaxIterations = 1000
)

// MetadataSource supplies the table metadata the planner consults during
// the walk.
type MetadataSource interface {
	PrimaryKey(ctx context.Context, table schema.TableRef) (*schema.TableKey, error)
}

// Querier runs generated lookup SQL and returns driver-native values.
type Querier interface {
	QueryValues(ctx context.Context, query string) (*adapter.ValueResult, error)
}

// Config carries the planner's tunables. The zero value of BatchSize and
// MaxIterations means "use the default"; a BatchThreshold of zero
// disables batching and forces single-query mode regardless of set size.
type Config struct {
	BatchSize      int
	BatchThreshold int
	MaxIterations  int
	Quote          sqlgen.Quoter
	Logger         *slog.Logger
}

// DefaultConfig returns the planner defaults with batching enabled.
func DefaultConfig() Config {
	return Config{
		BatchSize:      DefaultBatchSize,
		BatchThreshold: DefaultBatchThreshold,
		MaxIterations:  DefaultMaxIterations,
	}
}

// Stats aggregates what one cascade run actually processed.
type Stats struct {
	TablesProcessed        int
	RelationshipsProcessed int
	TotalRecordsFound      int
	MaxLevelReached        int
	ProcessingTime         time.Duration
}

// Result is the outcome of one cascade run: the per-table operations,
// the level-descending deletion order, and run statistics. BoundExceeded
// marks a run stopped by the iteration cap; its operations are a usable
// partial plan that under-deletes, never over-deletes.
type Result struct {
	Operations    map[string]*Operation
	DeletionOrder []schema.TableRef
	Stats         Stats
	BoundExceeded bool
}

// Planner walks the dependency graph breadth first and accumulates the
// rows each table must lose. All queries are issued one at a time; the
// queue's merge invariants assume no concurrent mutation.
type Planner struct {
	meta MetadataSource
	db   Querier
	cfg  Config
	log  *slog.Logger

	pkCols map[string][]string
}

// NewPlanner builds a planner over the given metadata source and query
// executor.
func NewPlanner(meta MetadataSource, db Querier, cfg Config) *Planner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Quote == nil {
		cfg.Quote = sqlgen.BracketQuote
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Planner{
		meta:   meta,
		db:     db,
		cfg:    cfg,
		log:    log,
		pkCols: make(map[string][]string),
	}
}

// Plan computes the full cascade below the hierarchy's root for the
// given root primary key values. The root must have a primary key;
// failures on individual relationships are logged and treated as empty
// results so one bad branch degrades coverage instead of aborting the
// run.
func (p *Planner) Plan(ctx context.Context, h *schema.Hierarchy, rootIDs *KeySet) (*Result, error) {
	start := time.Now()

	rootPK, err := p.primaryKey(ctx, h.Root)
	if err != nil {
		return nil, err
	}
	if len(rootPK) == 0 {
		return nil, fmt.Errorf("root table %s has no primary key", h.Root)
	}

	queue := NewQueue()
	index := NewRelationshipIndex(h.Relationships)
	var stats Stats

	queue.AddTask(h.Root, rootIDs, 0)

	boundExceeded := false
	for iter := 0; queue.HasPending(); iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iter >= p.cfg.MaxIterations {
			p.log.Warn("cascade iteration bound reached, stopping with partial result",
				"iterations", iter)
			boundExceeded = true
			break
		}

		task := queue.NextTask()
		if task == nil {
			break
		}
		if task.IDs.Len() == 0 {
			queue.MarkCompleted(task.Key)
			continue
		}

		queue.MarkProcessing(task.Key)

		rels := index.DependentsOf(task.Key)
		if len(rels) == 0 {
			queue.MarkCompleted(task.Key)
			continue
		}

		p.log.Debug("processing table",
			"table", task.Key,
			"records", task.IDs.Len(),
			"relationships", len(rels),
			"level", task.Level)

		for _, rel := range rels {
			refValues, err := p.referencedValues(ctx, task, rel)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.log.Warn("referenced value lookup failed, skipping relationship",
					"relationship", rel.Name, "table", task.Key, "error", err)
				continue
			}
			if refValues.Len() == 0 {
				continue
			}

			childIDs, err := p.childKeys(ctx, rel, refValues)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.log.Warn("child key lookup failed, skipping relationship",
					"relationship", rel.Name, "table", rel.Dependent.Key(), "error", err)
				continue
			}
			if childIDs.Len() == 0 {
				continue
			}

			queue.AddTask(rel.Dependent, childIDs, task.Level+1)
			stats.RelationshipsProcessed++
			p.log.Debug("cascade step",
				"from", task.Key,
				"to", rel.Dependent.Key(),
				"records", childIDs.Len())
		}

		queue.MarkCompleted(task.Key)
	}

	ops := queue.Operations()
	for key, op := range ops {
		op.PKColumns = p.pkCols[key]
	}

	for _, t := range queue.Tasks() {
		if t.Status == StatusCompleted {
			stats.TablesProcessed++
		}
		stats.TotalRecordsFound += t.IDs.Len()
		if t.Level > stats.MaxLevelReached {
			stats.MaxLevelReached = t.Level
		}
	}
	stats.ProcessingTime = time.Since(start)

	p.log.Info("cascade processing complete",
		"tables", stats.TablesProcessed,
		"relationships", stats.RelationshipsProcessed,
		"records", stats.TotalRecordsFound,
		"maxLevel", stats.MaxLevelReached,
		"duration", stats.ProcessingTime)

	return &Result{
		Operations:    ops,
		DeletionOrder: h.DeletionOrder(),
		Stats:         stats,
		BoundExceeded: boundExceeded,
	}, nil
}

// primaryKey returns the table's primary key column names, caching per
// table. A table with no primary key caches an empty list.
func (p *Planner) primaryKey(ctx context.Context, table schema.TableRef) ([]string, error) {
	key := table.Key()
	if cols, ok := p.pkCols[key]; ok {
		return cols, nil
	}
	pk, err := p.meta.PrimaryKey(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", key, err)
	}
	var cols []string
	if pk != nil {
		cols = pk.Columns
	}
	p.pkCols[key] = cols
	return cols, nil
}

// referencedValues projects the relationship's referenced columns from
// the task's table, restricted to rows whose primary key is in the
// task's ID set. The projection step matters because a foreign key may
// reference a unique key other than the primary key, so pending IDs
// cannot be matched against the dependent's columns directly.
func (p *Planner) referencedValues(ctx context.Context, task *Task, rel schema.Relationship) (*KeySet, error) {
	pkCols, err := p.primaryKey(ctx, task.Table)
	if err != nil {
		return nil, err
	}
	if len(pkCols) == 0 {
		p.log.Warn("no primary key found", "table", task.Key)
		return NewKeySet(), nil
	}
	return p.lookup(ctx, rel.AncestorColumns, task.Table, pkCols, task.IDs)
}

// childKeys finds the distinct primary key values of dependent rows
// whose foreign key columns match any of the projected tuples.
func (p *Planner) childKeys(ctx context.Context, rel schema.Relationship, refValues *KeySet) (*KeySet, error) {
	pkCols, err := p.primaryKey(ctx, rel.Dependent)
	if err != nil {
		return nil, err
	}
	if len(pkCols) == 0 {
		p.log.Warn("no primary key found", "table", rel.Dependent.Key())
		return NewKeySet(), nil
	}
	return p.lookup(ctx, pkCols, rel.Dependent, rel.DependentColumns, refValues)
}

// lookup selects the distinct outCols tuples from the table for rows
// whose keyCols match the key set, splitting into chunked queries when
// the set size reaches the batching threshold. Results are unioned and
// deduplicated across chunks.
func (p *Planner) lookup(ctx context.Context, outCols []string, table schema.TableRef, keyCols []string, keys *KeySet) (*KeySet, error) {
	tuples := keys.Tuples()

	batches := [][][]any{tuples}
	if p.cfg.BatchThreshold > 0 && keys.Len() >= p.cfg.BatchThreshold {
		p.log.Debug("batching lookup",
			"table", table.Key(), "values", keys.Len(), "batchSize", p.cfg.BatchSize)
		batches = sqlgen.Chunk(tuples, p.cfg.BatchSize)
	}

	out := NewKeySet()
	for _, batch := range batches {
		query := sqlgen.SelectDistinct(p.cfg.Quote, outCols, table.Schema, table.Name, keyCols, batch)
		res, err := p.db.QueryValues(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, row := range res.Rows {
			out.Add(NewKey(row...))
		}
	}
	return out, nil
}
