package cascade

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

// ForeignKeySource loads the foreign key constraints a table holds,
// keyed by constraint name.
type ForeignKeySource interface {
	ForeignKeys(ctx context.Context, table schema.TableRef) (map[string]schema.ForeignKey, error)
}

// AugmentRelationships loads foreign keys for every table already in the
// hierarchy and appends a relationship for each constraint that points
// at a discovered table but is not yet represented. The initial walk
// only follows edges outward from the root, so a constraint between two
// tables both reached via other paths can be missed; without its edge
// the level rebuild would under-estimate depth and order deletes
// unsafely. Levels are rebuilt from scratch afterwards. Returns how many
// relationships were added.
func AugmentRelationships(ctx context.Context, h *schema.Hierarchy, src ForeignKeySource, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}

	tables := h.Tables()
	inHierarchy := make(map[string]bool, len(tables))
	for _, t := range tables {
		inHierarchy[t.Key()] = true
	}

	added := 0
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		fks, err := src.ForeignKeys(ctx, table)
		if err != nil {
			log.Warn("foreign key load failed, skipping table",
				"table", table.Key(), "error", err)
			continue
		}

		names := make([]string, 0, len(fks))
		for name := range fks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fk := fks[name]
			refKey := fk.RefSchema + "." + fk.RefTable
			if !inHierarchy[refKey] {
				continue
			}
			rel, err := schema.FromForeignKey(fk)
			if err != nil {
				log.Warn("skipping malformed foreign key",
					"constraint", name, "error", err)
				continue
			}
			if h.Add(rel) {
				added++
				log.Debug("found additional relationship",
					"constraint", name,
					"dependent", rel.Dependent.Key(),
					"ancestor", refKey)
			}
		}
	}

	h.RebuildLevels()
	return added, nil
}
