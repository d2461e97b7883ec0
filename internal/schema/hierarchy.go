package schema

import "sort"

// maxLevelPasses caps the fixed-point relaxation in RebuildLevels. The level
// of a table can rise at most once per distinct dependency path, so graphs
// deeper than this are treated as converged wherever they stand.
const maxLevelPasses = 10

// Hierarchy is the dependency graph discovered below one root table: the
// traversable relationships plus a per-table level map. Level 0 is the root;
// a dependent table's level is the longest discovered dependency distance
// from the root, which is what makes level-descending deletion safe on
// diamond-shaped graphs.
type Hierarchy struct {
	Root          TableRef
	Relationships []Relationship
	Levels        map[string]int

	seen map[[3]string]bool
}

// NewHierarchy creates an empty hierarchy rooted at the given table.
func NewHierarchy(root TableRef) *Hierarchy {
	return &Hierarchy{
		Root:   root,
		Levels: map[string]int{root.Key(): 0},
		seen:   make(map[[3]string]bool),
	}
}

// Add appends a relationship unless the same constraint (dependent table,
// ancestor table, name) is already present. Reports whether it was added.
func (h *Hierarchy) Add(rel Relationship) bool {
	if h.seen == nil {
		h.seen = make(map[[3]string]bool)
		for _, r := range h.Relationships {
			h.seen[r.ident()] = true
		}
	}
	id := rel.ident()
	if h.seen[id] {
		return false
	}
	h.seen[id] = true
	h.Relationships = append(h.Relationships, rel)
	return true
}

// Contains reports whether the table appears in the hierarchy, either as the
// root or on any side of a discovered relationship.
func (h *Hierarchy) Contains(ref TableRef) bool {
	if ref == h.Root {
		return true
	}
	for _, rel := range h.Relationships {
		if rel.Dependent == ref || rel.Ancestor == ref {
			return true
		}
	}
	return false
}

// Tables returns every table involved in the hierarchy: the root first, then
// each relationship's dependent and ancestor tables in first-seen order.
func (h *Hierarchy) Tables() []TableRef {
	var out []TableRef
	added := map[string]bool{}
	add := func(ref TableRef) {
		if !added[ref.Key()] {
			added[ref.Key()] = true
			out = append(out, ref)
		}
	}
	add(h.Root)
	for _, rel := range h.Relationships {
		add(rel.Dependent)
		add(rel.Ancestor)
	}
	return out
}

// RebuildLevels recomputes the level map from scratch. Previously assigned
// levels are discarded: the root starts at 0 and every dependent table is
// raised to max(current, ancestor+1) until no level changes or the pass cap
// is reached. Called after relationship augmentation so that edges discovered
// late still deepen their dependents.
func (h *Hierarchy) RebuildLevels() {
	levels := map[string]int{h.Root.Key(): 0}
	for pass := 0; pass < maxLevelPasses; pass++ {
		changed := false
		for _, rel := range h.Relationships {
			ancLevel, ok := levels[rel.Ancestor.Key()]
			if !ok {
				continue
			}
			depKey := rel.Dependent.Key()
			if cur, ok := levels[depKey]; !ok || cur < ancLevel+1 {
				levels[depKey] = ancLevel + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	h.Levels = levels
}

// Level returns the table's rebuilt level, or 0 when the table never gained
// one (an unreachable ancestor-only entry).
func (h *Hierarchy) Level(ref TableRef) int {
	return h.Levels[ref.Key()]
}

// DeletionOrder returns every involved table sorted by level descending,
// ties broken by first-seen order, so the deepest dependents are deleted
// first and the root last.
func (h *Hierarchy) DeletionOrder() []TableRef {
	tables := h.Tables()
	sort.SliceStable(tables, func(i, j int) bool {
		return h.Levels[tables[i].Key()] > h.Levels[tables[j].Key()]
	})
	return tables
}
