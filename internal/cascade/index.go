package cascade

import "github.com/sqlsweep/sqlsweep/internal/schema"

// RelationshipIndex answers "which foreign keys point at this table",
// the question the planner asks once per dequeued task. Relationships
// keep their discovery order within each ancestor.
type RelationshipIndex struct {
	byAncestor map[string][]schema.Relationship
}

// NewRelationshipIndex groups relationships by their ancestor table key.
func NewRelationshipIndex(rels []schema.Relationship) *RelationshipIndex {
	ix := &RelationshipIndex{byAncestor: make(map[string][]schema.Relationship)}
	for _, rel := range rels {
		key := rel.Ancestor.Key()
		ix.byAncestor[key] = append(ix.byAncestor[key], rel)
	}
	return ix
}

// DependentsOf returns the relationships whose ancestor side is the
// given table, in discovery order. Empty when the table is a dependency
// leaf.
func (ix *RelationshipIndex) DependentsOf(tableKey string) []schema.Relationship {
	return ix.byAncestor[tableKey]
}

// HasDependents reports whether any foreign key points at the table.
func (ix *RelationshipIndex) HasDependents(tableKey string) bool {
	return len(ix.byAncestor[tableKey]) > 0
}
