// Package objdiff compares database object definitions across environments.
// Definitions are reduced to short md5 checksums after whitespace
// normalization, so two environments agree when their definitions differ
// only in formatting.
package objdiff

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
)

// Missing marks an object absent from an environment.
const Missing = "N/A"

// Object kinds the comparison understands.
const (
	KindView      = "view"
	KindProcedure = "procedure"
	KindFunction  = "function"
)

// Kinds lists the supported object kinds in display order.
var Kinds = []string{KindView, KindProcedure, KindFunction}

// Checksum returns the last 10 hex characters of the md5 digest of the
// definition with all whitespace runs collapsed to single spaces.
func Checksum(definition string) string {
	normalized := strings.Join(strings.Fields(definition), " ")
	sum := md5.Sum([]byte(normalized))
	h := hex.EncodeToString(sum[:])
	return h[len(h)-10:]
}

// Row is one object's checksum across every environment, parallel to the
// Environments slice of the owning Result.
type Row struct {
	Name      string
	Checksums []string
}

// Differs reports whether the environments disagree. A missing object counts
// as a disagreement.
func (r Row) Differs() bool {
	seen := map[string]bool{}
	for _, cs := range r.Checksums {
		seen[cs] = true
	}
	return len(seen) > 1
}

// Groups returns the distinct present checksums in sorted order. Display
// layers use the index of a value here to pick a stable color per variant.
func (r Row) Groups() []string {
	seen := map[string]bool{}
	for _, cs := range r.Checksums {
		if cs != Missing {
			seen[cs] = true
		}
	}
	groups := make([]string, 0, len(seen))
	for cs := range seen {
		groups = append(groups, cs)
	}
	sort.Strings(groups)
	return groups
}

// Result is the comparison matrix for one schema and object kind.
type Result struct {
	Schema       string
	Kind         string
	Environments []string
	Rows         []Row
}

// Differing returns the rows where at least one environment disagrees.
func (r *Result) Differing() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Differs() {
			out = append(out, row)
		}
	}
	return out
}

// HasDifferences reports whether any object differs across environments.
func (r *Result) HasDifferences() bool {
	for _, row := range r.Rows {
		if row.Differs() {
			return true
		}
	}
	return false
}

// Compare builds the checksum matrix for one object kind. envs fixes the
// column order; defs maps environment name to object name to raw definition.
// Objects are listed sorted by name, with Missing filling absent cells.
func Compare(schemaName, kind string, envs []string, defs map[string]map[string]string) *Result {
	names := map[string]bool{}
	sums := make(map[string]map[string]string, len(envs))
	for _, env := range envs {
		sums[env] = map[string]string{}
		for name, def := range defs[env] {
			names[name] = true
			sums[env][name] = Checksum(def)
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	result := &Result{Schema: schemaName, Kind: kind, Environments: envs}
	for _, name := range sorted {
		row := Row{Name: name, Checksums: make([]string, 0, len(envs))}
		for _, env := range envs {
			cs, ok := sums[env][name]
			if !ok {
				cs = Missing
			}
			row.Checksums = append(row.Checksums, cs)
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

// FetchDefinitions loads the raw definitions of one object kind from a live
// connection. Objects whose definition the catalog withholds (encrypted
// procedures, for instance) are skipped.
func FetchDefinitions(ctx context.Context, conn adapter.Connection, db, schemaName, kind string) (map[string]string, error) {
	switch kind {
	case KindView:
		lister, ok := conn.(adapter.ViewLister)
		if !ok {
			return nil, fmt.Errorf("%s: view definitions: %w", conn.AdapterName(), adapter.ErrNotSupported)
		}
		views, err := lister.Views(ctx, db, schemaName)
		if err != nil {
			return nil, fmt.Errorf("views of %s: %w", schemaName, err)
		}
		defs := make(map[string]string, len(views))
		for _, v := range views {
			if v.Definition != "" {
				defs[v.Name] = v.Definition
			}
		}
		return defs, nil

	case KindProcedure, KindFunction:
		lister, ok := conn.(adapter.RoutineLister)
		if !ok {
			return nil, fmt.Errorf("%s: routine definitions: %w", conn.AdapterName(), adapter.ErrNotSupported)
		}
		routines, err := lister.Routines(ctx, db, schemaName)
		if err != nil {
			return nil, fmt.Errorf("routines of %s: %w", schemaName, err)
		}
		want := "PROCEDURE"
		if kind == KindFunction {
			want = "FUNCTION"
		}
		defs := map[string]string{}
		for _, r := range routines {
			if r.Type == want && r.Definition != "" {
				defs[r.Name] = r.Definition
			}
		}
		return defs, nil

	default:
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}
}
