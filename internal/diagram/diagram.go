// Package diagram renders entity-relationship diagrams from table metadata
// in mermaid, plantuml, or dbml notation. Rendering is pure: callers collect
// the tables (columns and foreign keys included) and pass them in.
package diagram

import (
	"fmt"
	"strings"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

// Column detail modes.
const (
	ColumnsAll  = "all"
	ColumnsKeys = "keys"
	ColumnsNone = "none"
)

// Formats.
const (
	FormatMermaid  = "mermaid"
	FormatPlantUML = "plantuml"
	FormatDBML     = "dbml"
)

// Options selects the output notation and the column detail level.
type Options struct {
	Format  string
	Columns string
}

// Render produces a diagram of the given tables. Relationship edges between
// the same table pair are drawn once in mermaid and plantuml; dbml keeps one
// reference per constraint since constraints are addressable there.
func Render(tables []schema.Table, opts Options) (string, error) {
	switch opts.Columns {
	case "", ColumnsAll, ColumnsKeys, ColumnsNone:
	default:
		return "", fmt.Errorf("unknown column mode %q", opts.Columns)
	}

	switch opts.Format {
	case FormatMermaid:
		return renderMermaid(tables, opts.Columns), nil
	case FormatPlantUML:
		return renderPlantUML(tables, opts.Columns), nil
	case FormatDBML:
		return renderDBML(tables, opts.Columns), nil
	default:
		return "", fmt.Errorf("unknown diagram format %q", opts.Format)
	}
}

func renderMermaid(tables []schema.Table, mode string) string {
	lines := []string{"erDiagram"}

	for _, t := range tables {
		name := cleanName(t.Schema, t.Name)
		if mode == ColumnsNone {
			lines = append(lines, "    "+name+" {", "    }")
			continue
		}

		fkCols := foreignKeyColumns(t)
		lines = append(lines, "    "+name+" {")
		for _, col := range t.Columns {
			isFK := fkCols[col.Name]
			if mode == ColumnsKeys && !col.IsPK && !isFK {
				continue
			}
			var modifiers []string
			if col.IsPK {
				modifiers = append(modifiers, "PK")
			}
			if isFK {
				modifiers = append(modifiers, "FK")
			}
			line := "        " + cleanType(col.Type) + " " + col.Name
			if len(modifiers) > 0 {
				line += " " + strings.Join(modifiers, ", ")
			}
			lines = append(lines, line)
		}
		lines = append(lines, "    }")
	}

	seen := map[[2]string]bool{}
	for _, t := range tables {
		parent := cleanName(t.Schema, t.Name)
		for _, fk := range t.FKs {
			ref := cleanName(fk.RefSchema, fk.RefTable)
			pair := [2]string{ref, parent}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			label := strings.Join(fk.Columns, ", ")
			lines = append(lines, fmt.Sprintf("    %s ||--o{ %s : %q", ref, parent, label))
		}
	}

	return strings.Join(lines, "\n")
}

func renderPlantUML(tables []schema.Table, mode string) string {
	lines := []string{"@startuml", "hide circle", "skinparam linetype ortho"}

	for _, t := range tables {
		name := cleanName(t.Schema, t.Name)
		if mode == ColumnsNone {
			lines = append(lines, "entity "+name+" {}")
			continue
		}

		fkCols := foreignKeyColumns(t)
		lines = append(lines, "entity "+name+" {")
		for _, col := range t.Columns {
			isFK := fkCols[col.Name]
			if mode == ColumnsKeys && !col.IsPK && !isFK {
				continue
			}
			switch {
			case col.IsPK:
				lines = append(lines, "  * "+col.Name+" : "+cleanType(col.Type))
			case isFK:
				lines = append(lines, "  # "+col.Name+" : "+cleanType(col.Type))
			default:
				lines = append(lines, "  "+col.Name+" : "+cleanType(col.Type))
			}
		}
		lines = append(lines, "}")
	}

	seen := map[[2]string]bool{}
	for _, t := range tables {
		parent := cleanName(t.Schema, t.Name)
		for _, fk := range t.FKs {
			ref := cleanName(fk.RefSchema, fk.RefTable)
			pair := [2]string{ref, parent}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			lines = append(lines, fmt.Sprintf("%s ||--o{ %s", ref, parent))
		}
	}

	lines = append(lines, "@enduml")
	return strings.Join(lines, "\n")
}

func renderDBML(tables []schema.Table, mode string) string {
	var b strings.Builder
	rendered := map[string]map[string]bool{}

	for i, t := range tables {
		name := cleanName(t.Schema, t.Name)
		cols := map[string]bool{}
		rendered[name] = cols

		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Table " + name + " {\n")
		if mode != ColumnsNone {
			fkCols := foreignKeyColumns(t)
			for _, col := range t.Columns {
				if mode == ColumnsKeys && !col.IsPK && !fkCols[col.Name] {
					continue
				}
				cols[col.Name] = true
				b.WriteString("  " + col.Name + " " + cleanType(col.Type))
				var settings []string
				if col.IsPK {
					settings = append(settings, "pk")
				}
				if !col.Nullable {
					settings = append(settings, "not null")
				}
				if len(settings) > 0 {
					b.WriteString(" [" + strings.Join(settings, ", ") + "]")
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("}\n")
	}

	for _, t := range tables {
		parent := cleanName(t.Schema, t.Name)
		for _, fk := range t.FKs {
			ref := cleanName(fk.RefSchema, fk.RefTable)
			if !columnsRendered(rendered, parent, fk.Columns) ||
				!columnsRendered(rendered, ref, fk.RefColumns) {
				continue
			}
			b.WriteString("\nRef: " + colRef(parent, fk.Columns) + " > " + colRef(ref, fk.RefColumns) + "\n")
		}
	}

	return b.String()
}

// colRef formats a DBML column reference, using the composite form for
// multi-column constraints.
func colRef(table string, cols []string) string {
	if len(cols) == 1 {
		return table + "." + cols[0]
	}
	return table + ".(" + strings.Join(cols, ", ") + ")"
}

func columnsRendered(rendered map[string]map[string]bool, table string, cols []string) bool {
	have := rendered[table]
	if have == nil {
		return false
	}
	for _, c := range cols {
		if !have[c] {
			return false
		}
	}
	return true
}

// foreignKeyColumns collects the column names participating in any of the
// table's outgoing constraints.
func foreignKeyColumns(t schema.Table) map[string]bool {
	out := map[string]bool{}
	for _, fk := range t.FKs {
		for _, c := range fk.Columns {
			out[c] = true
		}
	}
	return out
}

// cleanName flattens "schema.table" into an identifier safe for every
// notation.
func cleanName(schemaName, table string) string {
	name := table
	if schemaName != "" {
		name = schemaName + "_" + table
	}
	r := strings.NewReplacer(".", "_", " ", "_", "-", "_")
	return r.Replace(name)
}

// cleanType reduces a column type to its base name: lowercased, collation
// and length/precision stripped.
func cleanType(t string) string {
	s := strings.ToLower(t)
	if i := strings.Index(s, "collate"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
