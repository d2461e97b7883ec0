// Package sizereport builds per-schema storage reports from adapter catalog
// introspection.
package sizereport

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"strconv"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
)

// Report holds the storage breakdown of one database, largest schema first.
type Report struct {
	Database string
	Schemas  []adapter.SchemaSize
}

// Collect fetches schema sizes from the given source and orders them by
// total size descending. Callers obtain the source by asserting the open
// connection to adapter.SizeReporter.
func Collect(ctx context.Context, src adapter.SizeReporter, db string) (*Report, error) {
	sizes, err := src.SchemaSizes(ctx, db)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		return sizes[i].TotalMB > sizes[j].TotalMB
	})
	return &Report{Database: db, Schemas: sizes}, nil
}

// Total sums the report across schemas. The Schema field of the result is
// left empty.
func (r *Report) Total() adapter.SchemaSize {
	var t adapter.SchemaSize
	for _, s := range r.Schemas {
		t.TableCount += s.TableCount
		t.TotalMB += s.TotalMB
		t.DataMB += s.DataMB
		t.IndexMB += s.IndexMB
	}
	return t
}

// Rows returns the display cells for each schema, megabytes formatted to two
// decimals. The same formatting feeds the CSV artifact so both agree.
func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Schemas))
	for _, s := range r.Schemas {
		rows = append(rows, []string{
			s.Schema,
			strconv.Itoa(s.TableCount),
			FormatMB(s.TotalMB),
			FormatMB(s.DataMB),
			FormatMB(s.IndexMB),
		})
	}
	return rows
}

// CSV renders the report as a comma-separated artifact with a header row.
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"schema", "tables", "total_mb", "data_mb", "index_mb"}); err != nil {
		return nil, err
	}
	if err := w.WriteAll(r.Rows()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatMB renders a megabyte figure with two decimal places.
func FormatMB(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
