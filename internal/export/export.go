// Package export streams query results into portable file formats. Rows
// arrive through the adapter's iterator so arbitrarily large results never
// have to fit in memory at once.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
)

// Supported output formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// Write streams the iterator into w using the named format and returns the
// number of rows written.
func Write(ctx context.Context, format string, w io.Writer, iter adapter.RowIterator) (int64, error) {
	switch format {
	case FormatCSV:
		return CSV(ctx, w, iter)
	case FormatJSON:
		return JSON(ctx, w, iter)
	case FormatParquet:
		return Parquet(ctx, w, iter)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
}

// CSV streams the iterator as comma-separated values with a header row.
func CSV(ctx context.Context, w io.Writer, iter adapter.RowIterator) (int64, error) {
	cw := csv.NewWriter(w)

	cols := iter.Columns()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	var count int64
	for {
		if err := ctx.Err(); err != nil {
			cw.Flush()
			return count, err
		}

		rows, err := iter.FetchNext(ctx)
		if err != nil {
			if adapter.SentinelEOF(err) {
				break
			}
			cw.Flush()
			return count, err
		}

		for _, row := range rows {
			if err := cw.Write(row); err != nil {
				cw.Flush()
				return count, err
			}
			count++
		}

		// Flush per page so a long export shows progress on disk.
		cw.Flush()
		if err := cw.Error(); err != nil {
			return count, err
		}
	}

	cw.Flush()
	return count, cw.Error()
}

// JSON streams the iterator as an indented array of objects, one object per
// row keyed by column name.
func JSON(ctx context.Context, w io.Writer, iter adapter.RowIterator) (int64, error) {
	cols := iter.Columns()
	colNames := make([]string, len(cols))
	for i, c := range cols {
		colNames[i] = c.Name
	}

	if _, err := io.WriteString(w, "[\n"); err != nil {
		return 0, err
	}

	var count int64
	for {
		if err := ctx.Err(); err != nil {
			// Close the array so a partial export still parses.
			io.WriteString(w, "\n]\n") //nolint:errcheck
			return count, err
		}

		rows, err := iter.FetchNext(ctx)
		if err != nil {
			if adapter.SentinelEOF(err) {
				break
			}
			io.WriteString(w, "\n]\n") //nolint:errcheck
			return count, err
		}

		for _, row := range rows {
			obj := make(map[string]string, len(colNames))
			for j, name := range colNames {
				if j < len(row) {
					obj[name] = row[j]
				} else {
					obj[name] = ""
				}
			}

			if count > 0 {
				if _, err := io.WriteString(w, ",\n"); err != nil {
					return count, err
				}
			} else {
				if _, err := io.WriteString(w, "  "); err != nil {
					return count, err
				}
			}

			data, err := json.MarshalIndent(obj, "  ", "  ")
			if err != nil {
				return count, err
			}
			if _, err := w.Write(data); err != nil {
				return count, err
			}
			count++
		}
	}

	if _, err := io.WriteString(w, "\n]\n"); err != nil {
		return count, err
	}
	return count, nil
}
