package export

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
)

// nullCell is how adapters render SQL NULL in string rows. Parquet keeps
// real nulls, so the sentinel is translated back on the way out.
const nullCell = "NULL"

// Parquet streams the iterator into a snappy-compressed parquet file with
// one UTF-8 column per result column. Every page becomes one row group.
func Parquet(ctx context.Context, w io.Writer, iter adapter.RowIterator) (int64, error) {
	cols := iter.Columns()
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return 0, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	var count int64
	for {
		if err := ctx.Err(); err != nil {
			fw.Close() //nolint:errcheck
			return count, err
		}

		rows, err := iter.FetchNext(ctx)
		if err != nil {
			if adapter.SentinelEOF(err) {
				break
			}
			fw.Close() //nolint:errcheck
			return count, err
		}
		if len(rows) == 0 {
			continue
		}

		for _, row := range rows {
			for i := range fields {
				fb := builder.Field(i).(*array.StringBuilder)
				if i >= len(row) || row[i] == nullCell {
					fb.AppendNull()
				} else {
					fb.Append(row[i])
				}
			}
			count++
		}

		rec := builder.NewRecord()
		writeErr := fw.Write(rec)
		rec.Release()
		if writeErr != nil {
			fw.Close() //nolint:errcheck
			return count, writeErr
		}
	}

	return count, fw.Close()
}
