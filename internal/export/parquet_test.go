package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

func TestParquetRoundTrip(t *testing.T) {
	iter := &fakeIterator{
		cols: columns("id", "name", "bio"),
		pages: [][][]string{
			{{"1", "Alice", "NULL"}, {"2", "Bob", "likes sql"}},
			{{"3", "Charlie", "NULL"}},
		},
	}

	var buf bytes.Buffer
	count, err := Parquet(context.Background(), &buf, iter)
	if err != nil {
		t.Fatalf("Parquet failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows written, got %d", count)
	}

	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open parquet back: %v", err)
	}
	defer rdr.Close()

	if rdr.NumRows() != 3 {
		t.Fatalf("expected 3 rows in file, got %d", rdr.NumRows())
	}
	sc := rdr.MetaData().Schema
	if sc.NumColumns() != 3 {
		t.Fatalf("expected 3 columns, got %d", sc.NumColumns())
	}
	if sc.Column(0).Name() != "id" || sc.Column(2).Name() != "bio" {
		t.Fatalf("unexpected column names: %s, %s", sc.Column(0).Name(), sc.Column(2).Name())
	}
	// One row group per fetched page.
	if rdr.NumRowGroups() != 2 {
		t.Fatalf("expected 2 row groups, got %d", rdr.NumRowGroups())
	}
}

func TestParquetNullSentinel(t *testing.T) {
	iter := &fakeIterator{
		cols: columns("id", "bio"),
		pages: [][][]string{
			{{"1", "NULL"}, {"2", "text"}, {"3", "NULL"}},
		},
	}

	var buf bytes.Buffer
	if _, err := Parquet(context.Background(), &buf, iter); err != nil {
		t.Fatalf("Parquet failed: %v", err)
	}

	tbl, err := pqarrow.ReadTable(
		context.Background(),
		bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{},
		memory.DefaultAllocator,
	)
	if err != nil {
		t.Fatalf("read table back: %v", err)
	}
	defer tbl.Release()

	var bioNulls, idNulls int
	for _, chunk := range tbl.Column(1).Data().Chunks() {
		bioNulls += chunk.NullN()
	}
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		idNulls += chunk.NullN()
	}
	if bioNulls != 2 {
		t.Fatalf("expected 2 nulls in bio column, got %d", bioNulls)
	}
	if idNulls != 0 {
		t.Fatalf("expected 0 nulls in id column, got %d", idNulls)
	}
}

func TestParquetEmptyResult(t *testing.T) {
	iter := &fakeIterator{cols: columns("id")}

	var buf bytes.Buffer
	count, err := Parquet(context.Background(), &buf, iter)
	if err != nil {
		t.Fatalf("Parquet failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 rows, got %d", count)
	}

	// The footer still carries the schema.
	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open empty parquet: %v", err)
	}
	defer rdr.Close()
	if rdr.NumRows() != 0 {
		t.Fatalf("expected 0 rows, got %d", rdr.NumRows())
	}
	if rdr.MetaData().Schema.NumColumns() != 1 {
		t.Fatalf("expected schema to survive empty export")
	}
}

func TestParquetPropagatesFetchError(t *testing.T) {
	boom := errors.New("socket closed")
	iter := &fakeIterator{
		cols:    columns("id"),
		pages:   [][][]string{{{"1"}}},
		lastErr: boom,
	}

	var buf bytes.Buffer
	count, err := Parquet(context.Background(), &buf, iter)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row before the error, got %d", count)
	}
}
