package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

// NOTE: lipgloss renders styles as no-ops when there is no TTY (such as in a
// test environment), so these tests use the plain theme and assert on text
// content and layout rather than ANSI escape codes.

func TestPrinterTitle(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.Title("Cascade plan")
	if got := buf.String(); got != "Cascade plan\n" {
		t.Errorf("Title output = %q, want %q", got, "Cascade plan\n")
	}
}

func TestPrinterKeyValue(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.KeyValue("Database", "sales")
	if got := buf.String(); got != "Database: sales\n" {
		t.Errorf("KeyValue output = %q, want %q", got, "Database: sales\n")
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.Table(
		[]string{"TABLE", "ROWS"},
		[][]string{
			{"dbo.orders", "120"},
			{"dbo.order_items", "3456"},
		},
	)

	out := buf.String()
	for _, want := range []string{"TABLE", "ROWS", "dbo.orders", "120", "dbo.order_items", "3456"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasPrefix(out, "╭") {
		t.Errorf("table output should start with a rounded border, got %q", out[:1])
	}

	// Top border, header, header separator, two data rows, bottom border.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Errorf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
}

func TestPrinterTableNoRows(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.Table([]string{"SCHEMA", "MB"}, nil)
	out := buf.String()
	if !strings.Contains(out, "SCHEMA") {
		t.Errorf("empty table should still render headers:\n%s", out)
	}
}

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.Successf("deleted %d rows", 42)
	p.Warnf("skipping %s", "dbo.audit")
	p.Errorf("connect: %s", "timeout")
	p.Mutedf("dry run")

	want := "deleted 42 rows\nskipping dbo.audit\nconnect: timeout\ndry run\n"
	if got := buf.String(); got != want {
		t.Errorf("status output = %q, want %q", got, want)
	}
}

func TestPrinterPassthrough(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())

	p.Printf("%d tables\n", 3)
	p.Println()
	p.Println("done")

	want := "3 tables\n\ndone\n"
	if got := buf.String(); got != want {
		t.Errorf("passthrough output = %q, want %q", got, want)
	}
}

func TestPrinterNilThemeFallsBackToCurrent(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, nil)
	if p.Theme() != theme.Current {
		t.Error("nil theme should fall back to theme.Current")
	}
}

func TestPrinterSQL(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, theme.Plain())
	h := NewHighlighter("mssql")

	p.SQL(h, "DELETE FROM [dbo].[orders] WHERE [id] IN (1, 2)")
	got := buf.String()
	// Plain theme styles are identity, so the script passes through intact.
	if got != "DELETE FROM [dbo].[orders] WHERE [id] IN (1, 2)\n" {
		t.Errorf("SQL output = %q", got)
	}
}
