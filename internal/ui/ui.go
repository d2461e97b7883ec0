// Package ui renders styled command-line reports: section titles, key/value
// summaries, bordered tables, and highlighted SQL previews. All output goes
// through a Printer so commands stay free of styling concerns.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

// Printer writes styled report elements to a single destination.
type Printer struct {
	w  io.Writer
	th *theme.Theme
}

// New returns a Printer writing to w. A nil theme falls back to the active
// theme.
func New(w io.Writer, th *theme.Theme) *Printer {
	if th == nil {
		th = theme.Current
	}
	return &Printer{w: w, th: th}
}

// Theme returns the printer's theme, for components that style their own
// output.
func (p *Printer) Theme() *theme.Theme {
	return p.th
}

// Title prints a section heading.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.th.Title.Render(text))
}

// KeyValue prints one "key: value" summary line.
func (p *Printer) KeyValue(key, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.th.KeyLabel.Render(key+":"), p.th.Value.Render(value))
}

// Table prints a bordered table with a styled header row. Column widths
// follow the widest cell.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.th.TableBorder).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.th.TableHeader
			}
			return p.th.TableCell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.String())
}

// SQL prints a SQL script coloured by the given highlighter.
func (p *Printer) SQL(h *Highlighter, script string) {
	fmt.Fprintln(p.w, h.Highlight(script, p.th))
}

// Successf prints a success line.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, p.th.SuccessText.Render(fmt.Sprintf(format, args...)))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, p.th.WarningText.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.th.ErrorText.Render(fmt.Sprintf(format, args...)))
}

// Mutedf prints a de-emphasized line.
func (p *Printer) Mutedf(format string, args ...any) {
	fmt.Fprintln(p.w, p.th.MutedText.Render(fmt.Sprintf(format, args...)))
}

// Printf prints unstyled text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Println prints an unstyled line.
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.w, args...)
}
