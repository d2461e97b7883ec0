package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

// dialectLexers maps adapter names to chroma lexer names. Adapters without
// an entry use the generic SQL lexer.
var dialectLexers = map[string]string{
	"mssql":    "Transact-SQL",
	"mysql":    "MySQL",
	"postgres": "PostgreSQL",
}

// Highlighter tokenises SQL using chroma and renders it with lipgloss styles
// from the active theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// NewHighlighter creates a Highlighter for the given adapter dialect so
// script previews colour dialect keywords correctly.
func NewHighlighter(dialect string) *Highlighter {
	var l chroma.Lexer
	if name, ok := dialectLexers[strings.ToLower(dialect)]; ok {
		l = lexers.Get(name)
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	// Coalesce runs of identical token types so the render loop processes
	// fewer, larger chunks.
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight tokenises sql and returns a string where each token is styled
// with the corresponding lipgloss style from the provided theme. Newlines are
// preserved so multi-line scripts keep their shape.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2) // rough estimate

	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		writeStyled(&b, style, tok.Value)
	}

	return b.String()
}

// writeStyled styles value, emitting embedded newlines as-is so a style never
// spans a line break.
func writeStyled(b *strings.Builder, style lipgloss.Style, value string) {
	if !strings.Contains(value, "\n") {
		b.WriteString(style.Render(value))
		return
	}
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if line != "" {
			b.WriteString(style.Render(line))
		}
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
}

// styleFor maps a chroma token type to the corresponding lipgloss.Style from
// the theme. The second return value is false when the token should pass
// through unstyled. KeywordType is a subtype of Keyword, so check it first to
// give SQL types (e.g. INT, VARCHAR) their own colour.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	default:
		return lipgloss.Style{}, false
	}
}
