// Package theme provides the lipgloss styles that sqlsweep reports, script
// previews, and prompts are rendered with. Themes are registered by name so
// the look can be swapped from configuration; the "plain" theme carries
// zero-value styles for piped or no-color output.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds lipgloss.Style values for every styled element of the
// command-line output.
type Theme struct {
	Name string

	// Report text
	Title    lipgloss.Style
	KeyLabel lipgloss.Style
	Value    lipgloss.Style

	// Summary tables
	TableBorder lipgloss.Style
	TableHeader lipgloss.Style
	TableCell   lipgloss.Style

	// SQL script previews
	SQLKeyword  lipgloss.Style
	SQLString   lipgloss.Style
	SQLNumber   lipgloss.Style
	SQLComment  lipgloss.Style
	SQLOperator lipgloss.Style
	SQLFunction lipgloss.Style
	SQLType     lipgloss.Style

	// Confirmation prompt
	PromptBorder       lipgloss.Style
	PromptTitle        lipgloss.Style
	PromptButton       lipgloss.Style
	PromptButtonActive lipgloss.Style

	// Progress spinner
	Spinner lipgloss.Style

	// General
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	MutedText   lipgloss.Style
}

// ---------------------------------------------------------------------------
// Theme definitions
// ---------------------------------------------------------------------------

// newDefaultTheme builds the Default dark theme.
func newDefaultTheme() *Theme {
	return &Theme{
		Name: "default",

		// Report text
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#569CD6")),
		KeyLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9CDCFE")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")),

		// Summary tables
		TableBorder: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3C3C3C")),
		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#569CD6")).
			Padding(0, 1),
		TableCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")).
			Padding(0, 1),

		// SQL script previews
		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#569CD6")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CE9178")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B5CEA8")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#6A9955")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCDCAA")),
		SQLType: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4EC9B0")),

		// Confirmation prompt
		PromptBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#569CD6")).
			Padding(1, 2),
		PromptTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#569CD6")),
		PromptButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")).
			Background(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			PaddingRight(2),
		PromptButtonActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#007ACC")).
			PaddingLeft(2).
			PaddingRight(2),

		// Progress spinner
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#569CD6")),

		// General
		ErrorText: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F44747")),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6A9955")),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCA700")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")),
	}
}

// newLightTheme builds the Light theme suitable for light terminal backgrounds.
func newLightTheme() *Theme {
	return &Theme{
		Name: "light",

		// Report text
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0451A5")),
		KeyLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#001080")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")),

		// Summary tables
		TableBorder: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D4D4D4")),
		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0451A5")).
			Padding(0, 1),
		TableCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")).
			Padding(0, 1),

		// SQL script previews
		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0000FF")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A31515")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#098658")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#008000")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#795E26")),
		SQLType: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#267F99")),

		// Confirmation prompt
		PromptBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#0451A5")).
			Padding(1, 2),
		PromptTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0451A5")),
		PromptButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")).
			Background(lipgloss.Color("#D4D4D4")).
			PaddingLeft(2).
			PaddingRight(2),
		PromptButtonActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0060C0")).
			PaddingLeft(2).
			PaddingRight(2),

		// Progress spinner
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0451A5")),

		// General
		ErrorText: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E51400")),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#16825D")),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BF8803")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")),
	}
}

// newMonokaiTheme builds a Monokai-inspired dark theme.
func newMonokaiTheme() *Theme {
	return &Theme{
		Name: "monokai",

		// Report text
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F92672")),
		KeyLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#66D9EF")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")),

		// Summary tables
		TableBorder: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#49483E")),
		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A6E22E")).
			Padding(0, 1),
		TableCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Padding(0, 1),

		// SQL script previews
		SQLKeyword: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F92672")),
		SQLString: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6DB74")),
		SQLNumber: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AE81FF")),
		SQLComment: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#75715E")),
		SQLOperator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F92672")),
		SQLFunction: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E22E")),
		SQLType: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#66D9EF")),

		// Confirmation prompt
		PromptBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F92672")).
			Padding(1, 2),
		PromptTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F92672")),
		PromptButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Background(lipgloss.Color("#49483E")).
			PaddingLeft(2).
			PaddingRight(2),
		PromptButtonActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#272822")).
			Background(lipgloss.Color("#A6E22E")).
			PaddingLeft(2).
			PaddingRight(2),

		// Progress spinner
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F92672")),

		// General
		ErrorText: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F92672")),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E22E")),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6DB74")),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#75715E")),
	}
}

// newPlainTheme builds the no-color theme. Zero-value lipgloss styles render
// their input unchanged, so every element passes through as plain text.
func newPlainTheme() *Theme {
	return &Theme{Name: "plain"}
}

// ---------------------------------------------------------------------------
// Registry and accessors
// ---------------------------------------------------------------------------

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
	"plain":   newPlainTheme(),
}

// Current is the currently active theme. It is initialized to Default.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Plain returns the no-color theme used for piped output.
func Plain() *Theme {
	return Themes["plain"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}
