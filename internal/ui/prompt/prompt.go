// Package prompt implements the yes/no confirmation shown before the
// irreversible steps of a cleanup run: starting the deletes and committing
// the transaction.
package prompt

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

const (
	buttonNo = iota
	buttonYes
)

// Model is a two-button yes/no dialog. The No button is the initial
// selection.
type Model struct {
	title   string
	body    string
	active  int
	choice  bool
	decided bool
	th      *theme.Theme
}

// New creates a confirmation dialog. A nil theme falls back to the active
// theme.
func New(title, body string, th *theme.Theme) Model {
	if th == nil {
		th = theme.Current
	}
	return Model{title: title, body: body, th: th}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses. Besides button navigation, "y" and "n" answer
// directly, and esc or ctrl+c count as No.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "left", "shift+tab":
			if m.active > 0 {
				m.active--
			}
		case "right", "tab":
			if m.active < buttonYes {
				m.active++
			}
		case "y", "Y":
			m.choice = true
			m.decided = true
			return m, tea.Quit
		case "n", "N", "esc", "ctrl+c", "q":
			m.choice = false
			m.decided = true
			return m, tea.Quit
		case "enter":
			m.choice = m.active == buttonYes
			m.decided = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the dialog box.
func (m Model) View() string {
	title := m.th.PromptTitle.Render(m.title)

	var btns []string
	for i, label := range []string{"No", "Yes"} {
		style := m.th.PromptButton
		if i == m.active {
			style = m.th.PromptButtonActive
		}
		btns = append(btns, style.Render(" "+label+" "))
	}
	buttonRow := lipgloss.JoinHorizontal(lipgloss.Center, btns...)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		m.body,
		"",
		buttonRow,
	)

	return m.th.PromptBorder.Render(content) + "\n"
}

// Choice reports the decision once the dialog has quit. It is false until a
// key has decided the dialog.
func (m Model) Choice() bool {
	return m.decided && m.choice
}

// Decided reports whether a key has answered the dialog yet.
func (m Model) Decided() bool {
	return m.decided
}

// Confirm blocks on a yes/no dialog and reports the answer. Terminal errors
// (no TTY, closed input) count as No.
func Confirm(title, body string, th *theme.Theme) bool {
	p := tea.NewProgram(New(title, body, th))
	out, err := p.Run()
	if err != nil {
		return false
	}
	m, ok := out.(Model)
	return ok && m.Choice()
}
