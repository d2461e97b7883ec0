// Package progress shows a spinner while a long read-only operation runs,
// such as metadata discovery or dependent-row computation.
package progress

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

// doneMsg carries the operation result back into the program.
type doneMsg struct {
	err error
}

// model drives the spinner until the operation finishes.
type model struct {
	spinner spinner.Model
	message string
	run     func() error
	err     error
}

func newModel(message string, th *theme.Theme, run func() error) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = th.Spinner
	return model{spinner: s, message: message, run: run}
}

// operation executes the wrapped function and reports its result.
func (m model) operation() tea.Msg {
	return doneMsg{err: m.run()}
}

// Init starts the spinner and kicks off the operation.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.operation,
	)
}

// Update advances the spinner and quits once the operation reports back.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner frame and message.
func (m model) View() string {
	return m.spinner.View() + " " + m.message + "\n"
}

// Run executes fn while a spinner and message occupy the terminal, returning
// fn's error. The plain theme skips the spinner and calls fn directly, which
// also covers piped output.
func Run(message string, th *theme.Theme, fn func() error) error {
	if th == nil {
		th = theme.Current
	}
	if th.Name == "plain" {
		return fn()
	}

	p := tea.NewProgram(newModel(message, th, fn))
	out, err := p.Run()
	if err != nil {
		return err
	}
	m, ok := out.(model)
	if !ok {
		return nil
	}
	return m.err
}
