package prompt

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sqlsweep/sqlsweep/internal/theme"
)

// step feeds one message to the model and asserts the returned model type.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	out, cmd := m.Update(msg)
	next, ok := out.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", out)
	}
	return next, cmd
}

func TestNewStartsOnNo(t *testing.T) {
	m := New("Execute deletes?", "3 tables, 120 rows", theme.Plain())
	if m.active != buttonNo {
		t.Fatalf("expected No active initially, got %d", m.active)
	}
	if m.Decided() {
		t.Fatal("expected undecided dialog")
	}
}

func TestEnterOnDefaultIsNo(t *testing.T) {
	m := New("Execute deletes?", "", theme.Plain())

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit cmd from enter")
	}
	if !m.Decided() {
		t.Fatal("expected decided after enter")
	}
	if m.Choice() {
		t.Fatal("enter on the default button should answer No")
	}
}

func TestNavigateToYesAndConfirm(t *testing.T) {
	m := New("Commit?", "", theme.Plain())

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.active != buttonYes {
		t.Fatalf("expected Yes active after right, got %d", m.active)
	}

	// Right at the boundary stays put.
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.active != buttonYes {
		t.Fatalf("expected Yes active at boundary, got %d", m.active)
	}

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit cmd from enter")
	}
	if !m.Choice() {
		t.Fatal("expected Yes choice")
	}
}

func TestNavigateBackToNo(t *testing.T) {
	m := New("Commit?", "", theme.Plain())

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.active != buttonNo {
		t.Fatalf("expected No active after shift+tab, got %d", m.active)
	}

	// Left at the boundary stays put.
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.active != buttonNo {
		t.Fatalf("expected No active at boundary, got %d", m.active)
	}
}

func TestShortcutKeys(t *testing.T) {
	tests := []struct {
		key    rune
		choice bool
	}{
		{'y', true},
		{'Y', true},
		{'n', false},
		{'N', false},
		{'q', false},
	}
	for _, tt := range tests {
		m := New("Run?", "", theme.Plain())
		m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{tt.key}})
		if cmd == nil {
			t.Fatalf("key %q: expected quit cmd", tt.key)
		}
		if m.Choice() != tt.choice {
			t.Errorf("key %q: Choice() = %v, want %v", tt.key, m.Choice(), tt.choice)
		}
	}
}

func TestEscapeIsNo(t *testing.T) {
	m := New("Run?", "", theme.Plain())
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("expected quit cmd from esc")
	}
	if m.Choice() {
		t.Fatal("esc should answer No")
	}
}

func TestCtrlCIsNo(t *testing.T) {
	m := New("Run?", "", theme.Plain())
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit cmd from ctrl+c")
	}
	if m.Choice() {
		t.Fatal("ctrl+c should answer No")
	}
}

func TestViewShowsTitleBodyAndButtons(t *testing.T) {
	m := New("Execute deletes?", "3 tables, 120 rows", theme.Plain())

	view := m.View()
	for _, want := range []string{"Execute deletes?", "3 tables, 120 rows", "No", "Yes"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestChoiceFalseWhileUndecided(t *testing.T) {
	m := New("Run?", "", theme.Plain())
	if m.Choice() {
		t.Fatal("Choice() should be false before any decision")
	}
}

func TestInit(t *testing.T) {
	m := New("Run?", "", theme.Plain())
	if cmd := m.Init(); cmd != nil {
		t.Fatal("expected nil cmd from Init")
	}
}
