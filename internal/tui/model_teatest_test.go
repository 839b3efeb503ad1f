package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/exp/teatest/v2"
)

func waitForOutput(t *testing.T, tm *teatest.TestModel, want string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), want)
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))
}

// TestModelWithTeatest runs the board in a test program until it renders, then quits.
func TestModelWithTeatest(t *testing.T) {
	tm := teatest.NewTestModel(t, NewModel(newBoard(t)), teatest.WithInitialTermSize(120, 35))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	waitForOutput(t, tm, "Ship release")

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// TestModelWithTeatestHelpAndForm opens the full help and the add form in a running program.
func TestModelWithTeatestHelpAndForm(t *testing.T) {
	m := NewModel(newBoard(t), WithClock(func() time.Time { return boardStart }))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 35))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	waitForOutput(t, tm, "Write docs")

	tm.Send(tea.KeyPressMsg{Code: '?', Text: "?"})
	waitForOutput(t, tm, "cycle status")

	tm.Send(tea.KeyPressMsg{Code: 'n', Text: "n"})
	waitForOutput(t, tm, "New item")

	tm.Send(tea.KeyPressMsg{Code: tea.KeyEscape})
	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
