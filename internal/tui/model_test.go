package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/kanban/internal/app"
	"github.com/hylla/kanban/internal/domain"
)

var boardStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newBoard(t *testing.T) *app.Service {
	t.Helper()
	svc := app.NewService(nil, func() time.Time { return boardStart }, app.ServiceConfig{})
	ctx := context.Background()
	add := func(in domain.ItemInput) domain.Item {
		t.Helper()
		item, err := domain.NewItem(in)
		if err != nil {
			t.Fatalf("NewItem() error = %v", err)
		}
		added, err := svc.AddItem(ctx, item)
		if err != nil {
			t.Fatalf("AddItem() error = %v", err)
		}
		return added
	}
	start := boardStart
	early := boardStart.Add(-time.Hour)
	half := 30 * time.Minute
	add(domain.ItemInput{Kind: domain.KindTask, Name: "Write docs", StartTime: &start, Duration: &half})
	add(domain.ItemInput{Kind: domain.KindTask, Name: "Ship release", StartTime: &early, Duration: &half})
	add(domain.ItemInput{Kind: domain.KindEpic, Name: "Launch"})
	return svc
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

// updateOnly applies a message without running the returned command.
func updateOnly(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out, cmd
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyCmd(t, m, m.Init())
}

func TestModelLoadsAndOpensDetail(t *testing.T) {
	svc := newBoard(t)
	m := loadReadyModel(t, NewModel(svc))
	if !m.loaded || len(m.items) != 3 {
		t.Fatalf("expected 3 loaded items, got loaded=%t items=%d", m.loaded, len(m.items))
	}
	out := m.render()
	for _, want := range []string{"Write docs", "Ship release", "Launch"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in list view\n%s", want, out)
		}
	}

	m = applyMsg(t, m, keyRune('j'))
	if m.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.cursor)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.view != viewDetail || m.detail == nil || m.detail.Name != "Ship release" {
		t.Fatalf("expected detail of Ship release, got view=%d detail=%+v", m.view, m.detail)
	}
	if len(m.history) != 1 || m.history[0].ID != 1 {
		t.Fatalf("expected opened item in history, got %+v", m.history)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.view != viewList || m.detail != nil {
		t.Fatalf("expected list view after esc, got %d", m.view)
	}
}

func TestModelCycleStatusAndDelete(t *testing.T) {
	svc := newBoard(t)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('s'))
	got, err := svc.PeekItem(context.Background(), 0)
	if err != nil {
		t.Fatalf("PeekItem() error = %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got.Status)
	}
	if m.items[0].Status != domain.StatusInProgress {
		t.Fatalf("expected reloaded list to show new status, got %s", m.items[0].Status)
	}

	m = applyMsg(t, m, keyRune('d'))
	if len(m.items) != 2 {
		t.Fatalf("expected 2 items after delete, got %d", len(m.items))
	}
	if !strings.Contains(m.status, "deleted 1") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelCycleStatusRejectsEpic(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoard(t)))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('s'))
	if !strings.HasPrefix(m.status, "error:") {
		t.Fatalf("expected derived-status error, got %q", m.status)
	}
}

func TestModelDeleteFromDetailReturnsToList(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoard(t)))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.view != viewDetail {
		t.Fatalf("expected detail view, got %d", m.view)
	}
	m = applyMsg(t, m, keyRune('d'))
	if m.view != viewList || m.detail != nil {
		t.Fatalf("expected list view after deleting the open item, got %d", m.view)
	}
}

func TestModelTabCyclesViews(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoard(t)))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.view != viewPrioritized {
		t.Fatalf("expected prioritized view, got %d", m.view)
	}
	rows := m.rows()
	if len(rows) != 2 || rows[0].Name != "Ship release" || rows[1].Name != "Write docs" {
		t.Fatalf("unexpected prioritized rows %+v", rows)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.view != viewHistory {
		t.Fatalf("expected history view, got %d", m.view)
	}
	if !strings.Contains(m.render(), "Nothing here yet") {
		t.Fatal("expected empty history placeholder")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.view != viewList {
		t.Fatalf("expected list view, got %d", m.view)
	}
}

func TestModelAddForm(t *testing.T) {
	svc := newBoard(t)
	m := loadReadyModel(t, NewModel(svc, WithClock(func() time.Time { return boardStart })))

	m, _ = updateOnly(t, m, keyRune('n'))
	if m.view != viewAdd || m.focusField != fieldKind {
		t.Fatalf("expected add form focused on type, got view=%d field=%d", m.view, m.focusField)
	}
	if !strings.Contains(m.render(), "New item") {
		t.Fatal("expected form view")
	}
	m.inputs[fieldKind].SetValue("subtask")
	m.inputs[fieldName].SetValue("Press kit")
	m.inputs[fieldEpic].SetValue("#2")
	m.inputs[fieldStart].SetValue(boardStart.Add(2 * time.Hour).Format(startLayout))
	m.inputs[fieldDuration].SetValue("45")

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.view != viewList {
		t.Fatalf("expected list view after submit, got %d (status %q)", m.view, m.status)
	}
	if m.status != "added #3" {
		t.Fatalf("unexpected status %q", m.status)
	}
	epic, err := svc.PeekItem(context.Background(), 2)
	if err != nil {
		t.Fatalf("PeekItem() error = %v", err)
	}
	if len(epic.SubTaskIDs) != 1 || epic.SubTaskIDs[0] != 3 {
		t.Fatalf("expected subtask linked to epic, got %+v", epic.SubTaskIDs)
	}
}

func TestModelAddFormValidationAndCancel(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoard(t)))
	m, _ = updateOnly(t, m, keyRune('n'))

	m, _ = updateOnly(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.view != viewAdd || !strings.HasPrefix(m.status, "error:") {
		t.Fatalf("expected empty-name error in form, got view=%d status=%q", m.view, m.status)
	}

	m.inputs[fieldName].SetValue("Overlapping")
	m.inputs[fieldStart].SetValue(boardStart.Format(startLayout))
	m.inputs[fieldDuration].SetValue("10")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.view != viewAdd || !strings.Contains(m.status, "overlaps") {
		t.Fatalf("expected overlap error in form, got view=%d status=%q", m.view, m.status)
	}

	m.inputs[fieldDuration].SetValue("ten")
	m, _ = updateOnly(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if !strings.Contains(m.status, "minutes must be a number") {
		t.Fatalf("unexpected status %q", m.status)
	}

	m, _ = updateOnly(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.focusField != fieldKind+1 {
		t.Fatalf("expected focus to advance, got %d", m.focusField)
	}
	m, _ = updateOnly(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.view != viewList || m.status != "canceled" {
		t.Fatalf("expected canceled form, got view=%d status=%q", m.view, m.status)
	}
	if m.inputs[fieldName].Value() != "" {
		t.Fatal("expected form inputs reset after cancel")
	}
}

func TestModelFormTypesQuitKey(t *testing.T) {
	m := loadReadyModel(t, NewModel(newBoard(t)))
	m, _ = updateOnly(t, m, keyRune('n'))
	m, _ = updateOnly(t, m, keyRune('q'))
	if m.view != viewAdd {
		t.Fatalf("expected form to stay open, got view %d", m.view)
	}
	if m.inputs[fieldKind].Value() != "q" {
		t.Fatalf("expected typed value q, got %q", m.inputs[fieldKind].Value())
	}
}

func TestModelCopyUsesClipboard(t *testing.T) {
	var copied string
	m := loadReadyModel(t, NewModel(newBoard(t), WithClipboard(func(text string) error {
		copied = text
		return nil
	})))
	m = applyMsg(t, m, keyRune('y'))
	if copied != "#0 Write docs" {
		t.Fatalf("unexpected clipboard text %q", copied)
	}
	if m.status != "copied #0 Write docs" {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = NewModel(newBoard(t), WithClipboard(func(string) error { return errors.New("no display") }))
	m = loadReadyModel(t, m)
	m = applyMsg(t, m, keyRune('y'))
	if !strings.Contains(m.status, "copy: no display") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelKeyConfigOverride(t *testing.T) {
	var copied string
	m := loadReadyModel(t, NewModel(newBoard(t),
		WithKeyConfig(KeyConfig{CopyItem: "c"}),
		WithClipboard(func(text string) error {
			copied = text
			return nil
		}),
	))
	m = applyMsg(t, m, keyRune('y'))
	if copied != "" {
		t.Fatalf("expected y to be unbound, copied %q", copied)
	}
	_ = applyMsg(t, m, keyRune('c'))
	if copied == "" {
		t.Fatal("expected c to copy")
	}
}

type failingListService struct {
	*app.Service
}

func (failingListService) ListItems(context.Context) ([]domain.Item, error) {
	return nil, errors.New("store offline")
}

func TestModelViewStatesAndQuit(t *testing.T) {
	m := NewModel(newBoard(t))
	if got := m.render(); got != "loading..." {
		t.Fatalf("expected loading view, got %q", got)
	}
	if v := m.View(); !v.AltScreen {
		t.Fatal("expected alt screen view")
	}

	failed := loadReadyModel(t, NewModel(failingListService{Service: newBoard(t)}))
	if !strings.Contains(failed.render(), "error: store offline") {
		t.Fatalf("expected error view, got %q", failed.render())
	}

	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit msg")
	}
}

func TestItemMarkdown(t *testing.T) {
	start := boardStart
	d := 90 * time.Minute
	item, err := domain.NewItem(domain.ItemInput{Kind: domain.KindSubTask, Name: "Tag", EpicID: 3, StartTime: &start, Duration: &d, Description: "cut the *tag*"})
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	md := ItemMarkdown(item)
	for _, want := range []string{"# Tag", "subtask, NEW", "- epic: #3", "- duration: 1h30m0s", "Mar 02 10:00 - Mar 02 11:30", "cut the *tag*"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in markdown\n%s", want, md)
		}
	}

	r := &detailRenderer{}
	out, err := r.render(item, 10)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if !strings.Contains(out, "Tag") {
		t.Fatalf("expected rendered detail to keep title, got %q", out)
	}
	if r.width != minDetailWidth {
		t.Fatalf("expected minimum wrap width %d, got %d", minDetailWidth, r.width)
	}
	if _, err := RenderItem(item, 80); err != nil {
		t.Fatalf("RenderItem() error = %v", err)
	}
}
