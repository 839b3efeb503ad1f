package tui

import (
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/kanban/internal/domain"
)

// Service is the subset of the application service the TUI drives.
type Service interface {
	ListItems(context.Context) ([]domain.Item, error)
	GetItem(context.Context, int) (domain.Item, error)
	PeekItem(context.Context, int) (domain.Item, error)
	AddItem(context.Context, domain.Item) (domain.Item, error)
	UpdateStatus(context.Context, int, domain.Status) (domain.Item, error)
	DeleteItem(context.Context, int) ([]int, error)
	History(context.Context) ([]domain.Item, error)
	Prioritized(context.Context) ([]domain.Item, error)
}

// startLayout is the UTC format accepted by the start field of the add form.
const startLayout = "2006-01-02 15:04"

type viewMode int

const (
	viewList viewMode = iota
	viewPrioritized
	viewHistory
	viewDetail
	viewAdd
)

var viewTitles = map[viewMode]string{
	viewList:        "items",
	viewPrioritized: "prioritized",
	viewHistory:     "history",
}

const (
	fieldKind = iota
	fieldName
	fieldDescription
	fieldStart
	fieldDuration
	fieldEpic
	fieldCount
)

var fieldLabels = [fieldCount]string{"type", "name", "description", "start", "minutes", "epic id"}

// Model is the bubbletea model for the board.
type Model struct {
	svc       Service
	keys      keyMap
	help      help.Model
	clipboard ClipboardFunc
	now       func() time.Time
	md        *detailRenderer

	width  int
	height int

	loaded      bool
	err         error
	status      string
	view        viewMode
	prevView    viewMode
	cursor      int
	items       []domain.Item
	prioritized []domain.Item
	history     []domain.Item
	detail      *domain.Item

	inputs     []textinput.Model
	focusField int
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	items       []domain.Item
	prioritized []domain.Item
	history     []domain.Item
	detail      *domain.Item
	err         error
}

// detailMsg carries one opened item.
type detailMsg struct {
	item domain.Item
	err  error
}

// actionMsg carries message data through update handling.
type actionMsg struct {
	err      error
	status   string
	reload   bool
	fromForm bool
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:       svc,
		keys:      newKeyMap(),
		help:      h,
		clipboard: clipboard.WriteAll,
		now:       time.Now,
		md:        &detailRenderer{},
		status:    "ready",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.inputs = newFormInputs(m.now())
	return m
}

func newFormInputs(now time.Time) []textinput.Model {
	inputs := make([]textinput.Model, fieldCount)
	for idx := range inputs {
		in := textinput.New()
		in.Prompt = fmt.Sprintf("%-12s", fieldLabels[idx]+":")
		in.CharLimit = 120
		inputs[idx] = in
	}
	inputs[fieldKind].Placeholder = "task | epic | subtask"
	inputs[fieldDescription].CharLimit = 512
	inputs[fieldStart].Placeholder = now.UTC().Format(startLayout)
	inputs[fieldDuration].Placeholder = "30"
	inputs[fieldEpic].Placeholder = "subtasks only"
	return inputs
}

func (m Model) Init() tea.Cmd {
	return m.loadData
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	items, err := m.svc.ListItems(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	prioritized, err := m.svc.Prioritized(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	history, err := m.svc.History(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	out := loadedMsg{items: items, prioritized: prioritized, history: history}
	if m.detail != nil {
		// Peek so a refresh does not count as another view.
		if item, err := m.svc.PeekItem(ctx, m.detail.ID); err == nil {
			out.detail = &item
		}
	}
	return out
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil
	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.items = msg.items
		m.prioritized = msg.prioritized
		m.history = msg.history
		if m.view == viewDetail {
			if msg.detail == nil {
				m.detail = nil
				m.view = m.prevView
			} else {
				m.detail = msg.detail
			}
		}
		m.cursor = clamp(m.cursor, 0, len(m.rows())-1)
		return m, nil
	case detailMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		item := msg.item
		m.detail = &item
		m.prevView = m.view
		m.view = viewDetail
		m.status = fmt.Sprintf("#%d", item.ID)
		return m, m.loadData
	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.fromForm {
			m.view = m.prevView
			m.inputs = newFormInputs(m.now())
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil
	case tea.KeyPressMsg:
		if m.view == viewAdd {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)
	}
	if m.view == viewAdd {
		var cmd tea.Cmd
		m.inputs[m.focusField], cmd = m.inputs[m.focusField].Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles keys outside the add form.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading"
		return m, m.loadData
	case key.Matches(msg, m.keys.back):
		if m.help.ShowAll {
			m.help.ShowAll = false
			return m, nil
		}
		if m.view == viewDetail {
			m.view = m.prevView
			m.detail = nil
			m.status = "ready"
		}
		return m, nil
	case key.Matches(msg, m.keys.addItem):
		cmd := m.startForm()
		return m, cmd
	}

	if m.view != viewDetail {
		switch {
		case key.Matches(msg, m.keys.moveUp):
			m.cursor = clamp(m.cursor-1, 0, len(m.rows())-1)
			return m, nil
		case key.Matches(msg, m.keys.moveDown):
			m.cursor = clamp(m.cursor+1, 0, len(m.rows())-1)
			return m, nil
		case key.Matches(msg, m.keys.nextView):
			m.view = (m.view + 1) % viewDetail
			m.cursor = clamp(m.cursor, 0, len(m.rows())-1)
			m.status = viewTitles[m.view]
			return m, nil
		case key.Matches(msg, m.keys.open):
			item, ok := m.selected()
			if !ok {
				return m, nil
			}
			return m, m.openItem(item.ID)
		}
	}

	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.cycleStatus):
		return m, m.cycleStatus(item)
	case key.Matches(msg, m.keys.deleteItem):
		return m, m.deleteItem(item.ID)
	case key.Matches(msg, m.keys.copyItem):
		return m, m.copyItem(item)
	}
	return m, nil
}

// handleFormKey handles keys while the add form is active.
func (m Model) handleFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = m.prevView
		m.inputs = newFormInputs(m.now())
		m.status = "canceled"
		return m, nil
	case key.Matches(msg, m.keys.submit):
		item, err := m.formItem()
		if err != nil {
			m.status = "error: " + err.Error()
			return m, nil
		}
		return m, m.addItem(item)
	case key.Matches(msg, m.keys.prevField):
		cmd := m.focusInput(m.focusField - 1)
		return m, cmd
	case key.Matches(msg, m.keys.nextField):
		cmd := m.focusInput(m.focusField + 1)
		return m, cmd
	}
	var cmd tea.Cmd
	m.inputs[m.focusField], cmd = m.inputs[m.focusField].Update(msg)
	return m, cmd
}

func (m *Model) startForm() tea.Cmd {
	m.prevView = m.view
	if m.prevView == viewDetail {
		m.prevView = viewList
		m.detail = nil
	}
	m.view = viewAdd
	m.status = "new item"
	m.inputs = newFormInputs(m.now())
	return m.focusInput(fieldKind)
}

func (m *Model) focusInput(idx int) tea.Cmd {
	idx = (idx + fieldCount) % fieldCount
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focusField = idx
	return m.inputs[idx].Focus()
}

// formItem parses the add form into an unassigned item.
func (m Model) formItem() (domain.Item, error) {
	value := func(idx int) string {
		return strings.TrimSpace(m.inputs[idx].Value())
	}
	in := domain.ItemInput{
		Kind:        domain.KindTask,
		Name:        value(fieldName),
		Description: value(fieldDescription),
		EpicID:      domain.UnassignedID,
	}
	if raw := value(fieldKind); raw != "" {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			return domain.Item{}, err
		}
		in.Kind = kind
	}
	if raw := value(fieldStart); raw != "" {
		start, err := time.ParseInLocation(startLayout, raw, time.UTC)
		if err != nil {
			return domain.Item{}, fmt.Errorf("start must look like %q", startLayout)
		}
		in.StartTime = &start
	}
	if raw := value(fieldDuration); raw != "" {
		minutes, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Item{}, fmt.Errorf("minutes must be a number: %q", raw)
		}
		d, err := domain.MinutesDuration(minutes)
		if err != nil {
			return domain.Item{}, err
		}
		in.Duration = &d
	}
	if raw := value(fieldEpic); raw != "" {
		epicID, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
		if err != nil {
			return domain.Item{}, fmt.Errorf("epic id must be a number: %q", raw)
		}
		in.EpicID = epicID
	}
	return domain.NewItem(in)
}

func (m Model) addItem(item domain.Item) tea.Cmd {
	return func() tea.Msg {
		added, err := m.svc.AddItem(context.Background(), item)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("added #%d", added.ID), reload: true, fromForm: true}
	}
}

func (m Model) openItem(id int) tea.Cmd {
	return func() tea.Msg {
		item, err := m.svc.GetItem(context.Background(), id)
		return detailMsg{item: item, err: err}
	}
}

func (m Model) cycleStatus(item domain.Item) tea.Cmd {
	return func() tea.Msg {
		next := item.Status.Next()
		updated, err := m.svc.UpdateStatus(context.Background(), item.ID, next)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("#%d is %s", updated.ID, updated.Status), reload: true}
	}
}

func (m Model) deleteItem(id int) tea.Cmd {
	return func() tea.Msg {
		deleted, err := m.svc.DeleteItem(context.Background(), id)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("deleted %d item(s)", len(deleted)), reload: true}
	}
}

func (m Model) copyItem(item domain.Item) tea.Cmd {
	text := fmt.Sprintf("#%d %s", item.ID, item.Name)
	return func() tea.Msg {
		if err := m.clipboard(text); err != nil {
			return actionMsg{err: fmt.Errorf("copy: %w", err)}
		}
		return actionMsg{status: "copied " + text}
	}
}

// rows returns the items shown by the active list view.
func (m Model) rows() []domain.Item {
	switch m.view {
	case viewPrioritized:
		return m.prioritized
	case viewHistory:
		return m.history
	default:
		return m.items
	}
}

func (m Model) selected() (domain.Item, bool) {
	if m.view == viewDetail {
		if m.detail == nil {
			return domain.Item{}, false
		}
		return *m.detail, true
	}
	rows := m.rows()
	if len(rows) == 0 || m.cursor < 0 || m.cursor >= len(rows) {
		return domain.Item{}, false
	}
	return rows[m.cursor], true
}

func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the full screen as a string.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.loaded {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	accent := lipgloss.Color("62")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	tabStyle := lipgloss.NewStyle().Foreground(muted)
	activeTab := lipgloss.NewStyle().Bold(true).Foreground(accent)

	tabs := make([]string, 0, len(viewTitles))
	for _, mode := range []viewMode{viewList, viewPrioritized, viewHistory} {
		style := tabStyle
		if mode == m.view || (m.view == viewDetail && mode == m.prevView) {
			style = activeTab
		}
		tabs = append(tabs, style.Render(viewTitles[mode]))
	}
	header := titleStyle.Render("kanban") + "  " + strings.Join(tabs, " | ")

	var body string
	switch m.view {
	case viewDetail:
		body = m.renderDetail()
	case viewAdd:
		body = m.renderForm()
	default:
		body = m.renderRows(accent)
	}

	var keys help.KeyMap = m.keys
	if m.view == viewAdd {
		keys = formKeyMap{keys: m.keys}
	}
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Render(m.help.View(keys))
	statusLine := lipgloss.NewStyle().Foreground(dim).Render(m.status)

	return strings.Join([]string{header, "", body, "", statusLine, helpLine}, "\n")
}

func (m Model) renderRows(accent color.Color) string {
	rows := m.rows()
	if len(rows) == 0 {
		return "Nothing here yet. Press n to add an item."
	}
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	lines := make([]string, 0, len(rows))
	for idx, item := range rows {
		line := formatRow(item)
		if idx == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatRow renders one item as a fixed-width list line.
func formatRow(item domain.Item) string {
	line := fmt.Sprintf("#%-3d %-7s %-11s %s", item.ID, item.Kind.Label(), item.Status, item.Name)
	if span := formatSpan(item); span != "" {
		line += "  " + span
	}
	return line
}

func formatSpan(item domain.Item) string {
	if item.StartTime == nil {
		return ""
	}
	start := item.StartTime.Format("Jan 02 15:04")
	end := item.EndTime()
	if end == nil {
		return start
	}
	return start + " - " + end.Format("Jan 02 15:04")
}

func (m Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	out, err := m.md.render(*m.detail, m.width-4)
	if err != nil {
		return ItemMarkdown(*m.detail)
	}
	return out
}

func (m Model) renderForm() string {
	lines := make([]string, 0, len(m.inputs)+2)
	lines = append(lines, "New item")
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
