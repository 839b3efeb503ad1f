package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides selected bindings. Blank fields keep the defaults.
type KeyConfig struct {
	AddItem     string
	DeleteItem  string
	CycleStatus string
	CopyItem    string
	NextView    string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	open        key.Binding
	back        key.Binding
	addItem     key.Binding
	deleteItem  key.Binding
	cycleStatus key.Binding
	copyItem    key.Binding
	nextView    key.Binding
	nextField   key.Binding
	prevField   key.Binding
	submit      key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		open:        key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "details")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		addItem:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new item")),
		deleteItem:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		cycleStatus: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle status")),
		copyItem:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		nextView:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		nextField:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		prevField:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
	}
}

// applyConfig applies configured overrides on top of the defaults.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.addItem, cfg.AddItem, "n", "new item")
	configureBinding(&k.deleteItem, cfg.DeleteItem, "d", "delete")
	configureBinding(&k.cycleStatus, cfg.CycleStatus, "s", "cycle status")
	configureBinding(&k.copyItem, cfg.CopyItem, "y", "copy")
	configureBinding(&k.nextView, cfg.NextView, "tab", "next view")
}

// configureBinding replaces binding keys and help text.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys normalizes one configured key into matcher keys and a help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.addItem, k.open, k.cycleStatus, k.deleteItem, k.nextView, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.open, k.back, k.nextView},
		{k.addItem, k.cycleStatus, k.deleteItem, k.copyItem},
		{k.reload, k.toggleHelp, k.quit},
	}
}

// formKeyMap is the help shown while the add form is active.
type formKeyMap struct {
	keys keyMap
}

func (f formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{f.keys.nextField, f.keys.prevField, f.keys.submit, f.keys.back}
}

func (f formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{f.ShortHelp()}
}
