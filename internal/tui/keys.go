package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle   key.Binding
	Add      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Bump     key.Binding
	Search   key.Binding
	Status   key.Binding
	Priority key.Binding
	Sort     key.Binding
	Order    key.Binding
	Reload   key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "done")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Bump:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "priority")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Status:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status")),
		Priority: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "filter priority")),
		Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Order:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.Toggle, k.Add, k.Edit, k.Delete, k.Search}
}

func (k keyMap) full() []key.Binding {
	return []key.Binding{k.Toggle, k.Add, k.Edit, k.Delete, k.Bump, k.Search, k.Status, k.Priority, k.Sort, k.Order, k.Reload}
}
