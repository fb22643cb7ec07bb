// Package tui is the interactive dashboard and the sign-in form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/debounce"
	"github.com/Makepad-fr/tada-client/internal/logging"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/todos"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// Options configure the dashboard.
type Options struct {
	User           model.User
	Spec           model.FilterSortSpec
	SearchDebounce time.Duration
	Logger         *log.Logger
}

// listItem adapts a todo to bubbles/list.Item
type listItem struct {
	todo model.TodoItem
}

func (i listItem) Title() string       { return i.todo.Title }
func (i listItem) Description() string { return i.todo.DescriptionText() }
func (i listItem) FilterValue() string { return i.todo.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	prefix := "  "
	if index == m.Index() {
		prefix = ui.Current().Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+ui.TodoLine(0, it.todo, d.now()))
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeSearch
	modeConfirmDelete
)

// Messages produced by commands.
type (
	loadedMsg struct{ err error }
	opMsg     struct {
		verb string
		err  error
	}
	searchMsg string
)

type dashboard struct {
	ctx   context.Context
	todos *todos.Pipeline
	log   *log.Logger
	user  model.User
	spec  model.FilterSortSpec
	keys  keyMap
	now   func() time.Time

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	search  *debounce.Debouncer[string]

	mode     mode
	targetID string // item being edited or deleted
	busy     int    // requests in flight
	status   string
	failed   bool
	authErr  error

	width, height int
}

func newDashboard(ctx context.Context, p *todos.Pipeline, opt Options) dashboard {
	spec := opt.Spec.Normalize()
	logger := opt.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	keys := newKeyMap()
	now := time.Now

	l := list.New(nil, itemDelegate{now: now}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.HelpStyle = ui.Current().Muted
	l.Styles.PaginationStyle = ui.Current().Muted
	l.AdditionalShortHelpKeys = keys.short
	l.AdditionalFullHelpKeys = keys.full

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	d := dashboard{
		ctx:     ctx,
		todos:   p,
		log:     logger,
		user:    opt.User,
		spec:    spec,
		keys:    keys,
		now:     now,
		list:    l,
		input:   ti,
		spinner: sp,
		width:   80,
		height:  24,
		busy:    1, // initial load, started by Init
	}
	d.resize()
	return d
}

// Run starts the dashboard and blocks until the user quits. It returns the
// Auth error that ended the session, if any.
func Run(ctx context.Context, p *todos.Pipeline, opt Options) error {
	m := newDashboard(ctx, p, opt)

	var prog *tea.Program
	m.search = debounce.New(opt.SearchDebounce, func(q string) {
		prog.Send(searchMsg(q))
	})
	defer m.search.Stop()

	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if fm, ok := final.(dashboard); ok && fm.authErr != nil {
		return fm.authErr
	}
	return nil
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m *dashboard) loadCmd() tea.Cmd {
	m.busy++
	return m.load()
}

func (m dashboard) load() tea.Cmd {
	p, ctx := m.todos, m.ctx
	return func() tea.Msg {
		_, err := p.Load(ctx)
		return loadedMsg{err: err}
	}
}

func (m *dashboard) opCmd(verb string, fn func(context.Context) error) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		return opMsg{verb: verb, err: fn(ctx)}
	}
}

func (m dashboard) selected() (model.TodoItem, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.TodoItem{}, false
	}
	return it.todo, true
}

// refresh rebuilds the list from the pipeline, keeping the cursor on the same
// item when it is still visible.
func (m *dashboard) refresh() {
	var keep string
	if cur, ok := m.selected(); ok {
		keep = cur.ID
	}
	view := m.todos.View(m.spec)
	items := make([]list.Item, len(view))
	sel := 0
	for i, it := range view {
		items[i] = listItem{todo: it}
		if it.ID == keep {
			sel = i
		}
	}
	m.list.SetItems(items)
	m.list.Select(sel)
}

func (m *dashboard) setStatus(msg string, failed bool) {
	m.status, m.failed = msg, failed
}

// finish records the outcome of a request. Auth failures end the dashboard.
func (m *dashboard) finish(verb string, err error) tea.Cmd {
	if m.busy > 0 {
		m.busy--
	}
	if err == nil {
		if verb != "" {
			m.setStatus(verb, false)
		}
		m.refresh()
		return nil
	}
	m.log.Warn("request failed", "op", verb, "err", err)
	if errors.Is(err, apperr.ErrAuth) {
		m.authErr = err
		return tea.Quit
	}
	m.setStatus(apperr.Message(err), true)
	m.refresh()
	return nil
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadedMsg:
		cmd := m.finish("", msg.err)
		return m, cmd
	case opMsg:
		cmd := m.finish(msg.verb, msg.err)
		return m, cmd
	case searchMsg:
		// late results after the box closed are dropped
		if m.mode == modeSearch {
			m.spec.Search = string(msg)
			m.refresh()
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m dashboard) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Toggle):
		cur, ok := m.selected()
		if !ok {
			return m, nil
		}
		p := m.todos
		cmd := m.opCmd("toggled", func(ctx context.Context) error {
			_, err := p.Toggle(ctx, cur.ID)
			return err
		})
		return m, cmd

	case key.Matches(msg, k.Bump):
		cur, ok := m.selected()
		if !ok {
			return m, nil
		}
		next := nextPriority(cur.Priority)
		p := m.todos
		cmd := m.opCmd("priority "+string(next), func(ctx context.Context) error {
			_, err := p.Update(ctx, cur.ID, model.Patch{Priority: &next})
			return err
		})
		return m, cmd

	case key.Matches(msg, k.Add):
		m.mode = modeAdd
		m.input.SetValue("")
		m.input.Placeholder = "New item title..."
		m.resize()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, k.Edit):
		cur, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.targetID = cur.ID
		m.input.SetValue(cur.Title)
		m.input.CursorEnd()
		m.input.Placeholder = "Edit item title..."
		m.resize()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, k.Delete):
		cur, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.targetID = cur.ID
		m.setStatus(fmt.Sprintf("delete %q? (y/n)", ui.Truncate(cur.Title, 40)), false)
		return m, nil

	case key.Matches(msg, k.Search):
		m.mode = modeSearch
		m.input.SetValue(m.spec.Search)
		m.input.CursorEnd()
		m.input.Placeholder = "Search title or description..."
		m.resize()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, k.Status):
		m.spec.Status = m.spec.Status.Next()
		m.refresh()
		return m, nil
	case key.Matches(msg, k.Priority):
		m.spec.Priority = m.spec.Priority.Next()
		m.refresh()
		return m, nil
	case key.Matches(msg, k.Sort):
		m.spec.SortBy = m.spec.SortBy.Next()
		m.refresh()
		return m, nil
	case key.Matches(msg, k.Order):
		m.spec.Order = m.spec.Order.Flip()
		m.refresh()
		return m, nil
	case key.Matches(msg, k.Reload):
		cmd := m.loadCmd()
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m dashboard) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.setStatus("title cannot be empty", true)
			return m, nil
		}
		p := m.todos
		var cmd tea.Cmd
		if m.mode == modeAdd {
			cmd = m.opCmd("added", func(ctx context.Context) error {
				_, err := p.Create(ctx, model.NewTodo{Title: title})
				return err
			})
		} else {
			id := m.targetID
			cmd = m.opCmd("updated", func(ctx context.Context) error {
				_, err := p.Update(ctx, id, model.Patch{Title: &title})
				return err
			})
		}
		m.closeInput()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m dashboard) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.spec.Search = ""
		m.closeInput()
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		m.spec.Search = m.input.Value()
		m.closeInput()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		if m.search != nil {
			m.search.Trigger(v)
		} else {
			m.spec.Search = v
			m.refresh()
		}
	}
	return m, cmd
}

func (m dashboard) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.targetID
	m.mode = modeList
	m.targetID = ""
	if msg.String() != "y" && msg.String() != "Y" {
		m.setStatus("", false)
		return m, nil
	}
	p := m.todos
	cmd := m.opCmd("removed", func(ctx context.Context) error {
		return p.Remove(ctx, id)
	})
	return m, cmd
}

func (m *dashboard) closeInput() {
	m.mode = modeList
	m.targetID = ""
	m.input.SetValue("")
	m.input.Blur()
	m.resize()
}

func (m *dashboard) resize() {
	h := m.height - 8
	if m.mode == modeAdd || m.mode == modeEdit || m.mode == modeSearch {
		h -= 3
	}
	m.list.SetSize(max(m.width-4, 20), max(h, 3))
}

func nextPriority(p model.Priority) model.Priority {
	switch p {
	case model.PriorityLow:
		return model.PriorityMedium
	case model.PriorityMedium:
		return model.PriorityHigh
	default:
		return model.PriorityLow
	}
}

func (m dashboard) View() string {
	t := ui.Current()
	st := m.todos.Stats()

	header := ui.Header(st.Done, st.Pending)
	if m.user.Name != "" || m.user.Email != "" {
		who := m.user.Name
		if who == "" {
			who = m.user.Email
		}
		header += "   " + t.Muted.Render(who)
	}
	if m.busy > 0 {
		header += "  " + m.spinner.View()
	}

	filters := fmt.Sprintf("status: %s · priority: %s · sort: %s %s", m.spec.Status, m.spec.Priority, m.spec.SortBy, m.spec.Order)
	if m.spec.Search != "" {
		filters += fmt.Sprintf(" · search: %q", m.spec.Search)
	}

	lines := []string{
		header,
		t.Muted.Render(ui.ProgressBar(st.Done, st.Total, 28)),
		t.Muted.Render(filters),
		"",
	}
	if len(m.list.Items()) == 0 && m.busy == 0 {
		lines = append(lines, t.Muted.Render("no items"))
	} else {
		lines = append(lines, m.list.View())
	}

	switch m.mode {
	case modeAdd, modeEdit, modeSearch:
		title := map[mode]string{modeAdd: "Add new item", modeEdit: "Edit item", modeSearch: "Search"}[m.mode]
		bar := lipgloss.NewStyle().Border(t.Border).BorderForeground(t.BorderColor).Padding(0, 1)
		lines = append(lines, bar.Render(title+"\n"+m.input.View()))
	}
	if m.status != "" {
		style := t.Success
		if m.failed {
			style = t.Error
		}
		lines = append(lines, style.Render(m.status))
	}
	return ui.Panel(lines)
}
