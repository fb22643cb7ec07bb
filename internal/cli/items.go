package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/session"
	"github.com/Makepad-fr/tada-client/internal/tui"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

const dueLayout = "2006-01-02"

func (a *app) list(ctx context.Context, args []string) int {
	base := a.cfg.ViewSpec()
	fs := newFlags("ls")
	status := fs.String("status", string(base.Status), "all, active or completed")
	priority := fs.String("priority", string(base.Priority), "all, low, medium or high")
	query := fs.String("q", "", "search title and description")
	sortBy := fs.String("sort", string(base.SortBy), "createdAt, dueDate or priority")
	order := fs.String("order", string(base.Order), "asc or desc")
	group := fs.Bool("group", a.opt.Group, "group output by pending/done")
	asJSON := fs.Bool("json", false, "print the items as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		return usage("ls: unexpected argument " + fs.Arg(0))
	}

	spec, err := buildSpec(*status, *priority, *query, *sortBy, *order)
	if err != nil {
		return fail(err)
	}
	if _, err := a.todos.Load(ctx); err != nil {
		return fail(err)
	}
	view := a.todos.View(spec)

	if *asJSON {
		if view == nil {
			view = []model.TodoItem{}
		}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			ui.Fail("encode: " + err.Error())
			return 1
		}
		return 0
	}

	t := ui.Current()
	st := a.todos.Stats()
	lines := []string{
		ui.Header(st.Done, st.Pending),
		t.Muted.Render(ui.ProgressBar(st.Done, st.Total, 28)),
	}
	if spec != base {
		lines = append(lines, t.Muted.Render(describeSpec(spec)))
	}
	lines = append(lines, "")

	index := a.positions()
	now := time.Now()
	if *group {
		lines = append(lines, groupLines(view, index, now)...)
	} else {
		lines = append(lines, flatLines(view, index, now)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `tada add \"Buy milk\"`"))
	fmt.Fprintln(ui.Out, ui.Panel(lines))
	return 0
}

func buildSpec(status, priority, query, sortBy, order string) (model.FilterSortSpec, error) {
	var (
		spec model.FilterSortSpec
		err  error
	)
	if spec.Status, err = model.ParseStatus(status); err != nil {
		return spec, err
	}
	if spec.Priority, err = model.ParsePriorityFilter(priority); err != nil {
		return spec, err
	}
	if spec.SortBy, err = model.ParseSortKey(sortBy); err != nil {
		return spec, err
	}
	if spec.Order, err = model.ParseSortOrder(order); err != nil {
		return spec, err
	}
	spec.Search = query
	return spec, nil
}

func describeSpec(s model.FilterSortSpec) string {
	out := fmt.Sprintf("status: %s · priority: %s · sort: %s %s", s.Status, s.Priority, s.SortBy, s.Order)
	if s.Search != "" {
		out += fmt.Sprintf(" · search: %q", s.Search)
	}
	return out
}

// positions maps item ids to their 1-based index in the default view, the
// numbering every index argument refers to.
func (a *app) positions() map[string]int {
	view := a.todos.View(a.cfg.ViewSpec())
	out := make(map[string]int, len(view))
	for i, it := range view {
		out[it.ID] = i + 1
	}
	return out
}

// resolve loads the collection and returns the item at a 1-based index of
// the default view. A non-zero code means the caller should stop.
func (a *app) resolve(ctx context.Context, cmd, arg string) (model.TodoItem, int) {
	n, ok := parseIndex(cmd, arg)
	if !ok {
		return model.TodoItem{}, 2
	}
	if _, err := a.todos.Load(ctx); err != nil {
		return model.TodoItem{}, fail(err)
	}
	view := a.todos.View(a.cfg.ViewSpec())
	if n < 1 || n > len(view) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(view), n))
		ui.Hint("run `tada ls` to see valid indexes")
		return model.TodoItem{}, 2
	}
	return view[n-1], 0
}

func (a *app) add(ctx context.Context, args []string) int {
	fs := newFlags("add")
	prio := fs.String("p", "", "priority: low, medium or high (default medium)")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	desc := fs.String("desc", "", "description")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		return usage("usage: tada add [-p P] [-due YYYY-MM-DD] [-desc D] <title...>")
	}

	n := model.NewTodo{Title: title}
	if *prio != "" {
		p, err := model.ParsePriority(*prio)
		if err != nil {
			return fail(err)
		}
		n.Priority = p
	}
	if *due != "" {
		d, err := parseDue(*due)
		if err != nil {
			return fail(err)
		}
		n.DueDate = &d
	}
	if *desc != "" {
		n.Description = desc
	}

	it, err := a.todos.Create(ctx, n)
	if err != nil {
		return fail(err)
	}
	ui.OK("added: " + it.Title)
	return 0
}

func (a *app) edit(ctx context.Context, args []string) int {
	const usageLine = "usage: tada edit [-p P] [-due YYYY-MM-DD | -clear-due] [-desc D] <index> [title...]"
	fs := newFlags("edit")
	prio := fs.String("p", "", "priority: low, medium or high")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	desc := fs.String("desc", "", "description")
	clearDue := fs.Bool("clear-due", false, "remove the due date")

	// the index may come before or after the flags
	var idxArg string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		idxArg, args = args[0], args[1:]
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	rest := fs.Args()
	if idxArg == "" {
		if len(rest) == 0 {
			return usage(usageLine)
		}
		idxArg, rest = rest[0], rest[1:]
	}

	var patch model.Patch
	if title := strings.TrimSpace(strings.Join(rest, " ")); title != "" {
		patch.Title = &title
	}
	if *prio != "" {
		p, err := model.ParsePriority(*prio)
		if err != nil {
			return fail(err)
		}
		patch.Priority = &p
	}
	if *due != "" && *clearDue {
		return usage("edit: -due and -clear-due are mutually exclusive")
	}
	if *due != "" {
		d, err := parseDue(*due)
		if err != nil {
			return fail(err)
		}
		patch.DueDate = &d
	}
	patch.ClearDueDate = *clearDue
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "desc" {
			patch.Description = desc
		}
	})
	if err := patch.Validate(); err != nil {
		return fail(err)
	}

	it, code := a.resolve(ctx, "edit", idxArg)
	if code != 0 {
		return code
	}
	updated, err := a.todos.Update(ctx, it.ID, patch)
	if err != nil {
		return fail(err)
	}
	ui.OK("updated: " + updated.Title)
	return 0
}

func (a *app) toggle(ctx context.Context, args []string) int {
	if len(args) != 1 {
		return usage("usage: tada done <index>")
	}
	it, code := a.resolve(ctx, "done", args[0])
	if code != 0 {
		return code
	}
	updated, err := a.todos.Toggle(ctx, it.ID)
	if err != nil {
		return fail(err)
	}
	if updated.Completed {
		ui.OK("done: " + updated.Title)
	} else {
		ui.OK("reopened: " + updated.Title)
	}
	return 0
}

func (a *app) remove(ctx context.Context, args []string) int {
	if len(args) != 1 {
		return usage("usage: tada rm <index>")
	}
	it, code := a.resolve(ctx, "rm", args[0])
	if code != 0 {
		return code
	}
	if err := a.todos.Remove(ctx, it.ID); err != nil {
		return fail(err)
	}
	ui.OK("removed: " + it.Title)
	return 0
}

func (a *app) tui(ctx context.Context, args []string) int {
	if len(args) != 0 {
		return usage("usage: tada tui")
	}
	if err := a.session.Resume(ctx); err != nil {
		a.log.Info("stored session could not be resumed", "err", err)
	}
	if !a.session.IsAuthenticated() {
		ok, err := tui.RunLoginForm(ctx, false, "", a.submitter(false))
		if err != nil {
			return fail(err)
		}
		if !ok {
			ui.Fail("sign in cancelled")
			return 1
		}
	}

	u, _ := a.session.CurrentUser()
	err := tui.Run(ctx, a.todos, tui.Options{
		User:           u,
		Spec:           a.cfg.ViewSpec(),
		SearchDebounce: a.cfg.SearchDebounce.Duration,
		Logger:         a.log,
	})
	if err != nil {
		return fail(err)
	}
	return 0
}

// parseDue reads a calendar date in local time.
func parseDue(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dueLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, apperr.New(apperr.Validation, "due", fmt.Sprintf("due date must look like 2026-03-05, got %q", s))
	}
	return d, nil
}

func notSignedIn() error {
	return &apperr.Error{Kind: apperr.Auth, Op: "session", Message: "not signed in", Err: session.ErrNotSignedIn}
}

// -------------- rendering helpers --------------

func flatLines(items []model.TodoItem, index map[string]int, now time.Time) []string {
	if len(items) == 0 {
		return []string{ui.Current().Muted.Render("no items")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, ui.TodoLine(index[it.ID], it, now))
	}
	return out
}

func groupLines(items []model.TodoItem, index map[string]int, now time.Time) []string {
	var pend, done []model.TodoItem
	for _, it := range items {
		if it.Completed {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	t := ui.Current()
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend, index, now)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done, index, now)...)
	}
	return lines
}
