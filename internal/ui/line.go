package ui

import (
	"fmt"
	"time"

	"github.com/Makepad-fr/tada-client/internal/model"
)

const (
	maxTitle  = 80
	dueLayout = "Jan 2"
)

// Box renders the completion checkbox.
func Box(done bool) string {
	t := Current()
	if done {
		return t.Success.Render(t.BoxChecked)
	}
	return t.Muted.Render(t.BoxUnchecked)
}

// Badge renders a fixed-width priority marker.
func Badge(p model.Priority) string {
	t := Current()
	switch p {
	case model.PriorityHigh:
		return t.High.Render("!!!")
	case model.PriorityLow:
		return t.Low.Render("!  ")
	default:
		return t.Medium.Render("!! ")
	}
}

// Due renders the due date, highlighting overdue open items. Empty when the
// item has no due date.
func Due(it model.TodoItem, now time.Time) string {
	if it.DueDate == nil {
		return ""
	}
	t := Current()
	layout := dueLayout
	if it.DueDate.Year() != now.Year() {
		layout = "Jan 2 2006"
	}
	s := "due " + it.DueDate.Local().Format(layout)
	if it.Overdue(now) {
		return t.Overdue.Render(s + " (overdue)")
	}
	return t.Muted.Render(s)
}

// Truncate shortens s to max runes with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// TodoLine renders one list row. idx <= 0 omits the index column.
func TodoLine(idx int, it model.TodoItem, now time.Time) string {
	t := Current()
	title := Truncate(it.Title, maxTitle)
	if it.Completed {
		title = t.Done.Render(title)
	}
	line := fmt.Sprintf("%s %s %s", Box(it.Completed), Badge(it.Priority), title)
	if idx > 0 {
		line = t.Muted.Render(fmt.Sprintf("%2d.", idx)) + " " + line
	}
	if due := Due(it, now); due != "" {
		line += "  " + due
	}
	return line
}
