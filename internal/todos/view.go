package todos

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// View filters and sorts copies of items into a new slice. items is not
// modified and shares no memory with the result.
//
// The sort is stable and the direction is applied inside the comparator, so
// ties keep their filtered order both ways. Items without a due date sort
// after dated ones in either direction.
func View(items []model.TodoItem, spec model.FilterSortSpec) []model.TodoItem {
	spec = spec.Normalize()
	query := strings.ToLower(spec.Search)

	out := make([]model.TodoItem, 0, len(items))
	for _, it := range items {
		if matches(it, spec, query) {
			out = append(out, it.Clone())
		}
	}

	dir := 1
	if spec.Order == model.Desc {
		dir = -1
	}
	slices.SortStableFunc(out, func(a, b model.TodoItem) int {
		switch spec.SortBy {
		case model.SortDueDate:
			return compareDue(a.DueDate, b.DueDate, dir)
		case model.SortPriority:
			return dir * cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		default:
			return dir * a.CreatedAt.Compare(b.CreatedAt)
		}
	})
	return out
}

func matches(it model.TodoItem, spec model.FilterSortSpec, query string) bool {
	switch spec.Status {
	case model.StatusActive:
		if it.Completed {
			return false
		}
	case model.StatusCompleted:
		if !it.Completed {
			return false
		}
	}
	if spec.Priority != model.PriorityAll && model.Priority(spec.Priority) != it.Priority {
		return false
	}
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(it.Title), query) ||
		strings.Contains(strings.ToLower(it.DescriptionText()), query)
}

// compareDue orders present dates by dir; absent dates always go last.
func compareDue(a, b *time.Time, dir int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return dir * a.Compare(*b)
}
