package model

import (
	"strings"

	"github.com/Makepad-fr/tada-client/internal/apperr"
)

// StatusFilter selects items by completion.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// PriorityFilter selects items by priority; "all" keeps every priority.
type PriorityFilter string

const (
	PriorityAll        PriorityFilter = "all"
	PriorityOnlyLow    PriorityFilter = PriorityFilter(PriorityLow)
	PriorityOnlyMedium PriorityFilter = PriorityFilter(PriorityMedium)
	PriorityOnlyHigh   PriorityFilter = PriorityFilter(PriorityHigh)
)

// SortKey names the field a view is ordered by.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortDueDate   SortKey = "dueDate"
	SortPriority  SortKey = "priority"
)

// SortOrder is the view direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// FilterSortSpec drives a derived view of the collection.
type FilterSortSpec struct {
	Status   StatusFilter
	Priority PriorityFilter
	Search   string
	SortBy   SortKey
	Order    SortOrder
}

// DefaultSpec shows everything, newest first.
func DefaultSpec() FilterSortSpec {
	return FilterSortSpec{
		Status:   StatusAll,
		Priority: PriorityAll,
		SortBy:   SortCreatedAt,
		Order:    Desc,
	}
}

// Normalize fills empty fields from DefaultSpec.
func (s FilterSortSpec) Normalize() FilterSortSpec {
	d := DefaultSpec()
	if s.Status == "" {
		s.Status = d.Status
	}
	if s.Priority == "" {
		s.Priority = d.Priority
	}
	if s.SortBy == "" {
		s.SortBy = d.SortBy
	}
	if s.Order == "" {
		s.Order = d.Order
	}
	return s
}

// Validate rejects values outside the enums.
func (s FilterSortSpec) Validate() error {
	s = s.Normalize()
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return err
	}
	if _, err := ParsePriorityFilter(string(s.Priority)); err != nil {
		return err
	}
	if _, err := ParseSortKey(string(s.SortBy)); err != nil {
		return err
	}
	_, err := ParseSortOrder(string(s.Order))
	return err
}

func ParseStatus(v string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(v))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, "pending":
		return StatusActive, nil
	case StatusCompleted, "done":
		return StatusCompleted, nil
	}
	return "", invalid("status", v, "all, active, completed")
}

func ParsePriorityFilter(v string) (PriorityFilter, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, string(PriorityAll)) {
		return PriorityAll, nil
	}
	p, err := ParsePriority(v)
	if err != nil {
		return "", invalid("priority", v, "all, low, medium, high")
	}
	return PriorityFilter(p), nil
}

func ParseSortKey(v string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "createdat", "created", "created_at":
		return SortCreatedAt, nil
	case "duedate", "due", "due_date":
		return SortDueDate, nil
	case "priority":
		return SortPriority, nil
	}
	return "", invalid("sort", v, "createdAt, dueDate, priority")
}

func ParseSortOrder(v string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(v))) {
	case "", Desc:
		return Desc, nil
	case Asc:
		return Asc, nil
	}
	return "", invalid("order", v, "asc, desc")
}

func invalid(field, got, want string) error {
	return apperr.New(apperr.Validation, field, field+" must be one of "+want+", got "+quote(got))
}

// Next cycles the status filter: all, active, completed.
func (s StatusFilter) Next() StatusFilter {
	switch s {
	case StatusAll, "":
		return StatusActive
	case StatusActive:
		return StatusCompleted
	}
	return StatusAll
}

// Next cycles the priority filter: all, high, medium, low.
func (p PriorityFilter) Next() PriorityFilter {
	switch p {
	case PriorityAll, "":
		return PriorityOnlyHigh
	case PriorityOnlyHigh:
		return PriorityOnlyMedium
	case PriorityOnlyMedium:
		return PriorityOnlyLow
	}
	return PriorityAll
}

// Next cycles the sort key: createdAt, dueDate, priority.
func (k SortKey) Next() SortKey {
	switch k {
	case SortCreatedAt, "":
		return SortDueDate
	case SortDueDate:
		return SortPriority
	}
	return SortCreatedAt
}

// Flip reverses the order.
func (o SortOrder) Flip() SortOrder {
	if o == Asc {
		return Desc
	}
	return Asc
}
