package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Makepad-fr/tada-client/internal/apperr"
)

// Priority of a todo entry.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities numerically: high=3, medium=2, low=1.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

// ParsePriority accepts low, medium or high in any case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", apperr.New(apperr.Validation, "priority", "priority must be low, medium or high, got "+quote(s))
	}
	return p, nil
}

// User is the identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TodoItem is the domain model for a todo entry. The server record is
// canonical; nothing here is client-only.
type TodoItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      string     `json:"userId"`
}

// DescriptionText returns the description or "".
func (t TodoItem) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// Overdue reports whether an open item is past its due date.
func (t TodoItem) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// Clone returns a copy that shares no pointers with t.
func (t TodoItem) Clone() TodoItem {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

// NewTodo is the creation payload.
type NewTodo struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    Priority // empty means medium
}

// Validate checks the payload before any request is made.
func (n NewTodo) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return apperr.New(apperr.Validation, "todos.create", "title is required")
	}
	if n.Priority != "" && !n.Priority.Valid() {
		return apperr.New(apperr.Validation, "todos.create", "priority must be low, medium or high")
	}
	return nil
}

type newTodoBody struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	DueDate     *string  `json:"dueDate,omitempty"`
	Priority    Priority `json:"priority"`
}

// MarshalJSON writes {title, description?, dueDate?, priority}.
func (n NewTodo) MarshalJSON() ([]byte, error) {
	body := newTodoBody{
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Priority:    n.Priority,
	}
	if body.Priority == "" {
		body.Priority = PriorityMedium
	}
	if n.DueDate != nil {
		s := n.DueDate.UTC().Format(time.RFC3339)
		body.DueDate = &s
	}
	return json.Marshal(body)
}

// Patch is a partial update. Nil fields are left out of the request body.
type Patch struct {
	Title        *string
	Description  *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool // sends dueDate: null
	Priority     *Priority
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.Priority == nil
}

// Validate checks the patch before any request is made.
func (p Patch) Validate() error {
	if p.Empty() {
		return apperr.New(apperr.Validation, "todos.update", "nothing to update")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.New(apperr.Validation, "todos.update", "title cannot be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.New(apperr.Validation, "todos.update", "priority must be low, medium or high")
	}
	return nil
}

// MarshalJSON writes only the fields that are set.
func (p Patch) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)
	if p.Title != nil {
		body["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Completed != nil {
		body["completed"] = *p.Completed
	}
	switch {
	case p.DueDate != nil:
		body["dueDate"] = p.DueDate.UTC().Format(time.RFC3339)
	case p.ClearDueDate:
		body["dueDate"] = nil
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	return json.Marshal(body)
}

func quote(s string) string { return `"` + s + `"` }
