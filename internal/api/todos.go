package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// ListParams are the server-side filters of GET /todos. Zero values are
// omitted from the query.
type ListParams struct {
	Status   string // "active" | "completed"
	Priority string // "low" | "medium" | "high"
	Limit    int
	Offset   int
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Status != "" && p.Status != string(model.StatusAll) {
		q.Set("status", p.Status)
	}
	if p.Priority != "" && p.Priority != string(model.PriorityAll) {
		q.Set("priority", p.Priority)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// Page is one slice of the collection. Envelope is false when the server
// answered with a bare array, which is always the whole collection.
type Page struct {
	Todos    []model.TodoItem
	Total    int
	Limit    int
	Offset   int
	Envelope bool
}

type pageBody struct {
	Todos  []json.RawMessage `json:"todos"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListTodos fetches one page of the current user's todos.
func (c *Client) ListTodos(ctx context.Context, p ListParams) (Page, error) {
	const op = "todos.list"
	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   []string{"todos"},
		query:  p.query(),
		authed: true,
	}, &raw)
	if err != nil {
		return Page{}, err
	}

	var (
		records []json.RawMessage
		page    Page
	)
	switch trimmed := bytes.TrimSpace(raw); {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Page{}, apperr.Wrap(apperr.Fetch, op, fmt.Errorf("unexpected response: %w", err))
		}
		page.Total = len(records)
	case len(trimmed) > 0 && trimmed[0] == '{':
		var body pageBody
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return Page{}, apperr.Wrap(apperr.Fetch, op, fmt.Errorf("unexpected response: %w", err))
		}
		records = body.Todos
		page.Envelope = true
		page.Total, page.Limit, page.Offset = body.Total, body.Limit, body.Offset
	default:
		return Page{}, apperr.New(apperr.Fetch, op, "unexpected response: expected a list of todos")
	}

	now := c.now()
	page.Todos = make([]model.TodoItem, 0, len(records))
	for _, rec := range records {
		item, err := decodeRecord(op, rec, now)
		if err != nil {
			return Page{}, err
		}
		page.Todos = append(page.Todos, item)
	}
	return page, nil
}

// CreateTodo posts a new todo and returns the server record.
func (c *Client) CreateTodo(ctx context.Context, n model.NewTodo) (model.TodoItem, error) {
	return c.record(ctx, request{
		op:     "todos.create",
		method: http.MethodPost,
		path:   []string{"todos"},
		body:   n,
		authed: true,
	})
}

// UpdateTodo sends a partial update.
func (c *Client) UpdateTodo(ctx context.Context, id string, p model.Patch) (model.TodoItem, error) {
	return c.record(ctx, request{
		op:     "todos.update",
		method: http.MethodPut,
		path:   []string{"todos", url.PathEscape(id)},
		body:   p,
		authed: true,
	})
}

// SetCompleted flips the completion flag. The server may answer with a
// partial record.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) (model.TodoItem, error) {
	return c.record(ctx, request{
		op:     "todos.toggle",
		method: http.MethodPatch,
		path:   []string{"todos", url.PathEscape(id), "complete"},
		body:   map[string]bool{"completed": completed},
		authed: true,
	})
}

// DeleteTodo removes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:     "todos.delete",
		method: http.MethodDelete,
		path:   []string{"todos", url.PathEscape(id)},
		authed: true,
	}, nil)
}

func (c *Client) record(ctx context.Context, r request) (model.TodoItem, error) {
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return model.TodoItem{}, err
	}
	return decodeRecord(r.op, raw, c.now())
}
