package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// The backend speaks snake_case for dates and ownership. That is the only
// record shape accepted.
const todoSchemaText = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id":          {"type": ["string", "integer"]},
    "title":       {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "completed":   {"type": ["boolean", "null"]},
    "priority":    {"type": ["string", "null"]},
    "due_date":    {"type": ["string", "null"]},
    "created_at":  {"type": ["string", "null"]},
    "updated_at":  {"type": ["string", "null"]},
    "user_id":     {"type": ["string", "integer", "null"]}
  }
}`

var todoSchema = jsonschema.MustCompileString("todo.schema.json", todoSchemaText)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // naive, treated as UTC
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type recordBody struct {
	ID          flexString `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Completed   *bool      `json:"completed"`
	Priority    *string    `json:"priority"`
	DueDate     *string    `json:"due_date"`
	CreatedAt   *string    `json:"created_at"`
	UpdatedAt   *string    `json:"updated_at"`
	UserID      flexString `json:"user_id"`
}

// decodeRecord validates one server record and maps it to the domain type.
// Missing timestamps fall back to now. A response without a title (the
// completion endpoint answers {id, completed, updated_at}) decodes with an
// empty Title.
func decodeRecord(op string, raw json.RawMessage, now time.Time) (model.TodoItem, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return model.TodoItem{}, apperr.Wrap(apperr.Fetch, op, fmt.Errorf("unexpected response: %w", err))
	}
	if err := todoSchema.Validate(doc); err != nil {
		return model.TodoItem{}, &apperr.Error{
			Kind:    apperr.Fetch,
			Op:      op,
			Message: "invalid todo record: " + schemaMessage(err),
			Err:     err,
		}
	}

	var r recordBody
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.TodoItem{}, apperr.Wrap(apperr.Fetch, op, fmt.Errorf("unexpected response: %w", err))
	}

	item := model.TodoItem{
		ID:          string(r.ID),
		Description: r.Description,
		UserID:      string(r.UserID),
		Priority:    model.PriorityMedium,
	}
	if item.ID == "" {
		return model.TodoItem{}, apperr.New(apperr.Fetch, op, "invalid todo record: empty id")
	}
	if r.Title != nil {
		item.Title = *r.Title
	}
	if r.Completed != nil {
		item.Completed = *r.Completed
	}
	if r.Priority != nil {
		if p := model.Priority(strings.ToLower(*r.Priority)); p.Valid() {
			item.Priority = p
		}
	}

	var err error
	if item.DueDate, err = parseOptionalTime(r.DueDate); err != nil {
		return model.TodoItem{}, recordTimeError(op, item.ID, "due_date", err)
	}
	created, err := parseOptionalTime(r.CreatedAt)
	if err != nil {
		return model.TodoItem{}, recordTimeError(op, item.ID, "created_at", err)
	}
	updated, err := parseOptionalTime(r.UpdatedAt)
	if err != nil {
		return model.TodoItem{}, recordTimeError(op, item.ID, "updated_at", err)
	}
	item.CreatedAt = now
	if created != nil {
		item.CreatedAt = *created
	}
	item.UpdatedAt = item.CreatedAt
	if updated != nil {
		item.UpdatedAt = *updated
	} else if created == nil {
		item.UpdatedAt = now
	}
	return item, nil
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", v)
}

func recordTimeError(op, id, field string, err error) error {
	return &apperr.Error{
		Kind:    apperr.Fetch,
		Op:      op,
		Message: fmt.Sprintf("invalid todo record %s: %s: %v", id, field, err),
		Err:     err,
	}
}

// schemaMessage flattens a validation error to its leaf causes.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	if len(msgs) == 0 {
		return ve.Message
	}
	return strings.Join(msgs, "; ")
}

func collectSchemaErrors(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*msgs = append(*msgs, ve.Message)
			return
		}
		*msgs = append(*msgs, loc+": "+ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, msgs)
	}
}
