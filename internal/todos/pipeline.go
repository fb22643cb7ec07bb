// Package todos caches the signed-in user's todo collection and derives
// filtered, sorted views of it. Every mutation reflects a confirmed server
// response; nothing is applied speculatively.
package todos

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/logging"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// DefaultPageSize is the limit sent with each list request.
const DefaultPageSize = 100

// Backend is the todo half of the API client.
type Backend interface {
	ListTodos(ctx context.Context, p api.ListParams) (api.Page, error)
	CreateTodo(ctx context.Context, n model.NewTodo) (model.TodoItem, error)
	UpdateTodo(ctx context.Context, id string, p model.Patch) (model.TodoItem, error)
	SetCompleted(ctx context.Context, id string, completed bool) (model.TodoItem, error)
	DeleteTodo(ctx context.Context, id string) error
}

// Authorizer runs call with the session's credential, refreshing it once on
// a 401. session.Manager.Authorized satisfies it.
type Authorizer func(ctx context.Context, call func(context.Context) error) error

// Stats are the header counters.
type Stats struct {
	Total   int
	Done    int
	Pending int
}

// Pipeline owns the cached collection. Safe for concurrent use; network
// calls run outside the lock.
type Pipeline struct {
	backend  Backend
	auth     Authorizer
	pageSize int
	log      *log.Logger

	mu     sync.Mutex
	items  []model.TodoItem
	loaded bool
	rev    uint64 // bumped when a load starts and when a mutation lands
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPageSize sets the list request limit.
func WithPageSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New returns an empty pipeline.
func New(backend Backend, auth Authorizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:  backend,
		auth:     auth,
		pageSize: DefaultPageSize,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load fetches the whole collection and replaces the cache. On failure the
// cache is untouched. A load overtaken by a newer load or by a mutation is
// discarded and the current cache returned instead.
func (p *Pipeline) Load(ctx context.Context) ([]model.TodoItem, error) {
	p.mu.Lock()
	p.rev++
	rev := p.rev
	p.mu.Unlock()

	items, err := p.fetchAll(ctx)
	if err != nil {
		return nil, fetchFailure("todos.load", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rev != rev {
		p.log.Warn("discarding stale load", "items", len(items))
		return cloneItems(p.items), nil
	}
	p.items = items
	p.loaded = true
	p.log.Debug("todos loaded", "items", len(items))
	return cloneItems(items), nil
}

func (p *Pipeline) fetchAll(ctx context.Context) ([]model.TodoItem, error) {
	var (
		all    []model.TodoItem
		seen   = make(map[string]bool)
		offset int
	)
	for {
		var page api.Page
		err := p.auth(ctx, func(ctx context.Context) error {
			var err error
			page, err = p.backend.ListTodos(ctx, api.ListParams{Limit: p.pageSize, Offset: offset})
			return err
		})
		if err != nil {
			return nil, err
		}

		added := 0
		for _, it := range page.Todos {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			all = append(all, it)
			added++
		}
		offset += len(page.Todos)

		// A server that ignores offset hands back the same page again.
		if len(page.Todos) == 0 || added == 0 {
			break
		}
		// An envelope total is authoritative: the server may cap the page
		// below the requested limit.
		if page.Envelope && page.Total > 0 {
			if offset >= page.Total {
				break
			}
			continue
		}
		if len(page.Todos) < p.pageSize {
			break
		}
	}
	if all == nil {
		all = []model.TodoItem{}
	}
	return all, nil
}

// Create validates n, posts it and prepends the server record.
func (p *Pipeline) Create(ctx context.Context, n model.NewTodo) (model.TodoItem, error) {
	const op = "todos.create"
	if err := n.Validate(); err != nil {
		return model.TodoItem{}, err
	}

	var item model.TodoItem
	err := p.auth(ctx, func(ctx context.Context) error {
		var err error
		item, err = p.backend.CreateTodo(ctx, n)
		return err
	})
	if err != nil {
		return model.TodoItem{}, fetchFailure(op, err)
	}
	if item.Title == "" {
		item.Title = strings.TrimSpace(n.Title)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = slices.DeleteFunc(p.items, func(it model.TodoItem) bool { return it.ID == item.ID })
	p.items = slices.Insert(p.items, 0, item)
	p.rev++
	return item, nil
}

// Update sends a partial update for a cached item and replaces it with the
// server record.
func (p *Pipeline) Update(ctx context.Context, id string, patch model.Patch) (model.TodoItem, error) {
	const op = "todos.update"
	if _, ok := p.Get(id); !ok {
		return model.TodoItem{}, notFound(op, id)
	}
	if err := patch.Validate(); err != nil {
		return model.TodoItem{}, err
	}

	var got model.TodoItem
	err := p.auth(ctx, func(ctx context.Context) error {
		var err error
		got, err = p.backend.UpdateTodo(ctx, id, patch)
		return err
	})
	if err != nil {
		return model.TodoItem{}, fetchFailure(op, err)
	}
	return p.apply(id, got), nil
}

// Toggle flips completion of a cached item.
func (p *Pipeline) Toggle(ctx context.Context, id string) (model.TodoItem, error) {
	const op = "todos.toggle"
	cur, ok := p.Get(id)
	if !ok {
		return model.TodoItem{}, notFound(op, id)
	}

	var got model.TodoItem
	err := p.auth(ctx, func(ctx context.Context) error {
		var err error
		got, err = p.backend.SetCompleted(ctx, id, !cur.Completed)
		return err
	})
	if err != nil {
		return model.TodoItem{}, fetchFailure(op, err)
	}
	return p.apply(id, got), nil
}

// Remove deletes a cached item on the server, then locally.
func (p *Pipeline) Remove(ctx context.Context, id string) error {
	const op = "todos.delete"
	if _, ok := p.Get(id); !ok {
		return notFound(op, id)
	}
	err := p.auth(ctx, func(ctx context.Context) error {
		return p.backend.DeleteTodo(ctx, id)
	})
	if err != nil {
		return fetchFailure(op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = slices.DeleteFunc(p.items, func(it model.TodoItem) bool { return it.ID == id })
	p.rev++
	return nil
}

// apply replaces the cached item with the server's answer. If the item left
// the cache while the call was in flight, the result is returned but not
// re-inserted.
func (p *Pipeline) apply(id string, got model.TodoItem) model.TodoItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := slices.IndexFunc(p.items, func(it model.TodoItem) bool { return it.ID == id })
	if idx < 0 {
		if got.ID == "" {
			got.ID = id
		}
		return got
	}
	merged := reconcile(p.items[idx], got)
	p.items[idx] = merged
	p.rev++
	return merged
}

// reconcile merges a server answer into the cached item. The completion
// endpoint may answer with only {id, completed, updated_at}; such a partial
// record only moves the completion state forward.
func reconcile(cached, got model.TodoItem) model.TodoItem {
	if got.Title == "" {
		out := cached
		out.Completed = got.Completed
		if !got.UpdatedAt.IsZero() {
			out.UpdatedAt = got.UpdatedAt
		}
		return out
	}
	if got.ID == "" {
		got.ID = cached.ID
	}
	return got
}

// Items returns a copy of the cached collection in server order.
func (p *Pipeline) Items() []model.TodoItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneItems(p.items)
}

// Loaded reports whether a load has ever been applied.
func (p *Pipeline) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Get returns the cached item with id.
func (p *Pipeline) Get(id string) (model.TodoItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range p.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.TodoItem{}, false
}

// Stats counts the cached collection.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.items)}
	for _, it := range p.items {
		if it.Completed {
			s.Done++
		}
	}
	s.Pending = s.Total - s.Done
	return s
}

// View derives a filtered, sorted copy of the cache.
func (p *Pipeline) View(spec model.FilterSortSpec) []model.TodoItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View(p.items, spec)
}

func cloneItems(items []model.TodoItem) []model.TodoItem {
	out := make([]model.TodoItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func notFound(op, id string) error {
	return apperr.New(apperr.NotFound, op, fmt.Sprintf("no todo with id %s", id))
}

// fetchFailure maps call errors onto the pipeline's kinds. Auth and Fetch
// pass through; a transport failure becomes a Fetch error that still
// unwraps to the Network one.
func fetchFailure(op string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.Auth, apperr.Fetch, apperr.Validation, apperr.NotFound:
		return err
	}
	return &apperr.Error{Kind: apperr.Fetch, Op: op, Message: apperr.Message(err), Status: apperr.StatusOf(err), Err: err}
}
