package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

type todo struct {
	ID    string
	Title string
	Done  bool
}

func (t todo) EntityID() string { return t.ID }

type todoInput struct {
	Title string
	Done  bool
}

// memBackend is an in-memory Backend. A non-nil gate blocks every call until
// it is closed; entered receives one value per blocked call.
type memBackend struct {
	mu      sync.Mutex
	rows    []todo
	nextID  int
	calls   map[string]int
	tables  []string
	failErr error

	gate    chan struct{}
	entered chan string
}

func newMemBackend(rows ...todo) *memBackend {
	return &memBackend{
		rows:    append([]todo(nil), rows...),
		calls:   make(map[string]int),
		entered: make(chan string, 16),
	}
}

func (b *memBackend) hold() {
	b.mu.Lock()
	b.gate = make(chan struct{})
	b.mu.Unlock()
}

func (b *memBackend) release() {
	b.mu.Lock()
	g := b.gate
	b.gate = nil
	b.mu.Unlock()
	if g != nil {
		close(g)
	}
}

func (b *memBackend) enter(ctx context.Context, table, op string) error {
	b.mu.Lock()
	b.calls[op]++
	b.tables = append(b.tables, table)
	g := b.gate
	b.mu.Unlock()

	if g != nil {
		b.entered <- op
		select {
		case <-g:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failErr
}

func (b *memBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *memBackend) find(id string) int {
	for i, r := range b.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (b *memBackend) Find(ctx context.Context, table string, p types.FindParams) (todo, error) {
	if err := b.enter(ctx, table, "find"); err != nil {
		return todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.find(p.ID)
	if i < 0 {
		return todo{}, types.ErrNotFound
	}
	return b.rows[i], nil
}

func (b *memBackend) Create(ctx context.Context, table string, p types.CreateParams[todoInput]) (todo, error) {
	if err := b.enter(ctx, table, "create"); err != nil {
		return todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	t := todo{ID: fmt.Sprintf("t%d", b.nextID), Title: p.Data.Title, Done: p.Data.Done}
	b.rows = append(b.rows, t)
	return t, nil
}

func (b *memBackend) Update(ctx context.Context, table string, p types.UpdateParams[todoInput]) (todo, error) {
	if err := b.enter(ctx, table, "update"); err != nil {
		return todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.find(p.ID)
	if i < 0 {
		return todo{}, types.ErrNotFound
	}
	b.rows[i].Title = p.Data.Title
	b.rows[i].Done = p.Data.Done
	return b.rows[i], nil
}

func (b *memBackend) Remove(ctx context.Context, table string, p types.RemoveParams) (todo, error) {
	if err := b.enter(ctx, table, "remove"); err != nil {
		return todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.find(p.ID)
	if i < 0 {
		return todo{}, types.ErrNotFound
	}
	t := b.rows[i]
	b.rows = append(b.rows[:i], b.rows[i+1:]...)
	return t, nil
}

func (b *memBackend) List(ctx context.Context, table string, p types.ListParams) ([]todo, error) {
	if err := b.enter(ctx, table, "list"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []todo
	for _, r := range b.rows {
		if done, ok := p.Filters["done"]; ok && done != r.Done {
			continue
		}
		out = append(out, r)
	}
	if pg := p.Pagination; pg != nil {
		if pg.Offset >= len(out) {
			return []todo{}, nil
		}
		out = out[pg.Offset:]
		if pg.Limit > 0 && pg.Limit < len(out) {
			out = out[:pg.Limit]
		}
	}
	return out, nil
}
