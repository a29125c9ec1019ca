package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Typed serves a document store as a typed table backend, converting
// through JSON. T decodes stored documents; W encodes create and update
// bodies.
type Typed[T types.Entity, W any] struct {
	docs types.DocumentStore
}

// NewTyped wraps docs.
func NewTyped[T types.Entity, W any](docs types.DocumentStore) *Typed[T, W] {
	return &Typed[T, W]{docs: docs}
}

// Documents returns the wrapped store.
func (t *Typed[T, W]) Documents() types.DocumentStore {
	return t.docs
}

func (t *Typed[T, W]) Find(ctx context.Context, table string, params types.FindParams) (T, error) {
	raw, err := t.docs.Find(ctx, table, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

func (t *Typed[T, W]) Create(ctx context.Context, table string, params types.CreateParams[W]) (T, error) {
	data, err := encode(params.Data)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := t.docs.Create(ctx, table, types.CreateParams[json.RawMessage]{Data: data})
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

func (t *Typed[T, W]) Update(ctx context.Context, table string, params types.UpdateParams[W]) (T, error) {
	data, err := encode(params.Data)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := t.docs.Update(ctx, table, types.UpdateParams[json.RawMessage]{ID: params.ID, Data: data})
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

func (t *Typed[T, W]) Remove(ctx context.Context, table string, params types.RemoveParams) (T, error) {
	raw, err := t.docs.Remove(ctx, table, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

func (t *Typed[T, W]) List(ctx context.Context, table string, params types.ListParams) ([]T, error) {
	raws, err := t.docs.List(ctx, table, params)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding document: %w", err)
	}
	return v, nil
}

func encode[W any](data W) (json.RawMessage, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
