package types

import "errors"

// FindParams selects a single entity by identity.
type FindParams struct {
	ID string `json:"id"`
}

// WithDefaults fills unset fields from d. Explicit values win.
func (p FindParams) WithDefaults(d FindParams) FindParams {
	if p.ID == "" {
		p.ID = d.ID
	}
	return p
}

// CreateParams carries the writable projection of a new entity.
type CreateParams[W any] struct {
	Data W `json:"data"`
}

// WithDefaults merges d.Data under p.Data. Map-shaped data merges key by key.
func (p CreateParams[W]) WithDefaults(d CreateParams[W]) CreateParams[W] {
	p.Data = mergeData(d.Data, p.Data)
	return p
}

// UpdateParams replaces the writable fields of the entity with the given ID.
type UpdateParams[W any] struct {
	ID   string `json:"id"`
	Data W      `json:"data"`
}

// WithDefaults fills an empty ID from d and merges d.Data under p.Data.
func (p UpdateParams[W]) WithDefaults(d UpdateParams[W]) UpdateParams[W] {
	if p.ID == "" {
		p.ID = d.ID
	}
	p.Data = mergeData(d.Data, p.Data)
	return p
}

// RemoveParams selects the entity to delete.
type RemoveParams struct {
	ID string `json:"id"`
}

// WithDefaults fills unset fields from d. Explicit values win.
func (p RemoveParams) WithDefaults(d RemoveParams) RemoveParams {
	if p.ID == "" {
		p.ID = d.ID
	}
	return p
}

// Pagination bounds a list call. A zero Limit means no limit.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ListParams narrows a list call. Filters match top-level fields exactly and
// are ANDed together.
type ListParams struct {
	Filters    map[string]any `json:"filters,omitempty"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// IsPartial reports whether the list call may return a subset of the table,
// i.e. it carries filters or pagination.
func (p ListParams) IsPartial() bool {
	return len(p.Filters) > 0 || p.Pagination != nil
}

// WithDefaults merges d under p: filter keys present in p win, and p's
// pagination wins when set.
func (p ListParams) WithDefaults(d ListParams) ListParams {
	if len(d.Filters) > 0 {
		merged := make(map[string]any, len(d.Filters)+len(p.Filters))
		for k, v := range d.Filters {
			merged[k] = v
		}
		for k, v := range p.Filters {
			merged[k] = v
		}
		p.Filters = merged
	}
	if p.Pagination == nil && d.Pagination != nil {
		pg := *d.Pagination
		p.Pagination = &pg
	}
	return p
}

// Backend operation errors.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidID       = errors.New("invalid entity ID")
	ErrInvalidData     = errors.New("invalid entity data")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrTableNotFound   = errors.New("table not found")
	ErrInvalidTable    = errors.New("table name must not be empty")
	ErrNilBackend      = errors.New("backend must not be nil")
	ErrDetached        = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)
