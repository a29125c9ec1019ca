package types

import (
	"context"
	"encoding/json"
)

// DocumentStore is a backend that keeps schemaless JSON documents per table.
// Bodies are JSON objects; the "id" field carries the identity.
type DocumentStore interface {
	// Attach opens the store for the tables in config.
	Attach(config Config) error
	// Detach releases resources. It is idempotent.
	Detach() error
	// Tables lists the attached tables.
	Tables() []string

	Find(ctx context.Context, table string, params FindParams) (json.RawMessage, error)
	Create(ctx context.Context, table string, params CreateParams[json.RawMessage]) (json.RawMessage, error)
	Update(ctx context.Context, table string, params UpdateParams[json.RawMessage]) (json.RawMessage, error)
	Remove(ctx context.Context, table string, params RemoveParams) (json.RawMessage, error)
	List(ctx context.Context, table string, params ListParams) ([]json.RawMessage, error)
}
