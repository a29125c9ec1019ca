// Package sqlite provides the public constructors for the SQLite document
// backend while keeping its implementation internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/internal/sqlite"
	"github.com/mesh-intelligence/tablesync/internal/table"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// NewBackend creates a detached SQLite document store. A nil logger
// discards output.
//
// Example:
//
//	store := sqlite.NewBackend(nil)
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".tablesync-db",
//	})
//	defer store.Detach()
func NewBackend(logger *zap.Logger) types.DocumentStore {
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}

// NewTableBackend adapts store to a typed table backend, converting through
// JSON.
func NewTableBackend[T types.Entity, W any](store types.DocumentStore) table.Backend[T, W] {
	return sqlite.NewTyped[T, W](store)
}
