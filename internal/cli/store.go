package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/tablesync/internal/scope"
	"github.com/mesh-intelligence/tablesync/internal/table"
	"github.com/mesh-intelligence/tablesync/pkg/sqlite"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

type docTable = table.Table[types.Document, types.Document]

type docBinding = scope.Binding[table.Backend[types.Document, types.Document], *docTable]

// openStore attaches the document store. The caller must Detach it.
func (a *app) openStore() (types.DocumentStore, error) {
	store := sqlite.NewBackend(a.logger)
	if err := store.Attach(a.config); err != nil {
		return nil, systemError{fmt.Errorf("attach backend: %w", err)}
	}
	return store, nil
}

// bindTable returns the binding for the named table. Each table gets its
// own binding so providers for different tables can share one scope.
func (a *app) bindTable(name string) *docBinding {
	return table.Bind[types.Document, types.Document](
		"Table("+name+")", name,
		table.WithLogger[types.Document](a.logger),
	)
}

// mountTable mounts a provider for the named table under parent and resolves
// the table handle through it.
func (a *app) mountTable(parent *scope.Scope, store types.DocumentStore, name string) (*scope.Provider[table.Backend[types.Document, types.Document], *docTable], *docTable, error) {
	if !slices.Contains(store.Tables(), name) {
		return nil, nil, fmt.Errorf("%w: %q (valid: %s)", types.ErrTableNotFound, name, strings.Join(store.Tables(), ", "))
	}

	binding := a.bindTable(name)
	p, err := binding.Provide(parent, sqlite.NewTableBackend[types.Document, types.Document](store))
	if err != nil {
		return nil, nil, err
	}
	tbl, err := binding.Use(p.Scope())
	if err != nil {
		p.Unmount()
		return nil, nil, err
	}
	return p, tbl, nil
}

// withTable runs fn against a mounted handle for the named table and tears
// everything down afterwards.
func (a *app) withTable(ctx context.Context, name string, fn func(context.Context, *docTable) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Detach()

	p, tbl, err := a.mountTable(scope.NewRoot(), store, name)
	if err != nil {
		return err
	}
	defer p.Unmount()

	return fn(ctx, tbl)
}
