package table

import (
	"github.com/mesh-intelligence/tablesync/internal/scope"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Bind returns a scope binding whose providers own a Table for the backend
// table called table. The provider's props are the backend; it is fixed for
// the lifetime of the mount. Index changes and action state transitions
// republish the provider.
func Bind[T types.Entity, W any](name, table string, opts ...Option[T]) *scope.Binding[Backend[T, W], *Table[T, W]] {
	return scope.Bind(name, func(m *scope.Mount, backend Backend[T, W]) (func(Backend[T, W]) *Table[T, W], error) {
		all := append(append([]Option[T]{}, opts...), WithOwner[T](m))
		tbl, err := New[T, W](table, backend, all...)
		if err != nil {
			return nil, err
		}
		m.OnUnmount(tbl.Close)
		m.OnUnmount(tbl.Subscribe(m.Changed))
		return func(Backend[T, W]) *Table[T, W] { return tbl }, nil
	})
}

// BindResource returns a scope binding whose providers publish one entity of
// the table provided by tables in an enclosing scope. The props are the
// entity identity, fixed for the lifetime of the mount.
func BindResource[T types.Entity, W any](name string, tables *scope.Binding[Backend[T, W], *Table[T, W]]) *scope.Binding[string, *Resource[T, W]] {
	return scope.Bind(name, func(m *scope.Mount, id string) (func(string) *Resource[T, W], error) {
		tbl, err := tables.Use(m.Parent())
		if err != nil {
			return nil, err
		}
		res, err := NewResource[T, W](m.Context(), tbl, id, WithOwner[T](m))
		if err != nil {
			return nil, err
		}
		m.OnUnmount(res.Close)
		return func(string) *Resource[T, W] { return res }, nil
	})
}
