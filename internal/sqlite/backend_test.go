package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tablesync/internal/table"
	"github.com/mesh-intelligence/tablesync/pkg/types"
)

var _ table.Backend[types.Document, types.Document] = (*Typed[types.Document, types.Document])(nil)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t }
}

func attach(t *testing.T, dir string, tables ...string) *Backend {
	t.Helper()
	b := NewBackend(WithClock(fixedClock()))
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: dir,
		Tables:  tables,
	}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func decodeDoc(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func create(t *testing.T, b *Backend, table, body string) map[string]any {
	t.Helper()
	raw, err := b.Create(context.Background(), table, types.CreateParams[json.RawMessage]{Data: json.RawMessage(body)})
	require.NoError(t, err)
	return decodeDoc(t, raw)
}

func TestAttachCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b := attach(t, dir)

	for _, name := range types.DefaultTableNames {
		_, err := os.Stat(filepath.Join(dir, name+".jsonl"))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err)
	assert.Equal(t, types.DefaultTableNames, b.Tables())
	assert.True(t, b.Attached())
	assert.Equal(t, dir, b.DataDir())
}

func TestAttachErrors(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	dir := t.TempDir()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	defer b.Detach()
	assert.ErrorIs(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}), types.ErrAlreadyAttached)
}

func TestDetachIsIdempotent(t *testing.T) {
	b := attach(t, t.TempDir())
	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())

	_, err := b.List(context.Background(), types.PeopleTable, types.ListParams{})
	assert.ErrorIs(t, err, types.ErrDetached)
	assert.Nil(t, b.Tables())
}

func TestCreate(t *testing.T) {
	b := attach(t, t.TempDir())

	doc := create(t, b, "people", `{"name":"Ada"}`)
	id, _ := doc["id"].(string)
	assert.Len(t, id, 36)
	assert.Equal(t, "Ada", doc["name"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc[CreatedAtField])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc[UpdatedAtField])

	doc = create(t, b, "people", `{"id":"p1","name":"Grace"}`)
	assert.Equal(t, "p1", doc["id"])
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	create(t, b, "people", `{"id":"p1"}`)

	tests := []struct {
		name    string
		table   string
		body    string
		wantErr error
	}{
		{"duplicate id", "people", `{"id":"p1"}`, types.ErrAlreadyExists},
		{"not an object", "people", `[1,2]`, types.ErrInvalidData},
		{"bad json", "people", `{`, types.ErrInvalidData},
		{"numeric id", "people", `{"id":7}`, types.ErrInvalidID},
		{"empty id", "people", `{"id":""}`, types.ErrInvalidID},
		{"unknown table", "ghosts", `{}`, types.ErrTableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Create(ctx, tt.table, types.CreateParams[json.RawMessage]{Data: json.RawMessage(tt.body)})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	create(t, b, "people", `{"id":"p1","name":"Ada"}`)

	raw, err := b.Find(ctx, "people", types.FindParams{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", decodeDoc(t, raw)["name"])

	_, err = b.Find(ctx, "people", types.FindParams{ID: "nope"})
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.Find(ctx, "people", types.FindParams{})
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = b.Find(ctx, "notes", types.FindParams{ID: "p1"})
	assert.ErrorIs(t, err, types.ErrNotFound, "ids are scoped to their table")
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBackend(WithClock(func() time.Time { return now }))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer b.Detach()

	create(t, b, "people", `{"id":"p1","name":"Ada","age":36}`)
	now = now.Add(time.Hour)

	raw, err := b.Update(ctx, "people", types.UpdateParams[json.RawMessage]{
		ID:   "p1",
		Data: json.RawMessage(`{"age":37,"id":"other","created_at":"x","city":"London"}`),
	})
	require.NoError(t, err)

	doc := decodeDoc(t, raw)
	assert.Equal(t, "p1", doc["id"])
	assert.Equal(t, "Ada", doc["name"])
	assert.Equal(t, float64(37), doc["age"])
	assert.Equal(t, "London", doc["city"])
	assert.Equal(t, "2026-01-01T00:00:00Z", doc[CreatedAtField])
	assert.Equal(t, "2026-01-01T01:00:00Z", doc[UpdatedAtField])

	_, err = b.Update(ctx, "people", types.UpdateParams[json.RawMessage]{ID: "ghost", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.Update(ctx, "people", types.UpdateParams[json.RawMessage]{})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestRemoveReturnsDocument(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	create(t, b, "people", `{"id":"p1","name":"Ada"}`)

	raw, err := b.Remove(ctx, "people", types.RemoveParams{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", decodeDoc(t, raw)["name"])

	_, err = b.Remove(ctx, "people", types.RemoveParams{ID: "p1"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListFiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	create(t, b, "people", `{"id":"a","team":"red","active":true,"age":30}`)
	create(t, b, "people", `{"id":"b","team":"blue","active":false,"age":41}`)
	create(t, b, "people", `{"id":"c","team":"red","active":false,"age":30,"nick":null}`)
	create(t, b, "people", `{"id":"d","team":"red","active":true,"age":"30"}`)

	tests := []struct {
		name   string
		params types.ListParams
		want   []string
	}{
		{"all", types.ListParams{}, []string{"a", "b", "c", "d"}},
		{"string", types.ListParams{Filters: map[string]any{"team": "red"}}, []string{"a", "c", "d"}},
		{"bool", types.ListParams{Filters: map[string]any{"active": false}}, []string{"b", "c"}},
		{"number", types.ListParams{Filters: map[string]any{"age": 30}}, []string{"a", "c"}},
		{"float", types.ListParams{Filters: map[string]any{"age": 41.0}}, []string{"b"}},
		{"uint64", types.ListParams{Filters: map[string]any{"age": uint64(41)}}, []string{"b"}},
		{"huge uint64", types.ListParams{Filters: map[string]any{"age": uint64(math.MaxUint64)}}, []string{}},
		{"null", types.ListParams{Filters: map[string]any{"nick": nil}}, []string{"c"}},
		{"and", types.ListParams{Filters: map[string]any{"team": "red", "active": true}}, []string{"a", "d"}},
		{"limit", types.ListParams{Pagination: &types.Pagination{Limit: 2}}, []string{"a", "b"}},
		{"offset", types.ListParams{Pagination: &types.Pagination{Offset: 3}}, []string{"d"}},
		{"page", types.ListParams{Pagination: &types.Pagination{Offset: 1, Limit: 2}}, []string{"b", "c"}},
		{"past end", types.ListParams{Pagination: &types.Pagination{Offset: 10}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := b.List(ctx, "people", tt.params)
			require.NoError(t, err)
			got := make([]string, 0, len(raws))
			for _, raw := range raws {
				got = append(got, decodeDoc(t, raw)["id"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListRejectsBadFilters(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())

	tests := []struct {
		name   string
		params types.ListParams
	}{
		{"path key", types.ListParams{Filters: map[string]any{"a.b": 1}}},
		{"quote key", types.ListParams{Filters: map[string]any{"a'": 1}}},
		{"object value", types.ListParams{Filters: map[string]any{"a": map[string]any{}}}},
		{"negative offset", types.ListParams{Pagination: &types.Pagination{Offset: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.List(ctx, "people", tt.params)
			assert.ErrorIs(t, err, types.ErrInvalidFilter)
		})
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	create(t, b, "people", `{"id":"a","name":"Ada"}`)
	create(t, b, "people", `{"id":"b","name":"Grace"}`)
	create(t, b, "notes", `{"id":"n1","text":"hello"}`)
	_, err := b.Update(ctx, "people", types.UpdateParams[json.RawMessage]{ID: "a", Data: json.RawMessage(`{"name":"Ada L."}`)})
	require.NoError(t, err)
	_, err = b.Remove(ctx, "notes", types.RemoveParams{ID: "n1"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	data, err := os.ReadFile(filepath.Join(dir, "people.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	reopened := NewBackend()
	require.NoError(t, reopened.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	defer reopened.Detach()

	raws, err := reopened.List(ctx, "people", types.ListParams{})
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "Ada L.", decodeDoc(t, raws[0])["name"])
	assert.Equal(t, "b", decodeDoc(t, raws[1])["id"])

	notes, err := reopened.List(ctx, "notes", types.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestFailedCommitRestoresJSONL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir, "people")
	create(t, b, "people", `{"id":"a","name":"Ada"}`)

	path := filepath.Join(dir, "people.jsonl")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	b.commit = func(tx *sql.Tx) error {
		_ = tx.Rollback()
		return errors.New("disk I/O error")
	}
	_, err = b.Create(ctx, "people", types.CreateParams[json.RawMessage]{Data: json.RawMessage(`{"id":"b"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	_, err = b.Find(ctx, "people", types.FindParams{ID: "b"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLoadSkipsBadRecords(t *testing.T) {
	dir := t.TempDir()
	lines := strings.Join([]string{
		`{"id":"a","n":1}`,
		`garbage`,
		`{"n":2}`,
		`[1,2,3]`,
		`{"id":"a","n":3}`,
		`{"id":"b","n":4}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.jsonl"), []byte(lines), 0o644))

	b := attach(t, dir, "people")
	raws, err := b.List(context.Background(), "people", types.ListParams{})
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, float64(1), decodeDoc(t, raws[0])["n"], "first occurrence of an id wins")
	assert.Equal(t, "b", decodeDoc(t, raws[1])["id"])
}

func TestCustomTables(t *testing.T) {
	b := attach(t, t.TempDir(), "tasks")
	assert.Equal(t, []string{"tasks"}, b.Tables())

	_, err := b.List(context.Background(), "people", types.ListParams{})
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

type person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p person) EntityID() string { return p.ID }

type personInput struct {
	Name string `json:"name,omitempty"`
}

func TestTypedWithTable(t *testing.T) {
	ctx := context.Background()
	docs := attach(t, t.TempDir())

	people, err := table.New[person, personInput]("people", NewTyped[person, personInput](docs))
	require.NoError(t, err)

	ada, err := people.Create.Trigger(ctx, types.CreateParams[personInput]{Data: personInput{Name: "Ada"}})
	require.NoError(t, err)
	require.NotEmpty(t, ada.ID)

	_, err = people.Update.Trigger(ctx, types.UpdateParams[personInput]{ID: ada.ID, Data: personInput{Name: "Ada Lovelace"}})
	require.NoError(t, err)
	got, ok := people.Get(ada.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", got.Name)

	_, err = people.List.Trigger(ctx, types.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, people.Len())

	_, err = people.Remove.Trigger(ctx, types.RemoveParams{ID: ada.ID})
	require.NoError(t, err)
	assert.Zero(t, people.Len())

	_, err = people.Find.Trigger(ctx, types.FindParams{ID: ada.ID})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTypedDocuments(t *testing.T) {
	ctx := context.Background()
	docs := attach(t, t.TempDir())
	typed := NewTyped[types.Document, types.Document](docs)
	assert.Same(t, docs, typed.Documents())

	doc, err := typed.Create(ctx, "notes", types.CreateParams[types.Document]{Data: types.Document{"text": "hi"}})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.EntityID())

	list, err := typed.List(ctx, "notes", types.ListParams{Filters: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doc.EntityID(), list[0].EntityID())

	// A nil body creates an empty document.
	empty, err := typed.Create(ctx, "notes", types.CreateParams[types.Document]{})
	require.NoError(t, err)
	assert.NotEmpty(t, empty.EntityID())
}
