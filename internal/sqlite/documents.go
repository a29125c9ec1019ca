package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// Timestamp fields maintained on every document.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Find returns the document with the given id.
func (b *Backend) Find(ctx context.Context, table string, params types.FindParams) (json.RawMessage, error) {
	if params.ID == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkTable(table); err != nil {
		return nil, err
	}
	return getBody(ctx, b.db, table, params.ID)
}

// Create inserts a document. The body must be a JSON object; its "id" is
// used when present and a UUID v7 is generated otherwise.
func (b *Backend) Create(ctx context.Context, table string, params types.CreateParams[json.RawMessage]) (json.RawMessage, error) {
	doc, err := decodeObject(params.Data)
	if err != nil {
		return nil, err
	}
	id, err := documentID(doc)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkTable(table); err != nil {
		return nil, err
	}

	if id == "" {
		id = b.newID()
	}
	now := b.timestamp()
	doc[types.IDField] = id
	doc[CreatedAtField] = now
	doc[UpdatedAtField] = now
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}

	err = b.mutate(ctx, table, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (table_name, doc_id, body) VALUES (?, ?, ?)`,
			table, id, string(body))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s/%s", types.ErrAlreadyExists, table, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("document created", zap.String("table", table), zap.String("id", id))
	return body, nil
}

// Update merges the top-level fields of the body into the stored document.
// The id and created_at fields cannot be changed.
func (b *Backend) Update(ctx context.Context, table string, params types.UpdateParams[json.RawMessage]) (json.RawMessage, error) {
	if params.ID == "" {
		return nil, types.ErrInvalidID
	}
	patch, err := decodeObject(params.Data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkTable(table); err != nil {
		return nil, err
	}

	var body []byte
	err = b.mutate(ctx, table, func(tx *sql.Tx) error {
		current, err := getBody(ctx, tx, table, params.ID)
		if err != nil {
			return err
		}
		doc, err := decodeObject(current)
		if err != nil {
			return err
		}
		for k, v := range patch {
			if k == types.IDField || k == CreatedAtField {
				continue
			}
			doc[k] = v
		}
		doc[UpdatedAtField] = b.timestamp()

		if body, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET body = ? WHERE table_name = ? AND doc_id = ?`,
			string(body), table, params.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("document updated", zap.String("table", table), zap.String("id", params.ID))
	return body, nil
}

// Remove deletes a document and returns it as it was.
func (b *Backend) Remove(ctx context.Context, table string, params types.RemoveParams) (json.RawMessage, error) {
	if params.ID == "" {
		return nil, types.ErrInvalidID
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkTable(table); err != nil {
		return nil, err
	}

	var removed json.RawMessage
	err := b.mutate(ctx, table, func(tx *sql.Tx) error {
		var err error
		if removed, err = getBody(ctx, tx, table, params.ID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM documents WHERE table_name = ? AND doc_id = ?`,
			table, params.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("document removed", zap.String("table", table), zap.String("id", params.ID))
	return removed, nil
}

// List returns the documents matching every filter, in insertion order.
func (b *Backend) List(ctx context.Context, table string, params types.ListParams) ([]json.RawMessage, error) {
	query, args, err := buildListQuery(table, params)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkTable(table); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close()
	return scanBodies(rows)
}

// mutate runs fn in a transaction and rewrites the table's JSONL file from
// the transaction's view before committing. A failed write rolls back; a
// failed commit puts the previous file back. The caller holds b.mu.
func (b *Backend) mutate(ctx context.Context, table string, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT body FROM documents WHERE table_name = ? ORDER BY seq`, table)
	if err != nil {
		return fmt.Errorf("reading %s for persist: %w", table, err)
	}
	records, err := scanBodies(rows)
	rows.Close()
	if err != nil {
		return err
	}

	path := jsonlPath(b.dataDir, table)
	previous, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := writeJSONL(path, records); err != nil {
		return fmt.Errorf("persisting %s: %w", table, err)
	}
	if err := b.commit(tx); err != nil {
		if rerr := writeFileAtomic(path, previous); rerr != nil {
			b.logger.Error("restoring jsonl after failed commit",
				zap.String("table", table), zap.Error(rerr))
		}
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

func (b *Backend) timestamp() string {
	return b.now().UTC().Format(time.RFC3339Nano)
}

func getBody(ctx context.Context, q rowQuerier, table, id string) (json.RawMessage, error) {
	var body string
	err := q.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE table_name = ? AND doc_id = ?`,
		table, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrNotFound, table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", table, id, err)
	}
	return json.RawMessage(body), nil
}

func scanBodies(rows *sql.Rows) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

// decodeObject parses data as a JSON object. Empty data is an empty object.
func decodeObject(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return doc, nil
}

// documentID returns the caller-supplied id, "" when there is none.
func documentID(doc map[string]any) (string, error) {
	raw, ok := doc[types.IDField]
	if !ok || raw == nil {
		return "", nil
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidID, raw)
	}
	return id, nil
}
