package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// loadTables reads every table's JSONL file into the documents relation in
// a single transaction: either all tables load or the database stays empty.
// Lines that are not JSON objects, carry no string id, or repeat an id
// already loaded are skipped.
func loadTables(db *sql.DB, dataDir string, tables []string, logger *zap.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO documents (table_name, doc_id, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing load insert: %w", err)
	}
	defer stmt.Close()

	for _, table := range tables {
		records, err := readJSONL(jsonlPath(dataDir, table))
		if err != nil {
			return err
		}
		loaded := 0
		for _, rec := range records {
			var doc map[string]any
			if err := json.Unmarshal(rec, &doc); err != nil {
				continue
			}
			id, _ := doc[types.IDField].(string)
			if id == "" {
				continue
			}
			res, err := stmt.Exec(table, id, string(rec))
			if err != nil {
				return fmt.Errorf("loading %s: %w", table, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				loaded++
			}
		}
		logger.Info("table loaded",
			zap.String("table", table),
			zap.Int("records", loaded),
			zap.Int("skipped", len(records)-loaded))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}
