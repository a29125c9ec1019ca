// Package sqlite implements a document backend that keeps one JSONL file per
// table as the source of truth and rebuilds a SQLite database from those
// files on every Attach to answer queries.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

// DBFileName is the query database rebuilt inside the data directory.
const DBFileName = "tablesync.db"

// Backend stores schemaless documents per table. The zero value is not
// usable; construct with NewBackend and call Attach before any operation.
type Backend struct {
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	commit func(tx *sql.Tx) error

	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
	tables   map[string]bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock replaces the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a detached backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  generateUUID,
		commit: (*sql.Tx).Commit,
		tables: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach validates config, creates the data directory and any missing JSONL
// files, rebuilds the query database and loads every configured table.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is derived state; start from scratch every time.
	dbPath := filepath.Join(dataDir, DBFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	names := config.TableNames()
	for _, name := range names {
		if err := ensureJSONL(jsonlPath(dataDir, name)); err != nil {
			db.Close()
			return err
		}
	}
	if err := loadTables(db, dataDir, names, b.logger); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.tables = make(map[string]bool, len(names))
	for _, name := range names {
		b.tables[name] = true
	}
	b.attached = true

	b.logger.Info("backend attached",
		zap.String("data_dir", dataDir),
		zap.Strings("tables", names))
	return nil
}

// Detach closes the query database. Operations fail with types.ErrDetached
// until the next Attach. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = make(map[string]bool)
	b.logger.Info("backend detached", zap.String("data_dir", b.dataDir))
	return nil
}

// Attached reports whether the backend is attached.
func (b *Backend) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached
}

// Tables returns the configured table names in configuration order.
func (b *Backend) Tables() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil
	}
	return b.config.TableNames()
}

// DataDir returns the directory holding the JSONL files.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// checkTable must be called with b.mu held.
func (b *Backend) checkTable(table string) error {
	if !b.attached {
		return types.ErrDetached
	}
	if !b.tables[table] {
		return fmt.Errorf("%w: %q", types.ErrTableNotFound, table)
	}
	return nil
}

// generateUUID returns a UUID v7, falling back to v4.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

var _ types.DocumentStore = (*Backend)(nil)
