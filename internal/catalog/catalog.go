// Package catalog keeps a SQLite record of every ingested document so the CLI
// can list, resolve and remove cached documents by name or hash prefix.
// The cache directory stays the source of truth for bundles; the catalog is
// an index over it and may be rebuilt or lost without affecting retrieval.
package catalog

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/docrag/internal/errors"
)

const schemaVersion = 1

// minPrefix is the shortest hash prefix Resolve accepts.
const minPrefix = 6

// Record describes one ingested document.
type Record struct {
	Hash         string    `json:"hash"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	Dimensions   int       `json:"dimensions"`
	IndexKind    string    `json:"index_kind"`
	Chunks       int       `json:"chunks"`
	Degraded     int       `json:"degraded"`
	CacheDir     string    `json:"cache_dir"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Catalog is a SQLite-backed document catalog.
type Catalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks an existing database before it is opened for writing.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens or creates the catalog at path. An empty path or ":memory:"
// gives an in-memory catalog. A corrupt database file is removed and recreated.
func Open(path string) (*Catalog, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, catalogError("failed to create catalog directory", err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("catalog_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, catalogError("catalog corrupted and cannot be removed", err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("catalog_cleared", slog.String("path", path))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, catalogError("failed to open catalog", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, catalogError("failed to set pragma", err)
		}
	}

	c := &Catalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, catalogError("failed to initialize catalog schema", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		hash          TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		model         TEXT NOT NULL DEFAULT '',
		dimensions    INTEGER NOT NULL DEFAULT 0,
		index_kind    TEXT NOT NULL DEFAULT '',
		chunks        INTEGER NOT NULL DEFAULT 0,
		degraded      INTEGER NOT NULL DEFAULT 0,
		cache_dir     TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return err
	}
	_, err := c.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// Path returns the database path ("" for in-memory catalogs).
func (c *Catalog) Path() string { return c.path }

// Upsert inserts or replaces the record for r.Hash.
func (c *Catalog) Upsert(ctx context.Context, r Record) error {
	if r.Hash == "" {
		return errors.ValidationError("catalog record requires a hash", nil)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastAccessed.IsZero() {
		r.LastAccessed = now
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return catalogError("catalog is closed", nil)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (hash, name, model, dimensions, index_kind, chunks, degraded, cache_dir, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			dimensions = excluded.dimensions,
			index_kind = excluded.index_kind,
			chunks = excluded.chunks,
			degraded = excluded.degraded,
			cache_dir = excluded.cache_dir,
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed`,
		r.Hash, r.Name, r.Model, r.Dimensions, r.IndexKind, r.Chunks, r.Degraded, r.CacheDir,
		r.CreatedAt.UnixNano(), r.LastAccessed.UnixNano())
	if err != nil {
		return catalogError("failed to upsert catalog record", err)
	}
	return nil
}

const selectColumns = `SELECT hash, name, model, dimensions, index_kind, chunks, degraded, cache_dir, created_at, last_accessed FROM documents`

// Get returns the record for hash, or ERR_404_DOCUMENT_NOT_FOUND.
func (c *Catalog) Get(ctx context.Context, hash string) (Record, error) {
	records, err := c.query(ctx, selectColumns+` WHERE hash = ?`, hash)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, notFound(hash)
	}
	return records[0], nil
}

// FindByName returns records whose name or base name equals name, most recently used first.
func (c *Catalog) FindByName(ctx context.Context, name string) ([]Record, error) {
	records, err := c.query(ctx, selectColumns+` ORDER BY last_accessed DESC, hash`)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.Name == name || filepath.Base(r.Name) == name {
			out = append(out, r)
		}
	}
	return out, nil
}

// Resolve finds a record by full hash, unique hash prefix or name.
func (c *Catalog) Resolve(ctx context.Context, ref string) (Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Record{}, errors.ValidationError("empty document reference", nil)
	}

	if isHex(ref) && len(ref) >= minPrefix {
		records, err := c.query(ctx, selectColumns+` WHERE hash LIKE ? ORDER BY hash`, strings.ToLower(ref)+"%")
		if err != nil {
			return Record{}, err
		}
		switch len(records) {
		case 0:
		case 1:
			return records[0], nil
		default:
			return Record{}, errors.ValidationError(
				fmt.Sprintf("hash prefix %q matches %d documents", ref, len(records)), nil).
				WithSuggestion("Use a longer prefix or the full hash.")
		}
	}

	byName, err := c.FindByName(ctx, ref)
	if err != nil {
		return Record{}, err
	}
	if len(byName) > 0 {
		return byName[0], nil
	}
	return Record{}, notFound(ref)
}

// List returns all records, most recently used first.
func (c *Catalog) List(ctx context.Context) ([]Record, error) {
	return c.query(ctx, selectColumns+` ORDER BY last_accessed DESC, hash`)
}

// Touch updates last_accessed for hash.
func (c *Catalog) Touch(ctx context.Context, hash string) error {
	return c.exec(ctx, `UPDATE documents SET last_accessed = ? WHERE hash = ?`, time.Now().UTC().UnixNano(), hash)
}

// Delete removes the record for hash. Deleting a missing record is not an error.
func (c *Catalog) Delete(ctx context.Context, hash string) error {
	return c.exec(ctx, `DELETE FROM documents WHERE hash = ?`, hash)
}

// Close closes the database. It is idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *Catalog) exec(ctx context.Context, stmt string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return catalogError("catalog is closed", nil)
	}
	if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
		return catalogError("catalog update failed", err)
	}
	return nil
}

func (c *Catalog) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, catalogError("catalog is closed", nil)
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, catalogError("catalog query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			created, accessed int64
		)
		if err := rows.Scan(&r.Hash, &r.Name, &r.Model, &r.Dimensions, &r.IndexKind,
			&r.Chunks, &r.Degraded, &r.CacheDir, &created, &accessed); err != nil {
			return nil, catalogError("catalog scan failed", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		r.LastAccessed = time.Unix(0, accessed).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, catalogError("catalog query failed", err)
	}
	return out, nil
}

func isHex(s string) bool {
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func notFound(ref string) error {
	return errors.New(errors.ErrCodeDocumentNotFound, fmt.Sprintf("no document matches %q", ref), nil).
		WithSuggestion("Run 'docrag ls' to see cached documents.")
}

func catalogError(msg string, err error) error {
	return errors.New(errors.ErrCodeCatalog, msg, err)
}
