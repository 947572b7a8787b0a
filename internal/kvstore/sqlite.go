// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Backs both storage areas with one database file and automatic schema creation

package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "kvstore")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_local (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS kv_sync (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// tableFor maps an area to its backing table name.
func tableFor(area Area) (string, error) {
	switch area {
	case AreaLocal:
		return "kv_local", nil
	case AreaSync:
		return "kv_sync", nil
	default:
		return "", fmt.Errorf("unknown storage area %q", area)
	}
}

// Get returns the document stored under key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, area Area, key string) ([]byte, error) {
	table, err := tableFor(area)
	if err != nil {
		return nil, err
	}

	var value []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", table)
	err = s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s/%s: %w", area, key, err)
	}
	return value, nil
}

// Set writes the whole document under key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, area Area, key string, value []byte) error {
	table, err := tableFor(area)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, table)

	_, err = s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", area, key, err)
	}

	s.logger.Debug("wrote document", "area", area, "key", key, "bytes", len(value))
	return nil
}

// Delete removes the document under key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, area Area, key string) error {
	table, err := tableFor(area)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", area, key, err)
	}
	return nil
}

// Keys lists all keys in the area with the given prefix, sorted ascending.
func (s *SQLiteStore) Keys(ctx context.Context, area Area, prefix string) ([]string, error) {
	table, err := tableFor(area)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT key FROM %s WHERE key LIKE ? ESCAPE '\\' ORDER BY key", table)
	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("listing keys in %s: %w", area, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating key rows: %w", err)
	}
	return keys, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
