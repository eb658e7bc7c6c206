// Package store provides a SQLite-backed key-value store for local client
// state such as favorites, downloads and the signed-in user.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the state database.
	DefaultDBPath = "data/cloudplayer.db"
)

// ErrNotOpen is returned when the database is used before Open or after Close.
var ErrNotOpen = errors.New("database not open")

// DB is a JSON-valued key-value store on SQLite.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new database instance. Call Open before use.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{path: path}
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("State database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	if _, err := d.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	`); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	current, err := d.getMeta("schema_version")
	if err != nil {
		return err
	}
	if current != "" && current != CurrentSchemaVersion {
		log.Info().
			Str("current", current).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating state schema")
	}
	return d.setMeta("schema_version", CurrentSchemaVersion)
}

func (d *DB) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SchemaVersion returns the stored schema version.
func (d *DB) SchemaVersion() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return "", ErrNotOpen
	}
	return d.getMeta("schema_version")
}

// Get decodes the JSON value stored under key into v.
// It reports false when the key is absent.
func (d *DB) Get(key string, v any) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return false, ErrNotOpen
	}

	var raw string
	err := d.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON under key, replacing any previous value.
func (d *DB) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	now := time.Now().Format(time.RFC3339)
	_, err = d.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}

	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Stored value")
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (d *DB) Delete(keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Keys returns all stored keys in lexical order.
func (d *DB) Keys() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := d.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
