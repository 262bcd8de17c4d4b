package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strongdm/paramref/internal/paramref"
)

// Store persists the catalog.
type Store interface {
	List(ctx context.Context) ([]paramref.Parameter, error)
	// Put writes p. A non-empty oldName is removed in the same transaction.
	Put(ctx context.Context, oldName string, p paramref.Parameter) error
	Delete(ctx context.Context, name string) error
	ReplaceAll(ctx context.Context, params []paramref.Parameter) error
	Close() error
}

// SQLiteStore keeps the catalog in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path, creating parent
// directories when needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLiteStore(db)
}

// NewSQLiteInMemory creates an in-memory database.
func NewSQLiteInMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSQLiteStore(db)
}

func newSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS parameters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			data_type TEXT NOT NULL,
			default_value TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_parameters_active_name
		ON parameters(active, name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// List returns every stored parameter ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]paramref.Parameter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, data_type, default_value, active
		FROM parameters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var out []paramref.Parameter
	for rows.Next() {
		var (
			p        paramref.Parameter
			dataType string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &dataType, &p.DefaultValue, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.DataType = paramref.DataType(dataType)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Put inserts or updates p, keyed by its ID.
func (s *SQLiteStore) Put(ctx context.Context, oldName string, p paramref.Parameter) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if oldName != "" && oldName != p.Name {
			if _, err := tx.ExecContext(ctx, `DELETE FROM parameters WHERE name = ? AND id <> ?`, oldName, p.ID); err != nil {
				return err
			}
		}
		return upsertParameter(ctx, tx, p)
	})
}

// Delete removes the parameter called name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM parameters WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete parameter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the table contents for params in one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, params []paramref.Parameter) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM parameters`); err != nil {
			return err
		}
		for _, p := range params {
			if err := upsertParameter(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertParameter(ctx context.Context, tx *sql.Tx, p paramref.Parameter) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO parameters (id, name, description, data_type, default_value, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			data_type = excluded.data_type,
			default_value = excluded.default_value,
			active = excluded.active,
			updated_at = datetime('now')`,
		p.ID, p.Name, p.Description, string(p.DataType), p.DefaultValue, p.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert parameter %s: %w", p.Name, err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
