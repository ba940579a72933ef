package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sheets (
	name   TEXT PRIMARY KEY,
	header TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cells (
	sheet TEXT    NOT NULL REFERENCES sheets(name),
	row   INTEGER NOT NULL,
	cells TEXT    NOT NULL,
	PRIMARY KEY (sheet, row)
);`

// SQLite is a workbook stored in a SQLite database. Each data row is kept as
// a JSON array of cells so rows may have any width, like a spreadsheet.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at path
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between our own statements
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Table(ctx context.Context, name string) (Table, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sheets WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up table %s: %w", name, err)
	}
	return &sqliteTable{db: s.db, name: name}, nil
}

func (s *SQLite) EnsureTable(ctx context.Context, name string, header []string) (Table, error) {
	encoded, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO sheets (name, header) VALUES (?, ?)`, name, string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return &sqliteTable{db: s.db, name: name}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteTable struct {
	db   *sql.DB
	name string
}

func (t *sqliteTable) Name() string {
	return t.name
}

func (t *sqliteTable) Header(ctx context.Context) ([]string, error) {
	var encoded string
	err := t.db.QueryRowContext(ctx, `SELECT header FROM sheets WHERE name = ?`, t.name).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, t.name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return decodeCells(encoded)
}

func (t *sqliteTable) LoadRows(ctx context.Context) ([][]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT cells FROM cells WHERE sheet = ? ORDER BY row`, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows: %w", err)
	}
	defer rows.Close()

	result := make([][]string, 0)
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		cells, err := decodeCells(encoded)
		if err != nil {
			return nil, err
		}
		result = append(result, cells)
	}
	return result, rows.Err()
}

func (t *sqliteTable) WriteRow(ctx context.Context, row, col int, values []string) error {
	if row < 1 || col < 0 {
		return fmt.Errorf("%w: %s row %d", ErrRowOutOfRange, t.name, row)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var encoded string
	err = tx.QueryRowContext(ctx, `SELECT cells FROM cells WHERE sheet = ? AND row = ?`, t.name, row).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s row %d", ErrRowOutOfRange, t.name, row)
	}
	if err != nil {
		return fmt.Errorf("failed to read row %d: %w", row, err)
	}

	cells, err := decodeCells(encoded)
	if err != nil {
		return err
	}
	merged, err := json.Marshal(mergeCells(cells, col, values))
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE cells SET cells = ? WHERE sheet = ? AND row = ?`, string(merged), t.name, row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return tx.Commit()
}

func (t *sqliteTable) AppendRow(ctx context.Context, values []string) error {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	_, err = t.db.ExecContext(ctx,
		`INSERT INTO cells (sheet, row, cells)
		 SELECT ?, COALESCE(MAX(row), 0) + 1, ? FROM cells WHERE sheet = ?`,
		t.name, string(encoded), t.name)
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

func decodeCells(encoded string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cells: %w", err)
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}
