// Package sheet provides the worksheet-style row store backing the question
// banks. A bank is an ordered list of rows, each row an ordered list of
// string cells; by convention the first row is the header. Rows are only
// ever appended or cleared wholesale, mirroring the shared-spreadsheet
// collaborator this replaces.
package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS sheet_rows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bank TEXT NOT NULL,
	cells TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sheet_rows_bank ON sheet_rows(bank);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS sheet_rows (
	id BIGSERIAL PRIMARY KEY,
	bank TEXT NOT NULL,
	cells TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sheet_rows_bank ON sheet_rows(bank);
`

// Store is a row-oriented store over database/sql.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open opens the store and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "fireprep.db"
		}
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/fireprep?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// LoadAll returns every row of a bank in insertion order.
// A bank that was never written to yields no rows and no error.
func (s *Store) LoadAll(ctx context.Context, bank string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT cells FROM sheet_rows WHERE bank = %s ORDER BY id`, s.placeholder(1)),
		bank,
	)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("decode row cells: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// Append writes exactly one row to the end of a bank. The write is atomic
// at row level; concurrent appends from different sessions may interleave
// but never produce partial rows.
func (s *Store) Append(ctx context.Context, bank string, cells []string) error {
	raw, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encode row cells: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO sheet_rows (bank, cells) VALUES (%s, %s)`,
			s.placeholder(1), s.placeholder(2)),
		bank, string(raw),
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// Clear destructively removes every row of a bank, header included.
func (s *Store) Clear(ctx context.Context, bank string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM sheet_rows WHERE bank = %s`, s.placeholder(1)),
		bank,
	)
	if err != nil {
		return fmt.Errorf("clear bank: %w", err)
	}
	return nil
}

// RowCount returns the number of rows in a bank, header included.
func (s *Store) RowCount(ctx context.Context, bank string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM sheet_rows WHERE bank = %s`, s.placeholder(1)),
		bank,
	).Scan(&count)
	return count, err
}
