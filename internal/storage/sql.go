package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dialect selects placeholder syntax for the document table.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore keeps documents as rows of a single table. It works with any database/sql
// driver that understands INSERT ... ON CONFLICT (pgx and modernc sqlite both do).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates the documents table if it does not exist.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	s := &SQLStore{db: db, dialect: dialect}

	const ddl = `CREATE TABLE IF NOT EXISTS ocpp_documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("storage: create documents table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, name string) ([]byte, error) {
	query := s.bind(`SELECT body FROM ocpp_documents WHERE name = $1`)

	var body string
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: select %s: %w", name, err)
	}
	return []byte(body), nil
}

func (s *SQLStore) Put(ctx context.Context, name string, body []byte) error {
	query := s.bind(`
		INSERT INTO ocpp_documents (name, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query, name, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("storage: upsert %s: %w", name, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// bind rewrites $n placeholders for drivers that expect ?.
func (s *SQLStore) bind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	out := make([]byte, 0, len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			out = append(out, '?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
