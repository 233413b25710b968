package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crboard/pkg/platform/sentinel"
)

type sqlQueries struct {
	get    string
	insert string
	update string
}

var postgresQueries = sqlQueries{
	get: `SELECT doc, version FROM registry_document WHERE id = 1`,
	insert: `INSERT INTO registry_document (id, doc, version, updated_at)
		VALUES (1, $1, 1, now())
		ON CONFLICT (id) DO NOTHING`,
	update: `UPDATE registry_document
		SET doc = $1, version = version + 1, updated_at = now()
		WHERE id = 1 AND version = $2`,
}

var sqliteQueries = sqlQueries{
	get: `SELECT doc, version FROM registry_document WHERE id = 1`,
	insert: `INSERT OR IGNORE INTO registry_document (id, doc, version, updated_at)
		VALUES (1, ?, 1, CURRENT_TIMESTAMP)`,
	update: `UPDATE registry_document
		SET doc = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND version = ?`,
}

// SQLBackend stores the document as the single row of registry_document.
// The version column is the compare-and-swap token: updates match on it and
// a zero row count means another writer got there first.
type SQLBackend struct {
	db      *sql.DB
	queries sqlQueries
	name    string
}

// NewPostgres constructs a PostgreSQL-backed document backend. The schema is
// created by the postgres migrations.
func NewPostgres(db *sql.DB) *SQLBackend {
	return &SQLBackend{db: db, queries: postgresQueries, name: "postgres"}
}

// NewSQLite constructs a SQLite-backed document backend. The schema is
// created by the sqlite migrations.
func NewSQLite(db *sql.DB) *SQLBackend {
	return &SQLBackend{db: db, queries: sqliteQueries, name: "sqlite"}
}

func (s *SQLBackend) Get(ctx context.Context) ([]byte, int64, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, s.queries.get).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s get document: %w", s.name, err)
	}
	return doc, version, nil
}

func (s *SQLBackend) Put(ctx context.Context, doc []byte, expected int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, s.queries.insert, string(doc))
	} else {
		res, err = s.db.ExecContext(ctx, s.queries.update, string(doc), expected)
	}
	if err != nil {
		return 0, fmt.Errorf("%s put document: %w", s.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s put document: %w", s.name, err)
	}
	if n == 0 {
		return 0, sentinel.ErrConflict
	}
	return expected + 1, nil
}
