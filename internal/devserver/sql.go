package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLDocuments stores documents as JSON text in one SQL table
type SQLDocuments struct {
	db       *sql.DB
	postgres bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	app_id TEXT NOT NULL,
	table_name TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (app_id, table_name, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_table ON documents(app_id, table_name, seq);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq BIGSERIAL PRIMARY KEY,
	app_id TEXT NOT NULL,
	table_name TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (app_id, table_name, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_table ON documents(app_id, table_name, seq);
`

// NewSQLiteDocuments opens (or creates) a SQLite database at path
func NewSQLiteDocuments(path string) (*SQLDocuments, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer for SQLite to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLDocuments{db: db}, nil
}

// NewPostgresDocuments connects to PostgreSQL with dsn
func NewPostgresDocuments(dsn string) (*SQLDocuments, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLDocuments{db: db, postgres: true}, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLDocuments) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDocuments) Put(ctx context.Context, appID, table string, doc Document) (Document, bool, error) {
	doc = doc.Clone()
	created := doc.ID() == ""
	if created {
		doc["id"] = NewID()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal document: %w", err)
	}
	now := time.Now().UTC()

	if created {
		_, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO documents (app_id, table_name, id, body, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`), appID, table, doc.ID(), string(body), now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to insert document: %w", err)
		}
		return doc, true, nil
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE documents SET body = ?, updated_at = ?
		WHERE app_id = ? AND table_name = ? AND id = ?
	`), string(body), now, appID, table, doc.ID())
	if err != nil {
		return nil, false, fmt.Errorf("failed to update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return nil, false, ErrDocumentNotFound
	}
	return doc, false, nil
}

func (s *SQLDocuments) Query(ctx context.Context, appID, table string, filters map[string]string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT body FROM documents
		WHERE app_id = ? AND table_name = ?
		ORDER BY seq
	`), appID, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := DecodeDocument([]byte(body))
		if err != nil {
			return nil, err
		}
		if doc.Matches(filters) {
			out = append(out, doc)
		}
	}
	return out, rows.Err()
}

// Close closes the database connection
func (s *SQLDocuments) Close() error {
	return s.db.Close()
}
