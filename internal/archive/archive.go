// Package archive provides an optional SQLite-backed mirror of ingested
// article chunks. The vector store remains the retrieval source of truth;
// the archive exists for offline inspection and for rebuilding the index
// without re-fetching feeds.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/newschat-go/internal/rag"
)

// SQLiteArchive mirrors article chunks into a local SQLite database. It
// implements ingestion.Mirror.
type SQLiteArchive struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the article archive database.
// It resolves to ~/.newschat/articles.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("archive: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".newschat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("archive: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "articles.db"), nil
}

// Open opens (or creates) a SQLiteArchive at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteArchive, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// migrate creates the schema if it does not already exist.
func (a *SQLiteArchive) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS articles (
    id           TEXT    PRIMARY KEY,  -- deterministic chunk UUID
    title        TEXT    NOT NULL,
    body         TEXT    NOT NULL,
    source_url   TEXT    NOT NULL,
    source_name  TEXT    NOT NULL,
    category     TEXT    NOT NULL,
    published_at INTEGER NOT NULL,  -- Unix timestamp (seconds)
    archived_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_category_published
    ON articles (category, published_at);
`
	if _, err := a.db.Exec(ddl); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// SaveChunks upserts the chunks into the archive. Re-ingested articles keep
// their chunk ID, so the row is replaced rather than duplicated.
func (a *SQLiteArchive) SaveChunks(ctx context.Context, chunks []rag.Chunk) error {
	const q = `
INSERT INTO articles (id, title, body, source_url, source_name, category, published_at, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title        = excluded.title,
    body         = excluded.body,
    source_url   = excluded.source_url,
    source_name  = excluded.source_name,
    category     = excluded.category,
    published_at = excluded.published_at,
    archived_at  = excluded.archived_at`

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, q,
			c.ID, c.Title, c.Body, c.SourceURL, c.SourceName,
			string(c.Category), c.PublishedAt.Unix(), now,
		); err != nil {
			return fmt.Errorf("archive: save %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// Recent returns the most recently published chunks for a category, newest
// first. An empty category returns chunks across all categories.
func (a *SQLiteArchive) Recent(ctx context.Context, category rag.Category, n int) ([]rag.Chunk, error) {
	const base = `
SELECT id, title, body, source_url, source_name, category, published_at
FROM   articles`

	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = a.db.QueryContext(ctx, base+` ORDER BY published_at DESC LIMIT ?`, n)
	} else {
		rows, err = a.db.QueryContext(ctx,
			base+` WHERE category = ? ORDER BY published_at DESC LIMIT ?`, string(category), n)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var (
			c   rag.Chunk
			cat string
			ts  int64
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Body, &c.SourceURL, &c.SourceName, &cat, &ts); err != nil {
			return nil, fmt.Errorf("archive: recent scan: %w", err)
		}
		c.Category = rag.Category(cat)
		c.PublishedAt = time.Unix(ts, 0).UTC()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: recent rows: %w", err)
	}
	return chunks, nil
}

// Count returns the number of archived chunks.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (a *SQLiteArchive) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	return nil
}
