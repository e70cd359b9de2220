package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/joubun/internal/models"
)

// CatalogEntry is the metadata stored for one indexed article. VectorID is
// the id under which the article's embedding lives in the vector index.
type CatalogEntry struct {
	VectorID       string
	LawID          string
	LawTitle       string
	LawNum         string
	ArticleTitle   string
	ArticleCaption string
	IndexedAt      time.Time
}

// Hit converts the entry into a search hit with the given score.
func (e *CatalogEntry) Hit(score float64) models.SearchHit {
	return models.SearchHit{
		LawID:          e.LawID,
		LawTitle:       e.LawTitle,
		ArticleTitle:   e.ArticleTitle,
		ArticleCaption: e.ArticleCaption,
		Score:          score,
	}
}

// SQLiteStore is the local article catalog. It also serves as a BlobCache
// for deployments without Redis.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		vector_id TEXT PRIMARY KEY,
		law_id TEXT NOT NULL,
		law_title TEXT NOT NULL,
		law_num TEXT,
		article_title TEXT NOT NULL,
		caption TEXT,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_law_id ON articles(law_id);
	CREATE INDEX IF NOT EXISTS idx_articles_law_title ON articles(law_title);

	CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expires_at TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertArticles inserts or replaces catalog entries in a transaction.
func (s *SQLiteStore) UpsertArticles(ctx context.Context, entries []*CatalogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO articles (vector_id, law_id, law_title, law_num, article_title, caption, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		e.IndexedAt = now
		if _, err := stmt.ExecContext(ctx, e.VectorID, e.LawID, e.LawTitle, e.LawNum, e.ArticleTitle, e.ArticleCaption, e.IndexedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetArticle returns the catalog entry for a vector id.
func (s *SQLiteStore) GetArticle(ctx context.Context, vectorID string) (*CatalogEntry, error) {
	var e CatalogEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT vector_id, law_id, law_title, law_num, article_title, caption, indexed_at
		 FROM articles WHERE vector_id = ?`, vectorID,
	).Scan(&e.VectorID, &e.LawID, &e.LawTitle, &e.LawNum, &e.ArticleTitle, &e.ArticleCaption, &e.IndexedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article not found: %s: %w", vectorID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetArticles returns the entries for the given vector ids keyed by id.
// Unknown ids are absent from the result.
func (s *SQLiteStore) GetArticles(ctx context.Context, vectorIDs []string) (map[string]*CatalogEntry, error) {
	out := make(map[string]*CatalogEntry, len(vectorIDs))
	if len(vectorIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vectorIDs)), ",")
	args := make([]any, len(vectorIDs))
	for i, id := range vectorIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_id, law_id, law_title, law_num, article_title, caption, indexed_at
		 FROM articles WHERE vector_id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.VectorID, &e.LawID, &e.LawTitle, &e.LawNum, &e.ArticleTitle, &e.ArticleCaption, &e.IndexedAt); err != nil {
			return nil, err
		}
		out[e.VectorID] = &e
	}
	return out, rows.Err()
}

// DeleteLaw removes all entries of a law.
func (s *SQLiteStore) DeleteLaw(ctx context.Context, lawID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE law_id = ?`, lawID)
	return err
}

// CountArticles returns the number of catalogued articles.
func (s *SQLiteStore) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	return count, err
}

// CountLaws returns the number of distinct laws in the catalog.
func (s *SQLiteStore) CountLaws(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT law_id) FROM articles`).Scan(&count)
	return count, err
}

// GetBlob returns cached bytes for key. Expired entries are reported as misses.
func (s *SQLiteStore) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM blobs WHERE key = ?`, key,
	).Scan(&data, &expires)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires.Valid && time.Now().After(expires.Time) {
		return nil, false, nil
	}
	return data, true, nil
}

// SetBlob stores data under key. A zero ttl never expires.
func (s *SQLiteStore) SetBlob(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blobs (key, data, expires_at) VALUES (?, ?, ?)`,
		key, data, expires,
	)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
