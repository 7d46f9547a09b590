package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/explainee/internal/logger"
)

// PostgresCache keeps definitions and analyzed articles in PostgreSQL.
type PostgresCache struct {
	db       *sql.DB
	ttlHours int
}

// NewPostgresCache creates a new PostgreSQL cache instance
func NewPostgresCache(ctx context.Context, connectionString string, ttlHours int) (*PostgresCache, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cache := &PostgresCache{
		db:       db,
		ttlHours: ttlHours,
	}

	if err := cache.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("PostgreSQL cache connected")
	return cache, nil
}

// initSchema creates the necessary tables if they don't exist
func (pc *PostgresCache) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS glossary_definitions (
		id SERIAL PRIMARY KEY,
		term_key TEXT UNIQUE NOT NULL,
		term TEXT NOT NULL,
		definition TEXT NOT NULL,
		stored_at TIMESTAMP NOT NULL DEFAULT NOW(),
		use_count INTEGER DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_glossary_definitions_stored_at ON glossary_definitions(stored_at);

	CREATE TABLE IF NOT EXISTS analyzed_articles (
		id SERIAL PRIMARY KEY,
		hash VARCHAR(64) UNIQUE NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		source VARCHAR(255),
		language VARCHAR(16),
		analyzed_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_analyzed_articles_analyzed_at ON analyzed_articles(analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_analyzed_articles_link ON analyzed_articles(link);
	`

	if _, err := pc.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debug("Database schema initialized")
	return nil
}

func (pc *PostgresCache) cutoff() time.Time {
	return time.Now().Add(-time.Duration(pc.ttlHours) * time.Hour)
}

// GetDefinition returns a stored definition still within TTL.
func (pc *PostgresCache) GetDefinition(ctx context.Context, term string) (string, bool, error) {
	var def string
	query := `
		UPDATE glossary_definitions SET use_count = use_count + 1
		WHERE term_key = $1 AND stored_at > $2
		RETURNING definition
	`
	err := pc.db.QueryRowContext(ctx, query, termKey(term), pc.cutoff()).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, true, nil
}

// PutDefinition inserts or refreshes a definition.
func (pc *PostgresCache) PutDefinition(ctx context.Context, term, definition string) error {
	query := `
		INSERT INTO glossary_definitions (term_key, term, definition, stored_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (term_key) DO UPDATE SET
			definition = EXCLUDED.definition,
			stored_at = NOW()
	`
	if _, err := pc.db.ExecContext(ctx, query, termKey(term), term, definition); err != nil {
		return fmt.Errorf("failed to store definition: %w", err)
	}
	return nil
}

// IsAnalyzed checks if an article hash was recorded within TTL.
func (pc *PostgresCache) IsAnalyzed(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM analyzed_articles WHERE hash = $1 AND analyzed_at > $2)`
	if err := pc.db.QueryRowContext(ctx, query, hash, pc.cutoff()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return exists, nil
}

// MarkAnalyzed records an article, refreshing the timestamp on conflict.
func (pc *PostgresCache) MarkAnalyzed(ctx context.Context, item AnalyzedItem) error {
	query := `
		INSERT INTO analyzed_articles (hash, title, link, source, language, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (hash) DO UPDATE SET analyzed_at = NOW()
	`
	if _, err := pc.db.ExecContext(ctx, query, item.Hash, item.Title, item.Link, item.Source, item.Language); err != nil {
		return fmt.Errorf("failed to mark as analyzed: %w", err)
	}
	return nil
}

// Cleanup removes expired rows.
func (pc *PostgresCache) Cleanup(ctx context.Context) error {
	cutoff := pc.cutoff()
	var removed int64
	for _, query := range []string{
		`DELETE FROM glossary_definitions WHERE stored_at < $1`,
		`DELETE FROM analyzed_articles WHERE analyzed_at < $1`,
	} {
		result, err := pc.db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup: %w", err)
		}
		rows, _ := result.RowsAffected()
		removed += rows
	}

	if removed > 0 {
		logger.Info("Cleaned up old records from database", "rows", removed)
	}
	return nil
}

// GetStats returns cache statistics
func (pc *PostgresCache) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for key, query := range map[string]string{
		"definitions": `SELECT COUNT(*) FROM glossary_definitions`,
		"analyzed":    `SELECT COUNT(*) FROM analyzed_articles`,
	} {
		var n int
		if err := pc.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}
	return stats, nil
}

// GetRecentArticles returns the most recently analyzed articles.
func (pc *PostgresCache) GetRecentArticles(ctx context.Context, limit int) ([]AnalyzedItem, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT hash, title, link, source, language, analyzed_at
		FROM analyzed_articles
		ORDER BY analyzed_at DESC
		LIMIT $1
	`
	rows, err := pc.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AnalyzedItem
	for rows.Next() {
		var item AnalyzedItem
		var source, language sql.NullString
		if err := rows.Scan(&item.Hash, &item.Title, &item.Link, &source, &language, &item.AnalyzedAt); err != nil {
			logger.Warn("Error scanning row", "error", err)
			continue
		}
		item.Source = source.String
		item.Language = language.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the database connection
func (pc *PostgresCache) Close() error {
	if pc.db != nil {
		return pc.db.Close()
	}
	return nil
}
