package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/trustbites/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS restaurants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL DEFAULT 0,
		lng REAL NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		total_reviews INTEGER NOT NULL DEFAULT 0,
		price_level INTEGER,
		cuisine TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		restaurant_id TEXT NOT NULL,
		review_text TEXT NOT NULL,
		rating INTEGER NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		author_name TEXT NOT NULL DEFAULT 'Anonymous',
		review_date INTEGER NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		review_hash TEXT NOT NULL,
		classification TEXT NOT NULL DEFAULT '',
		is_fake INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		reasons TEXT NOT NULL DEFAULT '[]',
		sentiment TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		ai_model TEXT NOT NULL DEFAULT '',
		ai_version TEXT NOT NULL DEFAULT '',
		analyzed_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status);
	CREATE INDEX IF NOT EXISTS idx_reviews_hash ON reviews(review_hash);
	CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(review_date);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		review_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		review_hash TEXT NOT NULL UNIQUE,
		classification TEXT NOT NULL,
		is_fake INTEGER NOT NULL,
		confidence REAL NOT NULL,
		reasons TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		language_confidence REAL NOT NULL,
		explanation TEXT NOT NULL,
		ai_model TEXT NOT NULL,
		ai_version TEXT NOT NULL,
		analyzed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_restaurant ON analyses(restaurant_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_review ON analyses(review_id);

	CREATE TABLE IF NOT EXISTS business_owners (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		owner_name TEXT NOT NULL,
		business_name TEXT NOT NULL,
		restaurant_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}
