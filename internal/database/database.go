// Package database provides the optional Postgres activity log. The service
// is fully functional without it; when disabled, no activity is recorded.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Database wraps the Postgres connection for the activity log.
type Database struct {
	db *sql.DB
}

// New opens a Postgres connection and initializes the schema.
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB exposes the raw handle for health checks.
func (d *Database) DB() *sql.DB {
	return d.db
}

func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_activity (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		model TEXT,
		success BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS task_activity (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_chat_activity_user ON chat_activity (user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_task_activity_session ON task_activity (session_id, created_at);
	`

	_, err := d.db.Exec(schema)
	return err
}
