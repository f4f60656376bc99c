// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finqa-agent/internal/common/config"

	_ "github.com/lib/pq"
)

// AnswerAuditSchema creates the audit table written by record-answer.
const AnswerAuditSchema = `
CREATE TABLE IF NOT EXISTS answer_audit (
	request_id  UUID PRIMARY KEY,
	question    TEXT NOT NULL,
	query_type  VARCHAR(32),
	complexity  DOUBLE PRECISION,
	sub_queries JSONB NOT NULL DEFAULT '[]',
	answer      TEXT,
	confidence  DOUBLE PRECISION,
	degraded    BOOLEAN NOT NULL DEFAULT FALSE,
	state       VARCHAR(16) NOT NULL,
	error_code  VARCHAR(64),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_answer_audit_created_at ON answer_audit (created_at DESC);`

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Migrate applies the audit schema. It is idempotent.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, AnswerAuditSchema); err != nil {
		return fmt.Errorf("apply answer_audit schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
