package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
)

// Postgres stores values in the eva_tables.kv table
type Postgres struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewPostgres creates a new database connection.
// An empty dsn is built from the DB_* environment variables.
func NewPostgres(dsn string, logger *slog.Logger) (*Postgres, error) {
	if dsn == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "eva_tables")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "eva_tables")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{conn: conn, logger: logger}
	if err := p.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return p, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// initSchema creates the kv table if it doesn't exist
func (p *Postgres) initSchema() error {
	// The schema usually exists already; lacking CREATE permission is not fatal
	if _, err := p.conn.Exec(`CREATE SCHEMA IF NOT EXISTS eva_tables`); err != nil {
		p.logger.Warn("could not create schema, assuming it exists", "error", err)
	}

	_, err := p.conn.Exec(`
		CREATE TABLE IF NOT EXISTS eva_tables.kv (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}

	p.logger.Info("postgres store initialized")
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.conn.QueryRowContext(ctx, `SELECT value FROM eva_tables.kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.conn.ExecContext(ctx, `
		INSERT INTO eva_tables.kv (key, value, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.conn.Close()
}
