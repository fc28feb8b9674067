// Package catalog owns the relational state of the system: the tenant,
// document, and chunk tables in Postgres. It is the backing store for the
// tenant registry and the vector similarity adapter.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Config holds the Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// EmbeddingDim is the dimensionality of chunk embeddings. The chunks
	// table's vector column is created with this width.
	EmbeddingDim int

	// MaxOpenConns caps the connection pool, which doubles as the
	// per-backend in-flight request cap for the vector and graph legs.
	MaxOpenConns int
}

// DefaultEmbeddingDim matches the common small embedding models.
const DefaultEmbeddingDim = 768

// DB is a shared Postgres handle with an attached logger.
type DB struct {
	Instance *sql.DB
	Logger   *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 8
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database))

	return &DB{Instance: db, Logger: logger}, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.Instance.Close()
}
