package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrDocumentNotFound is returned when a document does not exist
var ErrDocumentNotFound = errors.New("document not found")

// Config holds PostgreSQL connection configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client is a document-style CRUD wrapper over PostgreSQL. Documents are
// free-form JSON stored per collection; services that need richer access
// talk to the database directly.
type Client struct {
	db     *sqlx.DB
	config *Config
	logger *slog.Logger
}

// NewClient creates a new database client and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		config.Port,
		config.User,
		config.Password,
		config.Database,
		config.SSLMode,
	)

	logger.Info("Connecting to PostgreSQL",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.String("database", config.Database),
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping PostgreSQL",
			slog.Any("error", err),
		)
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL")

	return &Client{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	c.logger.Info("Closing PostgreSQL connection")

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close PostgreSQL connection",
				slog.Any("error", err),
			)
			return err
		}
	}
	return nil
}

// EnsureSchema creates the documents table if it does not exist
func (c *Client) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// InsertOne stores a document in a collection and returns its id. An id
// is generated when the document does not carry an "_id" field.
func (c *Client) InsertOne(ctx context.Context, collection string, document map[string]any) (string, error) {
	id, _ := document["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	data, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := c.db.ExecContext(ctx, query, collection, id, data); err != nil {
		return "", fmt.Errorf("failed to insert document into %q: %w", collection, err)
	}
	return id, nil
}

// FindOne returns the document with the given id, or ErrDocumentNotFound
func (c *Client) FindOne(ctx context.Context, collection, id string) (map[string]any, error) {
	var data []byte
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	err := c.db.QueryRowxContext(ctx, query, collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document in %q: %w", collection, err)
	}

	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return document, nil
}

// FindMany returns up to limit documents from a collection, skipping the
// first skip rows in insertion order. A limit of zero means no limit.
func (c *Client) FindMany(ctx context.Context, collection string, skip, limit int) ([]map[string]any, error) {
	query := `SELECT data FROM documents WHERE collection = $1 ORDER BY created_at OFFSET $2`
	args := []any{collection, skip}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %q: %w", collection, err)
	}
	defer rows.Close()

	var documents []map[string]any
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		var document map[string]any
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		documents = append(documents, document)
	}
	return documents, rows.Err()
}

// UpdateOne merges fields into an existing document and returns the
// number of documents updated (zero or one)
func (c *Client) UpdateOne(ctx context.Context, collection, id string, update map[string]any) (int64, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal update: %w", err)
	}

	query := `
		UPDATE documents
		SET data = data || $3, updated_at = now()
		WHERE collection = $1 AND id = $2
	`
	res, err := c.db.ExecContext(ctx, query, collection, id, data)
	if err != nil {
		return 0, fmt.Errorf("failed to update document in %q: %w", collection, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// DeleteOne removes a document and returns the number deleted (zero or one)
func (c *Client) DeleteOne(ctx context.Context, collection, id string) (int64, error) {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := c.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document from %q: %w", collection, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of documents in a collection
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	query := `SELECT count(*) FROM documents WHERE collection = $1`

	if err := c.db.GetContext(ctx, &count, query, collection); err != nil {
		return 0, fmt.Errorf("failed to count collection %q: %w", collection, err)
	}
	return count, nil
}

// HealthCheck performs a health check on the database
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
