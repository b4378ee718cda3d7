package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
)

// RecordStore is the full persistence surface: the tracking write path plus
// the windowed and recency reads the statistics engine consumes.
type RecordStore interface {
	analytics.RecordWriter

	// Windowed reads, ascending by creation time.
	CountPageViews(ctx context.Context, since time.Time) (int, error)
	QueryPageViews(ctx context.Context, since time.Time) ([]*analytics.PageViewRecord, error)
	QueryEvents(ctx context.Context, since time.Time) ([]*analytics.EventRecord, error)

	// Recency reads, descending by creation time.
	RecentPageViews(ctx context.Context, limit int) ([]*analytics.PageViewRecord, error)
	RecentEvents(ctx context.Context, limit int) ([]*analytics.EventRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and parameterizes a storage backend
type Config struct {
	Type string // "postgres" or "sqlite"

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// SQLite config
	SQLitePath string
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "sqlite",
		SQLitePath:       "timberweb.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Type {
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres storage requires a connection URL")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite storage requires a database path")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
	return nil
}
