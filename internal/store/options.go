package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// Opts holds store construction options.
type Opts struct {
	// DSN is the database connection string: a postgres:// URL or a SQLite
	// file path.
	DSN string
	// Driver selects the backend: "postgres" or "sqlite3".
	Driver string
}

// Option configures store construction.
type Option func(*Opts)

// WithPostgresDSN configures a PostgreSQL-backed store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// WithSQLiteDSN configures a SQLite-backed store.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" based on its
// scheme. Plain file paths are treated as SQLite databases.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore constructs the store backend selected by the options.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(opts...)
	case "sqlite3":
		return NewSQLiteStore(opts...)
	case "":
		slog.Error("NewStore: no store backend configured")
		return nil, fmt.Errorf("no store backend configured")
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
