package sqlstore

import (
	"fmt"
	"log/slog"
)

// Dialect names the SQL flavour an Adapter writes.
type Dialect string

const (
	// SQLite uses ? placeholders and RETURNING.
	SQLite Dialect = "sqlite"

	// Postgres uses $n placeholders and RETURNING.
	Postgres Dialect = "postgres"

	// MySQL uses ? placeholders and reads generated keys with LastInsertId.
	MySQL Dialect = "mysql"
)

// Config holds configuration for the Adapter.
type Config struct {
	// Dialect selects placeholders, identifier quoting and key read-back.
	// Default: SQLite
	Dialect Dialect

	// Logger receives one debug line per inserted row.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns a configuration for SQLite.
func DefaultConfig() Config {
	return Config{Dialect: SQLite, Logger: slog.Default()}
}

func (c *Config) validate() error {
	switch c.Dialect {
	case "":
		c.Dialect = SQLite
	case SQLite, Postgres, MySQL:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDialect, c.Dialect)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
