package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver

	// URL is the PostgreSQL connection string, or a sqlite:// URL.
	URL string

	// SQLitePath is the database file used by DriverSQLite.
	// Defaults to ~/.cadence/cadence.db.
	SQLitePath string

	// MaxConns caps the PostgreSQL pool size.
	MaxConns int
}

type connector func(ctx context.Context, cfg Config) (Connection, error)

var connectors = map[Driver]connector{}

// RegisterDriver installs the connection factory for a backend. The driver
// subpackages call it from init so importing them is enough to enable them.
func RegisterDriver(driver Driver, fn func(ctx context.Context, cfg Config) (Connection, error)) {
	connectors[driver] = fn
}

// NewConnection opens a connection for the configured (or detected) backend.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" || driver == "auto" {
		driver = DetectDriver(cfg.URL)
	}
	if driver == DriverSQLite && cfg.SQLitePath == "" && cfg.URL != "" {
		cfg.SQLitePath = SQLitePathFromURL(cfg.URL)
	}

	open, ok := connectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath returns ~/.cadence/cadence.db, or a relative path when
// the home directory cannot be determined.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cadence", "cadence.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
