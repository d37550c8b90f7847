package database

import "strings"

// Driver names a database backend.
type Driver string

const (
	// DriverPostgres stores state in PostgreSQL through pgx.
	DriverPostgres Driver = "postgres"
	// DriverSQLite stores state in a local SQLite file.
	DriverSQLite Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether the driver is one cadence knows how to open.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// DetectDriver infers the backend from a connection URL.
// An empty URL selects SQLite so the CLI works without any setup.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"):
		return DriverSQLite
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(url, ext) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}

// SQLitePathFromURL strips a sqlite:// prefix so the remainder can be handed
// to the driver as a file path. Other URLs are returned unchanged.
func SQLitePathFromURL(url string) string {
	if strings.HasPrefix(url, "sqlite://") {
		return strings.TrimPrefix(url, "sqlite://")
	}
	return url
}
