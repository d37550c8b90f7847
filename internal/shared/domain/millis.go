package domain

import "time"

// ToMillis encodes an instant as unix milliseconds, the storage format used by
// every table so both SQLite and PostgreSQL compare instants numerically.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis decodes unix milliseconds into a UTC instant.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
