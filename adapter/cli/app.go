package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cadence/internal/app"
)

// ErrNotInitialized is returned by commands run without a container.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// current is the container the commands run against.
var current *app.Container

// SetApp sets the container commands run against.
func SetApp(c *app.Container) {
	current = c
}

// GetApp returns the container, or nil before initialisation.
func GetApp() *app.Container {
	return current
}

// MustApp returns the container or ErrNotInitialized.
func MustApp() (*app.Container, error) {
	if current == nil {
		return nil, ErrNotInitialized
	}
	return current, nil
}

// ParseTime parses an RFC 3339 flag or argument value.
func ParseTime(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (use RFC 3339, e.g. 2024-01-01T09:00:00Z): %w", name, value, err)
	}
	return t, nil
}

// ParseID parses a UUID argument.
func ParseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
