// Package security validates file paths handed to the CLI and config loader.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// shell metacharacters never legitimate in a rule, config, or export path
var forbiddenChars = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r"}

// CleanPath rejects empty paths and shell metacharacters, then returns the
// absolute path with symlinks resolved when the target exists.
func CleanPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}
	for _, char := range forbiddenChars {
		if strings.Contains(path, char) {
			return "", fmt.Errorf("file path contains forbidden character %q: %s", char, path)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve file path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolve file path: %w", err)
	}
	return resolved, nil
}

// ReadFile reads a file after validating its path.
func ReadFile(path string) ([]byte, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is validated above
	return os.ReadFile(clean)
}

// CreateFile creates or truncates a file after validating its path. The
// parent directory must already exist.
func CreateFile(path string) (*os.File, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(clean)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", dir)
	}
	// #nosec G304 - path is validated above
	return os.OpenFile(clean, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
}
