// Package file provides a dotenv file implementation of iface.Store
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/dotenv"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

const component = "envstore.file"

// Ensure Store implements iface.Store interface.
var _ iface.Store = (*Store)(nil)

// Store keeps environment values in a dotenv file on local disk.
type Store struct {
	path   string
	logger *slog.Logger

	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

// New creates a Store for path.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, rerrors.NewValidationError(component, "env file path is required", nil)
	}
	return &Store{
		path:   path,
		logger: logger,
	}, nil
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Load parses the file. A missing file is an empty environment.
func (s *Store) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("env file not found, returning empty environment", "path", s.path)
			return map[string]string{}, nil
		}
		return nil, rerrors.NewPersistenceError(component, "failed to read env file", err)
	}

	env, err := dotenv.Parse(data)
	if err != nil {
		return nil, rerrors.NewPersistenceError(component, "failed to parse env file", err)
	}
	return env, nil
}

// Set replaces key in the file and writes it back atomically.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return rerrors.NewPersistenceError(component, "context cancelled before write", err)
	}

	perm := fs.FileMode(0o600)
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if info, statErr := os.Stat(s.path); statErr == nil {
			perm = info.Mode().Perm()
		}
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	default:
		return rerrors.NewPersistenceError(component, "failed to read env file", err)
	}

	updated, err := dotenv.Splice(data, key, value)
	if err != nil {
		return rerrors.NewValidationError(component, "failed to update env content", err)
	}

	if err := writeFile(s.path, updated, perm); err != nil {
		return rerrors.NewPersistenceError(component, "failed to write env file", err)
	}

	s.logger.Info("Updated env file",
		"path", s.path,
		"key", key,
		"lines", countLines(updated),
	)
	return nil
}

// HealthCheck verifies the file's directory is reachable.
func (s *Store) HealthCheck(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("env file directory %s is not accessible: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Type returns the store type.
func (s *Store) Type() iface.StoreType {
	return iface.StoreTypeFile
}

// writeFile writes data to a temp file, syncs it and renames it over path.
// When the rename is refused, as for a file bind-mounted into a container,
// path is overwritten in place instead.
func writeFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".env-*.tmp")
	if err != nil {
		return overwrite(path, data, perm)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		if owErr := overwrite(path, data, perm); owErr != nil {
			return fmt.Errorf("rename: %v (overwrite: %w)", err, owErr)
		}
	}
	return nil
}

func overwrite(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("fsync: %w", err)
	}
	return f.Close()
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
