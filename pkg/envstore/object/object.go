// Package object implements iface.Store on top of a single dotenv object in
// a cloud bucket. Writes are conditional on the revision that was read.
package object

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/dotenv"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

const component = "envstore.object"

var (
	// ErrNotFound is returned by Blob.Get when the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed is returned by Blob.Put when the object changed
	// since it was read.
	ErrPreconditionFailed = errors.New("object was modified concurrently")
)

// Revision identifies the version of an object that was read: an ETag or a
// generation number. The empty revision means the object did not exist.
type Revision string

// Blob is one object in a bucket.
type Blob interface {
	// Get returns the object content and its revision
	Get(ctx context.Context) ([]byte, Revision, error)

	// Put writes data if the object is still at rev. An empty rev requires
	// that the object does not exist yet.
	Put(ctx context.Context, data []byte, rev Revision) error

	// HealthCheck verifies the bucket is reachable
	HealthCheck(ctx context.Context) error

	// Type returns the backing store type
	Type() iface.StoreType

	// Location describes the object for logs
	Location() string
}

// Ensure Store implements iface.Store interface.
var _ iface.Store = (*Store)(nil)

// Store keeps environment values in a dotenv formatted object.
type Store struct {
	blob   Blob
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a Store over blob.
func New(blob Blob, logger *slog.Logger) *Store {
	return &Store{
		blob:   blob,
		logger: logger,
	}
}

// Load returns the parsed object. A missing object is an empty environment.
func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	data, _, err := s.blob.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("env object not found, returning empty environment", "location", s.blob.Location())
			return map[string]string{}, nil
		}
		return nil, rerrors.NewPersistenceError(component, "failed to read env object", err)
	}

	env, err := dotenv.Parse(data)
	if err != nil {
		return nil, rerrors.NewPersistenceError(component, "failed to parse env object", err)
	}
	return env, nil
}

// Set splices key into the object and writes it back conditionally. A
// concurrent modification fails the write rather than overwriting it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, rev, err := s.blob.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return rerrors.NewPersistenceError(component, "failed to read env object", err)
		}
		data, rev = nil, ""
	}

	updated, err := dotenv.Splice(data, key, value)
	if err != nil {
		return rerrors.NewValidationError(component, "failed to update env content", err)
	}

	if err := s.blob.Put(ctx, updated, rev); err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			s.logger.Warn("env object was updated by another writer", "location", s.blob.Location())
		}
		return rerrors.NewPersistenceError(component, "failed to write env object", err)
	}

	s.logger.Info("Updated env object",
		"type", s.blob.Type(),
		"location", s.blob.Location(),
		"key", key,
		"size", len(updated),
	)
	return nil
}

// HealthCheck delegates to the blob backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.blob.HealthCheck(ctx)
}

// Type returns the backing store type.
func (s *Store) Type() iface.StoreType {
	return s.blob.Type()
}
