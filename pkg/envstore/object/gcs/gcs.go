package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
)

// Ensure Blob implements object.Blob interface.
var _ object.Blob = (*Blob)(nil)

// Blob is an env object in GCS. Writes are conditional on the object
// generation that was read.
type Blob struct {
	client *storage.Client
	bucket *storage.BucketHandle
	config Config
}

// New creates a GCS client and a Blob.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Blob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid GCS config: %w", err)
	}

	var opts []option.ClientOption
	switch {
	case cfg.UseWorkloadIdentity:
		logger.Info("GCS store: using workload identity for authentication")
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		logger.Warn("GCS store: not using workload identity. Ensure appropriate GCP credentials are available.")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Blob{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		config: cfg,
	}, nil
}

// Get reads the object and returns its generation.
func (b *Blob) Get(ctx context.Context) ([]byte, object.Revision, error) {
	r, err := b.bucket.Object(b.config.ObjectName()).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", object.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open %s: %w", b.config.Location(), err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", b.config.Location(), err)
	}
	return data, generationRevision(r.Attrs.Generation), nil
}

// Put writes data with a generation precondition. An empty rev requires
// that the object does not exist.
func (b *Blob) Put(ctx context.Context, data []byte, rev object.Revision) error {
	cond, err := conditionsFor(rev)
	if err != nil {
		return err
	}

	wc := b.bucket.Object(b.config.ObjectName()).If(cond).NewWriter(ctx)
	wc.ContentType = "text/plain; charset=utf-8"
	wc.CacheControl = "no-store"

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write %s: %w", b.config.Location(), err)
	}
	if err := wc.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%s: %w", b.config.Location(), object.ErrPreconditionFailed)
		}
		return fmt.Errorf("failed to close writer for %s: %w", b.config.Location(), err)
	}
	return nil
}

// HealthCheck verifies the bucket is accessible.
func (b *Blob) HealthCheck(ctx context.Context) error {
	if _, err := b.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("GCS health check failed for bucket '%s': %w", b.config.Bucket, err)
	}
	return nil
}

// Type returns the store type.
func (b *Blob) Type() iface.StoreType {
	return iface.StoreTypeGCS
}

// Location returns the gs:// URI of the object.
func (b *Blob) Location() string {
	return b.config.Location()
}

// Close releases the underlying client.
func (b *Blob) Close() error {
	return b.client.Close()
}

func generationRevision(gen int64) object.Revision {
	return object.Revision(strconv.FormatInt(gen, 10))
}

func conditionsFor(rev object.Revision) (storage.Conditions, error) {
	if rev == "" {
		return storage.Conditions{DoesNotExist: true}, nil
	}
	gen, err := strconv.ParseInt(string(rev), 10, 64)
	if err != nil || gen <= 0 {
		return storage.Conditions{}, fmt.Errorf("invalid GCS generation %q", rev)
	}
	return storage.Conditions{GenerationMatch: gen}, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
