package oci

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
)

// API is the subset of the Object Storage client used by Blob.
type API interface {
	GetBucket(ctx context.Context, request objectstorage.GetBucketRequest) (objectstorage.GetBucketResponse, error)
	GetObject(ctx context.Context, request objectstorage.GetObjectRequest) (objectstorage.GetObjectResponse, error)
	PutObject(ctx context.Context, request objectstorage.PutObjectRequest) (objectstorage.PutObjectResponse, error)
}

// Ensure Blob implements object.Blob interface.
var _ object.Blob = (*Blob)(nil)

// Blob is an env object in OCI Object Storage.
type Blob struct {
	client API
	config Config
}

// New creates an Object Storage client and a Blob.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Blob, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OCI config: %w", err)
	}

	provider, err := newProvider(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI credentials: %w", err)
	}

	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI client: %w", err)
	}
	if config.Region != "" {
		client.SetRegion(config.Region)
	}

	return NewWithClient(client, config), nil
}

// NewWithClient creates a Blob using an existing client.
func NewWithClient(client API, config Config) *Blob {
	return &Blob{client: client, config: config}
}

func newProvider(config Config, logger *slog.Logger) (common.ConfigurationProvider, error) {
	switch {
	case config.UseInstancePrincipal:
		logger.Info("OCI store: using instance principal for authentication")
		return auth.InstancePrincipalConfigurationProvider()
	case config.usesAPIKey():
		logger.Info("OCI store: using API key authentication", "user", config.UserID)
		key, err := os.ReadFile(config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		return common.NewRawConfigurationProvider(config.TenancyID, config.UserID, config.Region, config.Fingerprint, string(key), nil), nil
	default:
		logger.Info("OCI store: using default OCI configuration")
		return common.DefaultConfigProvider(), nil
	}
}

// Get downloads the object and returns its ETag.
func (b *Blob) Get(ctx context.Context) ([]byte, object.Revision, error) {
	resp, err := b.client.GetObject(ctx, objectstorage.GetObjectRequest{
		NamespaceName: common.String(b.config.Namespace),
		BucketName:    common.String(b.config.Bucket),
		ObjectName:    common.String(b.config.ObjectName()),
	})
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, "", object.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get %s: %w", b.config.Location(), err)
	}
	defer func() { _ = resp.Content.Close() }()

	data, err := io.ReadAll(resp.Content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", b.config.Location(), err)
	}
	return data, object.Revision(common.PointerString(resp.ETag)), nil
}

// Put uploads data with If-Match, or If-None-Match: * for a new object.
func (b *Blob) Put(ctx context.Context, data []byte, rev object.Revision) error {
	req := objectstorage.PutObjectRequest{
		NamespaceName: common.String(b.config.Namespace),
		BucketName:    common.String(b.config.Bucket),
		ObjectName:    common.String(b.config.ObjectName()),
		ContentLength: common.Int64(int64(len(data))),
		PutObjectBody: io.NopCloser(bytes.NewReader(data)),
		ContentType:   common.String("text/plain; charset=utf-8"),
	}
	if rev == "" {
		req.IfNoneMatch = common.String("*")
	} else {
		req.IfMatch = common.String(string(rev))
	}

	if _, err := b.client.PutObject(ctx, req); err != nil {
		if statusCode(err) == http.StatusPreconditionFailed {
			return fmt.Errorf("%s: %w", b.config.Location(), object.ErrPreconditionFailed)
		}
		return fmt.Errorf("failed to upload %s: %w", b.config.Location(), err)
	}
	return nil
}

// HealthCheck verifies the bucket is accessible.
func (b *Blob) HealthCheck(ctx context.Context) error {
	_, err := b.client.GetBucket(ctx, objectstorage.GetBucketRequest{
		NamespaceName: common.String(b.config.Namespace),
		BucketName:    common.String(b.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("OCI health check failed for bucket '%s': %w", b.config.Bucket, err)
	}
	return nil
}

// Type returns the store type.
func (b *Blob) Type() iface.StoreType {
	return iface.StoreTypeOCI
}

// Location returns the oci:// URI of the object.
func (b *Blob) Location() string {
	return b.config.Location()
}

func statusCode(err error) int {
	var serviceErr common.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.GetHTTPStatusCode()
	}
	return 0
}
