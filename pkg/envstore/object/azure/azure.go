package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
)

// Ensure Blob implements object.Blob interface.
var _ object.Blob = (*Blob)(nil)

// Blob is an env blob in Azure Blob Storage. Writes carry If-Match with the
// ETag that was read, or If-None-Match: * when the blob is new.
type Blob struct {
	container *container.Client
	blob      *blockblob.Client
	config    Config
}

// New creates an Azure Blob client and a Blob.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Blob, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Azure config: %w", err)
	}

	cred, err := newCredential(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azblob.NewClient(config.GetServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	containerClient := client.ServiceClient().NewContainerClient(config.Container)
	return &Blob{
		container: containerClient,
		blob:      containerClient.NewBlockBlobClient(config.BlobName()),
		config:    config,
	}, nil
}

func newCredential(config Config, logger *slog.Logger) (azcore.TokenCredential, error) {
	switch {
	case config.usesClientSecret():
		logger.Info("Azure store: using client secret credential", "clientId", config.ClientID)
		return azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	case config.UseManagedIdentity:
		logger.Info("Azure store: using managed identity for authentication")
		var opts *azidentity.ManagedIdentityCredentialOptions
		if config.ClientID != "" {
			opts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(config.ClientID)}
		}
		return azidentity.NewManagedIdentityCredential(opts)
	default:
		logger.Info("Azure store: using default credential chain")
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

// Get downloads the blob and returns its ETag.
func (b *Blob) Get(ctx context.Context) ([]byte, object.Revision, error) {
	resp, err := b.blob.DownloadStream(ctx, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, "", object.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to download %s: %w", b.config.Location(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", b.config.Location(), err)
	}

	var rev object.Revision
	if resp.ETag != nil {
		rev = object.Revision(*resp.ETag)
	}
	return data, rev, nil
}

// Put uploads data conditionally on rev.
func (b *Blob) Put(ctx context.Context, data []byte, rev object.Revision) error {
	opts := &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:  to.Ptr("text/plain; charset=utf-8"),
			BlobCacheControl: to.Ptr("no-store"),
		},
		AccessConditions: accessConditions(rev),
	}

	if _, err := b.blob.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts); err != nil {
		if statusCode(err) == http.StatusPreconditionFailed || statusCode(err) == http.StatusConflict {
			return fmt.Errorf("%s: %w", b.config.Location(), object.ErrPreconditionFailed)
		}
		return fmt.Errorf("failed to upload %s: %w", b.config.Location(), err)
	}
	return nil
}

// HealthCheck verifies the container is accessible.
func (b *Blob) HealthCheck(ctx context.Context) error {
	if _, err := b.container.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("Azure health check failed for container '%s': %w", b.config.Container, err)
	}
	return nil
}

// Type returns the store type.
func (b *Blob) Type() iface.StoreType {
	return iface.StoreTypeAzure
}

// Location returns the blob URL.
func (b *Blob) Location() string {
	return b.config.Location()
}

func accessConditions(rev object.Revision) *blob.AccessConditions {
	mod := &blob.ModifiedAccessConditions{}
	if rev == "" {
		mod.IfNoneMatch = to.Ptr(azcore.ETagAny)
	} else {
		mod.IfMatch = to.Ptr(azcore.ETag(rev))
	}
	return &blob.AccessConditions{ModifiedAccessConditions: mod}
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}
