// Package envstore creates environment stores from configuration. The
// stores themselves live in the file, kube and object subpackages.
package envstore

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/client-go/kubernetes"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/file"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/kube"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object/azure"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object/gcs"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object/oci"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object/s3"
)

// Factory creates Store instances based on configuration.
type Factory struct {
	logger     *slog.Logger
	kubeClient kubernetes.Interface
}

// NewFactory creates a new store factory.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{
		logger: logger.With("component", constants.ComponentNameStore),
	}
}

// WithKubernetesClient sets the client used for the kubernetes store instead
// of building one from the ambient kubeconfig.
func (f *Factory) WithKubernetesClient(client kubernetes.Interface) *Factory {
	f.kubeClient = client
	return f
}

// Create creates a Store based on the configuration.
func (f *Factory) Create(ctx context.Context, cfg *config.Config) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	switch iface.StoreType(cfg.Store.Type) {
	case iface.StoreTypeFile:
		return f.createFileStore(cfg.Store.File)
	case iface.StoreTypeKubernetes:
		return f.createKubernetesStore(cfg.Store.Kubernetes)
	case iface.StoreTypeS3:
		return f.createS3Store(ctx, cfg.Store.S3)
	case iface.StoreTypeGCS:
		return f.createGCSStore(ctx, cfg.Store.GCS)
	case iface.StoreTypeAzure:
		return f.createAzureStore(ctx, cfg.Store.Azure)
	case iface.StoreTypeOCI:
		return f.createOCIStore(ctx, cfg.Store.OCI)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// createFileStore creates a local dotenv file store.
func (f *Factory) createFileStore(cfg *config.FileConfig) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("file store configuration is required")
	}
	store, err := file.New(cfg.Path, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	return store, nil
}

// createKubernetesStore creates a Secret-backed store.
func (f *Factory) createKubernetesStore(cfg *config.KubernetesConfig) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kubernetes store configuration is required")
	}

	client := f.kubeClient
	if client == nil {
		restCfg, err := ctrlconfig.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		client, err = kubernetes.NewForConfig(restCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
	}

	return kube.New(client, cfg.Namespace, cfg.SecretName, f.logger), nil
}

// createS3Store creates an S3 object store.
func (f *Factory) createS3Store(ctx context.Context, cfg *config.S3Config) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("S3 configuration is required")
	}

	blob, err := s3.New(ctx, s3.Config{
		Bucket:         cfg.Bucket,
		Key:            cfg.Key,
		Region:         cfg.Region,
		Endpoint:       cfg.Endpoint,
		ForcePathStyle: cfg.ForcePathStyle,
		UseIRSA:        cfg.UseIRSA,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	return object.New(blob, f.logger), nil
}

// createGCSStore creates a GCS object store.
func (f *Factory) createGCSStore(ctx context.Context, cfg *config.GCSConfig) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("GCS configuration is required")
	}

	blob, err := gcs.New(ctx, gcs.Config{
		Bucket:              cfg.Bucket,
		Object:              cfg.Object,
		Project:             cfg.Project,
		UseWorkloadIdentity: cfg.UseWorkloadIdentity,
		CredentialsFile:     cfg.CredentialsFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS store: %w", err)
	}
	return object.New(blob, f.logger), nil
}

// createAzureStore creates an Azure Blob Storage store.
func (f *Factory) createAzureStore(ctx context.Context, cfg *config.AzureConfig) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("azure configuration is required")
	}

	blob, err := azure.New(ctx, azure.Config{
		StorageAccount:     cfg.StorageAccount,
		Container:          cfg.Container,
		Blob:               cfg.Blob,
		UseManagedIdentity: cfg.UseManagedIdentity,
		TenantID:           cfg.TenantID,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ServiceURL:         cfg.ServiceURL,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure store: %w", err)
	}
	return object.New(blob, f.logger), nil
}

// createOCIStore creates an OCI Object Storage store.
func (f *Factory) createOCIStore(ctx context.Context, cfg *config.OCIConfig) (iface.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("OCI configuration is required")
	}

	blob, err := oci.New(ctx, oci.Config{
		Bucket:               cfg.Bucket,
		Namespace:            cfg.Namespace,
		Object:               cfg.Object,
		Region:               cfg.Region,
		UseInstancePrincipal: cfg.UseInstancePrincipal,
		UserID:               cfg.UserID,
		Fingerprint:          cfg.Fingerprint,
		KeyFile:              cfg.KeyFile,
		TenancyID:            cfg.TenancyID,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI store: %w", err)
	}
	return object.New(blob, f.logger), nil
}
