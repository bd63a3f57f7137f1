// Package azure provides an Azure Blob Storage backend for the object env store
package azure

import (
	"fmt"
	"strings"
)

// DefaultBlob is the blob name used when none is configured.
const DefaultBlob = ".env"

// Config holds Azure Blob Storage configuration.
type Config struct {
	StorageAccount     string `mapstructure:"storageAccount"`
	Container          string `mapstructure:"container"`
	Blob               string `mapstructure:"blob,omitempty"`
	UseManagedIdentity bool   `mapstructure:"useManagedIdentity,omitempty"`
	TenantID           string `mapstructure:"tenantId,omitempty"`
	ClientID           string `mapstructure:"clientId,omitempty"`
	ClientSecret       string `mapstructure:"clientSecret,omitempty"`

	// ServiceURL overrides the account endpoint (for Azurite)
	ServiceURL string `mapstructure:"serviceUrl,omitempty"`
}

// Validate validates the Azure configuration.
func (c Config) Validate() error {
	if c.StorageAccount == "" {
		return fmt.Errorf("storage account is required")
	}
	if c.Container == "" {
		return fmt.Errorf("container is required")
	}
	if c.ClientSecret != "" && (c.TenantID == "" || c.ClientID == "") {
		return fmt.Errorf("tenantId and clientId are required with clientSecret")
	}
	return nil
}

// BlobName returns the configured blob name or DefaultBlob.
func (c Config) BlobName() string {
	if c.Blob == "" {
		return DefaultBlob
	}
	return strings.TrimPrefix(c.Blob, "/")
}

// GetServiceURL returns the blob service endpoint of the account.
func (c Config) GetServiceURL() string {
	if c.ServiceURL != "" {
		return c.ServiceURL
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.StorageAccount)
}

// Location returns the URL of the env blob.
func (c Config) Location() string {
	return strings.TrimSuffix(c.GetServiceURL(), "/") + "/" + c.Container + "/" + c.BlobName()
}

// usesClientSecret reports whether a service principal secret is configured.
func (c Config) usesClientSecret() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}
