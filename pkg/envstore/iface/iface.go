// Package iface provides the environment store interface
package iface

import (
	"context"
)

// StoreType represents the type of store backend.
type StoreType string

const (
	// StoreTypeFile is a dotenv file on local disk.
	StoreTypeFile StoreType = "file"
	// StoreTypeKubernetes is a Kubernetes Secret.
	StoreTypeKubernetes StoreType = "kubernetes"
	// StoreTypeS3 is a dotenv object in AWS S3.
	StoreTypeS3 StoreType = "s3"
	// StoreTypeGCS is a dotenv object in Google Cloud Storage.
	StoreTypeGCS StoreType = "gcs"
	// StoreTypeAzure is a dotenv blob in Azure Blob Storage.
	StoreTypeAzure StoreType = "azure"
	// StoreTypeOCI is a dotenv object in OCI Object Storage.
	StoreTypeOCI StoreType = "oci"
)

// Store defines the interface for reading and persisting environment values.
type Store interface {
	// Load returns every key/value pair currently stored
	Load(ctx context.Context) (map[string]string, error)

	// Set durably replaces the value of key, adding it when absent.
	// All other entries are left untouched.
	Set(ctx context.Context, key, value string) error

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Type returns the store type
	Type() StoreType
}
