// Package gcs provides a Google Cloud Storage backend for the object env store
package gcs

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultObject is the object name used when none is configured.
const DefaultObject = ".env"

var (
	validBucketName = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)
	ipPattern       = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// Config holds configuration for the GCS env object.
type Config struct {
	// Bucket is the GCS bucket name (required)
	Bucket string

	// Object is the object name of the env file (default: ".env")
	Object string

	// Project is the GCP project ID (optional)
	Project string

	// UseWorkloadIdentity indicates whether to use Workload Identity for credentials
	UseWorkloadIdentity bool

	// CredentialsFile is an optional service account key file
	CredentialsFile string
}

// Validate validates the GCS configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if err := validateBucketName(c.Bucket); err != nil {
		return fmt.Errorf("invalid bucket name: %w", err)
	}
	if c.UseWorkloadIdentity && c.CredentialsFile != "" {
		return fmt.Errorf("credentials file cannot be combined with workload identity")
	}
	return nil
}

// ObjectName returns the configured object name or DefaultObject.
func (c *Config) ObjectName() string {
	if c.Object == "" {
		return DefaultObject
	}
	return strings.TrimPrefix(c.Object, "/")
}

// Location returns a gs:// URI for the env object.
func (c *Config) Location() string {
	return fmt.Sprintf("gs://%s/%s", c.Bucket, c.ObjectName())
}

// validateBucketName validates GCS bucket naming rules.
// Names cannot contain "goog" or look like IP addresses.
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}
	if !validBucketName.MatchString(bucket) {
		return fmt.Errorf("bucket name must contain only lowercase letters, numbers, dashes, underscores, and dots, and must start and end with a letter or number")
	}
	if strings.Contains(bucket, "goog") {
		return fmt.Errorf("bucket name cannot contain 'goog'")
	}
	if ipPattern.MatchString(bucket) {
		return fmt.Errorf("bucket name cannot be in IP address format")
	}
	return nil
}
