// Package s3 provides an S3 backend for the object env store
package s3

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = ".env"

var (
	validBucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)
	ipPattern       = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// Config holds configuration for the S3 env object.
type Config struct {
	// Bucket is the S3 bucket name (required)
	Bucket string

	// Key is the object key of the env file (default: ".env")
	Key string

	// Region is the AWS region (required)
	Region string

	// UseIRSA indicates whether to use IRSA for credentials
	UseIRSA bool

	// Endpoint is an optional custom S3 endpoint (for testing with minio)
	Endpoint string

	// ForcePathStyle forces path-style addressing (for minio compatibility)
	ForcePathStyle bool
}

// Validate validates the S3 configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if err := validateBucketName(c.Bucket); err != nil {
		return fmt.Errorf("invalid bucket name: %w", err)
	}
	if strings.HasSuffix(c.Key, "/") {
		return fmt.Errorf("object key %q must not end with a slash", c.Key)
	}
	return nil
}

// ObjectKey returns the configured key or DefaultKey.
func (c *Config) ObjectKey() string {
	if c.Key == "" {
		return DefaultKey
	}
	return strings.TrimPrefix(c.Key, "/")
}

// Location returns an s3:// URI for the env object.
func (c *Config) Location() string {
	return fmt.Sprintf("s3://%s/%s", c.Bucket, c.ObjectKey())
}

// validateBucketName validates S3 bucket naming rules.
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}
	if !validBucketName.MatchString(bucket) {
		return fmt.Errorf("bucket name must contain only lowercase letters, numbers, hyphens, and dots, and must start and end with a letter or number")
	}
	if ipPattern.MatchString(bucket) {
		return fmt.Errorf("bucket name cannot be in IP address format")
	}
	if strings.Contains(bucket, "..") {
		return fmt.Errorf("bucket name cannot contain consecutive periods")
	}
	return nil
}
