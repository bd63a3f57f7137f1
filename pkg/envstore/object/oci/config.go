// Package oci provides an OCI Object Storage backend for the object env store
package oci

import (
	"fmt"
	"strings"
)

// DefaultObject is the object name used when none is configured.
const DefaultObject = ".env"

// Config holds OCI Object Storage configuration.
type Config struct {
	Bucket               string `mapstructure:"bucket"`
	Namespace            string `mapstructure:"namespace"`
	Object               string `mapstructure:"object,omitempty"`
	Region               string `mapstructure:"region,omitempty"`
	UseInstancePrincipal bool   `mapstructure:"useInstancePrincipal,omitempty"`
	UserID               string `mapstructure:"userId,omitempty"`
	Fingerprint          string `mapstructure:"fingerprint,omitempty"`
	KeyFile              string `mapstructure:"keyFile,omitempty"`
	TenancyID            string `mapstructure:"tenancyId,omitempty"`
}

// Validate validates the OCI configuration.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.usesAPIKey() {
		var missing []string
		for name, v := range map[string]string{
			"tenancyId":   c.TenancyID,
			"userId":      c.UserID,
			"fingerprint": c.Fingerprint,
			"keyFile":     c.KeyFile,
			"region":      c.Region,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("API key authentication requires %d more field(s)", len(missing))
		}
	}
	return nil
}

// ObjectName returns the configured object name or DefaultObject.
func (c Config) ObjectName() string {
	if c.Object == "" {
		return DefaultObject
	}
	return strings.TrimPrefix(c.Object, "/")
}

// Location returns an oci:// URI for the env object.
func (c Config) Location() string {
	return fmt.Sprintf("oci://%s@%s/%s", c.Bucket, c.Namespace, c.ObjectName())
}

// usesAPIKey reports whether any explicit API key field is set.
func (c Config) usesAPIKey() bool {
	return !c.UseInstancePrincipal && (c.UserID != "" || c.Fingerprint != "" || c.KeyFile != "")
}
