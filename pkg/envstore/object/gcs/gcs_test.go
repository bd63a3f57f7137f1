package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config with minimal fields",
			config: Config{Bucket: "my-bucket"},
		},
		{
			name: "valid config with all fields",
			config: Config{
				Bucket:              "my-bucket",
				Object:              "apps/web/.env",
				Project:             "my-project",
				UseWorkloadIdentity: true,
			},
		},
		{
			name:    "missing bucket",
			config:  Config{},
			wantErr: true,
			errMsg:  "bucket name is required",
		},
		{
			name:    "bucket name too short",
			config:  Config{Bucket: "ab"},
			wantErr: true,
			errMsg:  "bucket name must be between 3 and 63 characters",
		},
		{
			name:    "bucket name too long",
			config:  Config{Bucket: strings.Repeat("a", 64)},
			wantErr: true,
			errMsg:  "bucket name must be between 3 and 63 characters",
		},
		{
			name:    "bucket name with uppercase",
			config:  Config{Bucket: "My-Bucket"},
			wantErr: true,
			errMsg:  "lowercase",
		},
		{
			name:    "bucket name containing goog",
			config:  Config{Bucket: "my-goog-bucket"},
			wantErr: true,
			errMsg:  "cannot contain 'goog'",
		},
		{
			name:    "bucket name as IP address",
			config:  Config{Bucket: "192.168.1.1"},
			wantErr: true,
			errMsg:  "IP address",
		},
		{
			name:    "credentials file with workload identity",
			config:  Config{Bucket: "my-bucket", UseWorkloadIdentity: true, CredentialsFile: "/etc/sa.json"},
			wantErr: true,
			errMsg:  "workload identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	c := Config{Bucket: "my-bucket"}
	assert.Equal(t, ".env", c.ObjectName())
	assert.Equal(t, "gs://my-bucket/.env", c.Location())

	c.Object = "/apps/web/.env"
	assert.Equal(t, "gs://my-bucket/apps/web/.env", c.Location())
}

func TestConditionsFor(t *testing.T) {
	cond, err := conditionsFor("")
	require.NoError(t, err)
	assert.Equal(t, storage.Conditions{DoesNotExist: true}, cond)

	cond, err = conditionsFor(generationRevision(1712345678901234))
	require.NoError(t, err)
	assert.Equal(t, storage.Conditions{GenerationMatch: 1712345678901234}, cond)

	_, err = conditionsFor(`"etag"`)
	assert.Error(t, err)
	_, err = conditionsFor("0")
	assert.Error(t, err)
}

func TestIsPreconditionFailed(t *testing.T) {
	precondition := &googleapi.Error{Code: http.StatusPreconditionFailed}
	assert.True(t, isPreconditionFailed(precondition))
	assert.True(t, isPreconditionFailed(fmt.Errorf("close: %w", precondition)))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}
