package oci

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
)

type serviceError struct {
	status int
}

func (e serviceError) Error() string           { return http.StatusText(e.status) }
func (e serviceError) GetHTTPStatusCode() int  { return e.status }
func (e serviceError) GetMessage() string      { return http.StatusText(e.status) }
func (e serviceError) GetCode() string         { return "Error" }
func (e serviceError) GetOpcRequestID() string { return "req-1" }

type mockClient struct {
	body      string
	etag      string
	exists    bool
	bucketErr error
	lastPut   objectstorage.PutObjectRequest
}

func (m *mockClient) GetBucket(ctx context.Context, req objectstorage.GetBucketRequest) (objectstorage.GetBucketResponse, error) {
	return objectstorage.GetBucketResponse{}, m.bucketErr
}

func (m *mockClient) GetObject(ctx context.Context, req objectstorage.GetObjectRequest) (objectstorage.GetObjectResponse, error) {
	if !m.exists {
		return objectstorage.GetObjectResponse{}, serviceError{status: http.StatusNotFound}
	}
	return objectstorage.GetObjectResponse{
		Content: io.NopCloser(strings.NewReader(m.body)),
		ETag:    common.String(m.etag),
	}, nil
}

func (m *mockClient) PutObject(ctx context.Context, req objectstorage.PutObjectRequest) (objectstorage.PutObjectResponse, error) {
	m.lastPut = req
	if req.IfNoneMatch != nil && m.exists {
		return objectstorage.PutObjectResponse{}, serviceError{status: http.StatusPreconditionFailed}
	}
	if req.IfMatch != nil && (!m.exists || *req.IfMatch != m.etag) {
		return objectstorage.PutObjectResponse{}, serviceError{status: http.StatusPreconditionFailed}
	}
	data, err := io.ReadAll(req.PutObjectBody)
	if err != nil {
		return objectstorage.PutObjectResponse{}, err
	}
	m.body = string(data)
	m.etag += "1"
	m.exists = true
	return objectstorage.PutObjectResponse{ETag: common.String(m.etag)}, nil
}

func testConfig() Config {
	return Config{Bucket: "env", Namespace: "tenancy-ns", Object: "web/.env"}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid config", config: Config{Bucket: "env", Namespace: "ns"}},
		{name: "missing bucket", config: Config{Namespace: "ns"}, wantErr: true},
		{name: "missing namespace", config: Config{Bucket: "env"}, wantErr: true},
		{name: "partial API key", config: Config{Bucket: "env", Namespace: "ns", UserID: "ocid1.user"}, wantErr: true},
		{
			name: "full API key",
			config: Config{
				Bucket: "env", Namespace: "ns", Region: "us-ashburn-1",
				UserID: "ocid1.user", TenancyID: "ocid1.tenancy", Fingerprint: "aa:bb", KeyFile: "/keys/oci.pem",
			},
		},
		{name: "instance principal ignores key fields", config: Config{Bucket: "env", Namespace: "ns", UseInstancePrincipal: true, UserID: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	assert.Equal(t, "oci://env@tenancy-ns/web/.env", testConfig().Location())
	assert.Equal(t, ".env", Config{}.ObjectName())
}

func TestBlob_GetPut(t *testing.T) {
	client := &mockClient{body: "A=1\n", etag: "e1", exists: true}
	b := NewWithClient(client, testConfig())
	ctx := context.Background()

	data, rev, err := b.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A=1\n", string(data))
	assert.Equal(t, object.Revision("e1"), rev)

	require.NoError(t, b.Put(ctx, []byte("A=2\n"), rev))
	assert.Equal(t, "e1", *client.lastPut.IfMatch)
	assert.Equal(t, int64(4), *client.lastPut.ContentLength)

	assert.ErrorIs(t, b.Put(ctx, []byte("A=3\n"), rev), object.ErrPreconditionFailed)
}

func TestBlob_Missing(t *testing.T) {
	client := &mockClient{}
	b := NewWithClient(client, testConfig())
	ctx := context.Background()

	_, _, err := b.Get(ctx)
	assert.ErrorIs(t, err, object.ErrNotFound)

	require.NoError(t, b.Put(ctx, []byte("K=v\n"), ""))
	assert.Equal(t, "*", *client.lastPut.IfNoneMatch)
	assert.Nil(t, client.lastPut.IfMatch)
}

func TestBlob_HealthCheck(t *testing.T) {
	client := &mockClient{}
	b := NewWithClient(client, testConfig())
	assert.NoError(t, b.HealthCheck(context.Background()))
	assert.Equal(t, iface.StoreTypeOCI, b.Type())

	client.bucketErr = serviceError{status: http.StatusUnauthorized}
	assert.Error(t, b.HealthCheck(context.Background()))
}

func TestStoreOverOCI(t *testing.T) {
	client := &mockClient{}
	store := object.New(NewWithClient(client, testConfig()), slog.New(slog.NewTextHandler(os.Stdout, nil)))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "AUTH_APPLE_CLIENT_SECRET", "tok"))
	require.NoError(t, store.Set(ctx, "OTHER", "x"))
	assert.Equal(t, "AUTH_APPLE_CLIENT_SECRET=tok\nOTHER=x\n", client.body)
}
