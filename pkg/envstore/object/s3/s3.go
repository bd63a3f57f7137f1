package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/object"
)

// API is the subset of the S3 client used by Blob.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Ensure Blob implements object.Blob interface.
var _ object.Blob = (*Blob)(nil)

// Blob is an env object in S3. Writes use If-Match on the ETag that was
// read, or If-None-Match: * when the object is new.
type Blob struct {
	client API
	config Config
}

// New loads AWS credentials from the default chain and creates a Blob.
func New(ctx context.Context, cfg Config) (*Blob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(createS3Client(awsCfg, cfg.Endpoint, cfg.ForcePathStyle), cfg), nil
}

// NewWithClient creates a Blob using an existing client.
func NewWithClient(client API, cfg Config) *Blob {
	return &Blob{client: client, config: cfg}
}

// Get downloads the object and returns its ETag.
func (b *Blob) Get(ctx context.Context) ([]byte, object.Revision, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.config.ObjectKey()),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", object.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get object %s: %w", b.config.Location(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", b.config.Location(), err)
	}
	return data, object.Revision(aws.ToString(out.ETag)), nil
}

// Put uploads data conditionally on rev.
func (b *Blob) Put(ctx context.Context, data []byte, rev object.Revision) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.config.Bucket),
		Key:         aws.String(b.config.ObjectKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}
	if rev == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(string(rev))
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%s: %w", b.config.Location(), object.ErrPreconditionFailed)
		}
		return fmt.Errorf("failed to upload object %s: %w", b.config.Location(), err)
	}
	return nil
}

// HealthCheck verifies the bucket is accessible.
func (b *Blob) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// Type returns the store type.
func (b *Blob) Type() iface.StoreType {
	return iface.StoreTypeS3
}

// Location returns the s3:// URI of the object.
func (b *Blob) Location() string {
	return b.config.Location()
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	return httpStatus(err) == http.StatusNotFound
}

// isPreconditionFailed reports a failed If-Match. S3 answers 409 when a
// concurrent conditional write is in flight.
func isPreconditionFailed(err error) bool {
	status := httpStatus(err)
	return status == http.StatusPreconditionFailed || status == http.StatusConflict
}

func httpStatus(err error) int {
	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) {
		return responseError.HTTPStatusCode()
	}
	return 0
}

// createS3Client creates an S3 client with optional custom endpoint.
func createS3Client(cfg aws.Config, endpoint string, forcePathStyle bool) *s3.Client {
	opts := []func(*s3.Options){}
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = forcePathStyle
		})
	}
	return s3.NewFromConfig(cfg, opts...)
}
