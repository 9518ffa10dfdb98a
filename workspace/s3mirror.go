package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/formward/formward/iox"
)

// MirrorConfig holds configuration for the S3 artifact mirror.
type MirrorConfig struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required mirror configuration is present.
func (c *MirrorConfig) Validate() error {
	if c.Bucket == "" {
		return errors.New("mirror bucket is required")
	}
	return nil
}

// s3API is the subset of the S3 client the mirror uses.
// Narrowed for test fakes.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror is a read-through S3 mirror for workspace artifacts, letting
// CI runners share downloaded packages and restores. A mirror miss is
// not an error; callers fall back to the remote API.
type Mirror struct {
	client s3API
	bucket string
	prefix string
}

// NewMirror creates a mirror using the AWS default credential chain.
func NewMirror(ctx context.Context, cfg MirrorConfig) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Mirror{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewMirrorWithClient creates a mirror with an injected client, for tests.
func NewMirrorWithClient(client s3API, cfg MirrorConfig) *Mirror {
	return &Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// AppKey is the mirror key for an app package.
func AppKey(domain, appID string) string {
	return path.Join(domain, appID, "app.ccz")
}

// RestoreKey is the mirror key for a user restore.
func RestoreKey(domain, appID, userID string) string {
	return path.Join(domain, appID, "users", userID, "restore.xml")
}

// Fetch retrieves an artifact from the mirror.
// Returns (nil, false, nil) on a mirror miss.
func (m *Mirror) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(path.Join(m.prefix, key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mirror fetch %s: %w", key, err)
	}
	defer iox.DiscardClose(out.Body)

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("mirror read %s: %w", key, err)
	}
	return data, true, nil
}

// Store uploads an artifact to the mirror. Best-effort by convention:
// callers log failures rather than failing the run.
func (m *Mirror) Store(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(path.Join(m.prefix, key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("mirror store %s: %w", key, err)
	}
	return nil
}
