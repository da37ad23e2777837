package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pithecene-io/stainfetch/iox"
	"github.com/pithecene-io/stainfetch/types"
)

// S3Config holds configuration for the S3 fetch backend.
type S3Config struct {
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// S3API is the subset of the S3 client used by the backend.
// Satisfied by *s3.Client; stubs implement it in tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Backend fetches task bytes from object storage for s3://bucket/key
// source locators. A missing object is permanent-not-found; transport
// failures are transient-network; destination write failures are
// permanent-io.
type S3Backend struct {
	client S3API
}

// NewS3Backend creates an S3 backend using the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
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

	return &S3Backend{client: s3.NewFromConfig(awsConfig, s3Opts...)}, nil
}

// NewS3BackendWithClient creates an S3 backend with a custom client.
// Used by tests.
func NewS3BackendWithClient(client S3API) *S3Backend {
	return &S3Backend{client: client}
}

// Name implements Backend.
func (b *S3Backend) Name() string { return "s3" }

// Fetch implements Backend.
func (b *S3Backend) Fetch(ctx context.Context, task *types.ChannelTask) (int64, error) {
	if err := validateRemoteTask(task); err != nil {
		return 0, err
	}

	bucket, key, err := ParseS3URL(task.SourceURL)
	if err != nil {
		return 0, newError(ErrNotFound, "get", task.SourceURL, err)
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return 0, newError(ErrNotFound, "get", task.SourceURL, err)
		}
		return 0, newError(ErrTransient, "get", task.SourceURL, err)
	}
	defer iox.DiscardClose(out.Body)

	body := &errTrackingReader{r: out.Body}
	n, err := writeDest(task.DestPath, body)
	if err != nil {
		if body.readErr != nil {
			return 0, newError(ErrTransient, "read", task.SourceURL, body.readErr)
		}
		return 0, err
	}
	return n, nil
}

// ParseS3URL splits an s3://bucket/key locator into bucket and key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 locator %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 locator %q: want s3://bucket/key", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid s3 locator %q: empty key", raw)
	}
	return u.Host, key, nil
}
