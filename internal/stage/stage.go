// Package stage turns an input reference into a local file path.
// Local paths pass through untouched; s3:// URLs are downloaded to a
// temporary file that lives until the caller runs the returned cleanup.
package stage

import (
	"context"
	goerrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/othd/othd/internal/errors"
)

const s3Scheme = "s3://"

// Options configures access to remote inputs.
type Options struct {
	// Region is the AWS region. Empty falls back to the environment
	// and shared config.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// ObjectFetcher is the S3 surface staging needs.
type ObjectFetcher interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Stager resolves input references. The S3 client is built on first
// use so purely local runs never touch AWS configuration.
type Stager struct {
	opts  Options
	fetch ObjectFetcher
}

// NewStager creates a Stager with the given options.
func NewStager(opts Options) *Stager {
	return &Stager{opts: opts}
}

// NewStagerWithClient creates a Stager with a pre-configured client.
func NewStagerWithClient(fetch ObjectFetcher) *Stager {
	return &Stager{fetch: fetch}
}

// IsRemote reports whether input must be staged before it can be read.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, s3Scheme)
}

// ParseS3URL splits an s3://bucket/key URL into bucket and key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	if !strings.HasPrefix(raw, s3Scheme) {
		return "", "", errors.NewValidationError(errors.CodeBadInputURL,
			raw+" is not an s3:// URL")
	}
	rest := strings.TrimPrefix(raw, s3Scheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", errors.NewValidationError(errors.CodeBadInputURL,
			raw+" has no bucket")
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", errors.NewValidationError(errors.CodeBadInputURL,
			raw+" has no object key")
	}
	return parts[0], parts[1], nil
}

// Resolve returns a local path for input. The cleanup removes whatever
// staging created and is always safe to call.
func (s *Stager) Resolve(ctx context.Context, input string) (string, func(), error) {
	if !IsRemote(input) {
		return input, func() {}, nil
	}

	bucket, key, err := ParseS3URL(input)
	if err != nil {
		return "", func() {}, err
	}
	if s.fetch == nil {
		client, err := newClient(ctx, s.opts)
		if err != nil {
			return "", func() {}, err
		}
		s.fetch = client
	}

	resp, err := s.fetch.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if goerrors.As(err, &noSuchKey) {
			return "", func() {}, errors.NewValidationError(errors.CodeInputMissing,
				input+" does not exist")
		}
		return "", func() {}, errors.NewStorageError(errors.CodeStageFailed,
			"failed to fetch "+input, err)
	}
	defer resp.Body.Close()

	// The extension is kept so readers that sniff compression by
	// suffix still recognize the staged copy.
	tmp, err := os.CreateTemp("", "othd-stage-*"+filepath.Ext(key))
	if err != nil {
		return "", func() {}, errors.NewStorageError(errors.CodeStageFailed,
			"failed to create staging file", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", func() {}, errors.NewStorageError(errors.CodeStageFailed,
			"failed to stage "+input, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, errors.NewStorageError(errors.CodeStageFailed,
			"failed to stage "+input, err)
	}
	return tmp.Name(), cleanup, nil
}

func newClient(ctx context.Context, opts Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeStageFailed,
			"failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
