package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by S3Source
type S3API interface {
	manager.DownloadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3ClientOptions configures NewS3Client
type S3ClientOptions struct {
	Region          string
	Endpoint        string // Custom endpoint for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, opts S3ClientOptions) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Source reads records stored as JSON objects at {prefix}/{table}/{user id}.json.
// An object holds either an array of rows or a single row.
type S3Source struct {
	client     S3API
	downloader *manager.Downloader
	bucket     string
	prefix     string
	log        zerolog.Logger
}

// NewS3Source creates a source reading from bucket under prefix
func NewS3Source(client S3API, bucket, prefix string, log zerolog.Logger) *S3Source {
	return &S3Source{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			// Record objects are small; one part is enough
			d.Concurrency = 1
		}),
		bucket: bucket,
		prefix: prefix,
		log:    log.With().Str("repo", "records_s3").Str("bucket", bucket).Logger(),
	}
}

// Name returns the backend name
func (s *S3Source) Name() string {
	return "s3"
}

// Ping checks the bucket is reachable with the configured credentials
func (s *S3Source) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classifyS3Error(err, "head bucket "+s.bucket)
	}
	return nil
}

// ObjectKey returns the key holding a user's rows for table
func (s *S3Source) ObjectKey(table Table, userID string) string {
	return path.Join(s.prefix, string(table), userID+".json")
}

// Fetch downloads and decodes the user's object. A missing object means no rows.
func (s *S3Source) Fetch(ctx context.Context, table Table, userID string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	key := s.ObjectKey(table, userID)
	buf := manager.NewWriteAtBuffer(nil)
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			s.log.Debug().Str("key", key).Msg("No record object")
			return nil, nil
		}
		return nil, classifyS3Error(err, "download "+key)
	}

	recs, err := decodeRecords(buf.Bytes()[:n])
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	s.log.Debug().
		Str("key", key).
		Int("rows", len(recs)).
		Msg("Fetched records")

	return recs, nil
}

// decodeRecords accepts a JSON array of objects, a single object, or an empty body
func decodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if data[0] == '[' {
		var recs []Record
		if err := dec.Decode(&recs); err != nil {
			return nil, err
		}
		return recs, nil
	}

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func classifyS3Error(err error, op string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %s: %s", ErrSourceCredentials, op, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
