package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one JSON record per snapshot at <prefix>/<name>/<version>.json.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store creates an S3 client from config. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return newS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(name, version string) string {
	return path.Join(s.prefix, name, version+snapshotExt)
}

func (s *S3Store) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "S3Store."+op,
		trace.WithAttributes(
			attribute.String("s3.operation", op),
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
}

// Put implements SnapshotWriter.Put
func (s *S3Store) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	key := s.key(snapshot.Name, snapshot.Version)
	ctx, span := s.startSpan(ctx, "PutObject", key)
	defer span.End()

	data, err := encodeRecord(snapshot)
	if err != nil {
		return fail(span, err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
		Metadata: map[string]string{
			"snapshot-digest": snapshot.Digest,
		},
	})
	if isPreconditionFailed(err) {
		return fail(span, exists(snapshot.Name, snapshot.Version))
	} else if err != nil {
		return fail(span, fmt.Errorf("failed to upload to s3: %w", err))
	}

	span.SetStatus(codes.Ok, "snapshot uploaded")
	return nil
}

// Get implements SnapshotReader.Get
func (s *S3Store) Get(ctx context.Context, name, version string) (*Snapshot, error) {
	if err := validateKey(name, version); err != nil {
		return nil, err
	}
	key := s.key(name, version)
	ctx, span := s.startSpan(ctx, "GetObject", key)
	defer span.End()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, notFound(name, version)
	} else if err != nil {
		return nil, fail(span, fmt.Errorf("failed to get object from s3: %w", err))
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to read object: %w", err))
	}
	snapshot, err := decodeRecord(data)
	return snapshot, fail(span, err)
}

// Latest implements SnapshotReader.Latest
func (s *S3Store) Latest(ctx context.Context, name string) (*Snapshot, error) {
	return latest(ctx, s, name)
}

// List implements SnapshotReader.List
func (s *S3Store) List(ctx context.Context, name string) ([]SnapshotInfo, error) {
	prefix := s.prefix
	if name != "" {
		if err := validateKey(name, ""); err != nil {
			return nil, err
		}
		prefix = path.Join(prefix, name)
	}
	if prefix != "" {
		prefix += "/"
	}
	ctx, span := s.startSpan(ctx, "ListObjectsV2", prefix)
	defer span.End()

	infos := make([]SnapshotInfo, 0)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fail(span, fmt.Errorf("failed to list objects: %w", err))
		}
		for _, obj := range page.Contents {
			objName, file := name, strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				var ok bool
				if objName, file, ok = strings.Cut(file, "/"); !ok {
					continue
				}
			}
			if strings.Contains(file, "/") {
				continue
			}
			snapshot, err := s.getListed(ctx, objName, file)
			if err != nil {
				return nil, fail(span, err)
			}
			if snapshot != nil {
				infos = append(infos, snapshot.SnapshotInfo)
			}
		}
	}
	sortInfos(infos)
	return infos, nil
}

// getListed fetches a listed object, skipping keys that are not records or
// that vanished since the listing.
func (s *S3Store) getListed(ctx context.Context, name, file string) (*Snapshot, error) {
	version, ok := strings.CutSuffix(file, snapshotExt)
	if !ok || validateKey(name, version) != nil {
		return nil, nil
	}
	snapshot, err := s.Get(ctx, name, version)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, nil
	}
	return snapshot, err
}

// Delete implements SnapshotWriter.Delete
func (s *S3Store) Delete(ctx context.Context, name, version string) error {
	if err := validateKey(name, version); err != nil {
		return err
	}
	key := s.key(name, version)
	ctx, span := s.startSpan(ctx, "DeleteObject", key)
	defer span.End()

	// DeleteObject succeeds for missing keys, so check first.
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return notFound(name, version)
	} else if err != nil {
		return fail(span, fmt.Errorf("failed to check object existence: %w", err))
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fail(span, fmt.Errorf("failed to delete object: %w", err))
	}
	return nil
}

// Ping verifies S3 connectivity
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Close implements SnapshotStore.Close
func (s *S3Store) Close() error { return nil }

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func isPreconditionFailed(err error) bool {
	var apiErr interface{ ErrorCode() string }
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
