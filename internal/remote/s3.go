package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Benioh/reflection-journal/internal/models"
)

// S3Config holds the settings for an S3-compatible snapshot store.
// BaseEndpoint is optional and points at MinIO or another compatible
// backend; leave it empty for AWS itself.
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// S3Store keeps snapshots in an S3-compatible bucket using the same key
// layout as the GitHub backend. Optimistic concurrency rides on conditional
// writes: PutObject with If-Match of the last seen ETag (or If-None-Match: *
// for the first write) fails with PreconditionFailed when the object
// changed, which maps to ErrConflict.
type S3Store struct {
	client *s3.Client
	bucket string

	mu        sync.Mutex
	reachable bool
}

// NewS3Store builds a store from static credentials.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return ErrNotFound
		case "PreconditionFailed":
			return ErrConflict
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return ErrUnauthorized
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *S3Store) IsConfigured(ctx context.Context) bool {
	if s == nil || s.bucket == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reachable {
		return true
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return false
	}
	s.reachable = true
	return true
}

// latestSnapshotKey returns the newest snapshot object, or nil when there
// is none. Key names sort chronologically, so the maximum key wins.
func (s *S3Store) latestSnapshotObject(ctx context.Context) (key string, lastModified time.Time, etag string, err error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(snapshotPrefix),
	})
	if err != nil {
		return "", time.Time{}, "", mapS3Error(err)
	}

	for _, obj := range out.Contents {
		k := aws.ToString(obj.Key)
		if !isSnapshotName(k) {
			continue
		}
		if key == "" || k > key {
			key = k
			lastModified = aws.ToTime(obj.LastModified)
			etag = aws.ToString(obj.ETag)
		}
	}
	return key, lastModified, etag, nil
}

func (s *S3Store) LatestModifiedTime(ctx context.Context) (time.Time, bool, error) {
	key, lastModified, _, err := s.latestSnapshotObject(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	return lastModified, true, nil
}

func (s *S3Store) ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	key, _, _, err := s.latestSnapshotObject(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return &snap, nil
}

func (s *S3Store) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := snapshotName(time.Now())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}

	// Condition the write on the revision we last saw.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch mapped := mapS3Error(err); {
	case err == nil:
		input.IfMatch = head.ETag
	case errors.Is(mapped, ErrNotFound):
		input.IfNoneMatch = aws.String("*")
	default:
		return mapped
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return mapS3Error(err)
	}
	return nil
}

func (s *S3Store) AppendDeletionBackup(ctx context.Context, b *models.DeletionBackup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deletion backup: %w", err)
	}

	key := deletionBackupKey(b.Record.ID, b.DeletedAt)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

func (s *S3Store) ListDeletionBackups(ctx context.Context) ([]string, error) {
	keys := []string{}

	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(deletionNamespace + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			mapped := mapS3Error(err)
			if errors.Is(mapped, ErrNotFound) {
				return keys, nil
			}
			return nil, mapped
		}

		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}
