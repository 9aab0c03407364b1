package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	PresignTTL      time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads images to a bucket. Receipts keep the s3://bucket/key
// reference; URL presigns it on demand so private objects stay fetchable.
type S3Store struct {
	client    objectPutter
	presign   func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	bucket    string
	keyPrefix string
	ttl       time.Duration
	logger    *slog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(client)

	return newS3Store(client, func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
		req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}, cfg, logger), nil
}

func newS3Store(client objectPutter, presign func(context.Context, string, string, time.Duration) (string, error), cfg S3Config, logger *slog.Logger) *S3Store {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Store{
		client:    client,
		presign:   presign,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *S3Store) Put(ctx context.Context, userID int64, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}

	key := path.Join(s.keyPrefix, fmt.Sprintf("%d", userID), uuid.NewString()+extensionFor(contentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.Debug("receipt image stored", "bucket", s.bucket, "key", key, "size", len(data))
	return s.ref(key), nil
}

// URL presigns a reference to this bucket. Anything else, such as the
// seeder's placeholder, is returned unchanged.
func (s *S3Store) URL(ctx context.Context, ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, s.ref(""))
	if !ok {
		return ref, nil
	}
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	url, err := s.presign(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return url, nil
}

func (s *S3Store) ref(key string) string {
	return "s3://" + s.bucket + "/" + key
}
