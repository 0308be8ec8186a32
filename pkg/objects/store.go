package objects

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

// DefaultPresignTTL is how long a published URL stays valid.
const DefaultPresignTTL = 15 * time.Minute

// S3Client abstracts the S3 API operations used by [Store].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is satisfied by [s3.PresignClient].
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config describes an S3-compatible endpoint. Endpoint may be empty for AWS.
type Config struct {
	Endpoint        string        `json:"endpoint" yaml:"endpoint"`
	Region          string        `json:"region" yaml:"region"`
	Bucket          string        `json:"bucket" yaml:"bucket"`
	Prefix          string        `json:"prefix" yaml:"prefix"`
	AccessKeyID     string        `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" yaml:"secret_access_key"`
	PathStyle       bool          `json:"path_style" yaml:"path_style"`
	PresignTTL      time.Duration `json:"presign_ttl" yaml:"presign_ttl"`
}

// NewS3Client builds an S3 client from static credentials.
func NewS3Client(cfg Config) *s3.Client {
	return s3.New(s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				Source:          "memoflux",
			}, nil
		}),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// Store uploads images into a bucket under content-addressed keys.
type Store struct {
	client  S3Client
	presign Presigner
	bucket  string
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger
}

// New creates a Store. presign may be nil, in which case Publish fails.
func New(client S3Client, presign Presigner, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &Store{
		client:  client,
		presign: presign,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		ttl:     ttl,
		logger:  logger,
	}
}

// NewFromConfig wires a Store to a real S3 endpoint.
func NewFromConfig(cfg Config, logger *slog.Logger) *Store {
	c := NewS3Client(cfg)
	return New(c, s3.NewPresignClient(c), cfg, logger)
}

// Key returns the object key for img.
func (s *Store) Key(img extract.Image) string {
	sum := sha256.Sum256(img.Data)
	name := hex.EncodeToString(sum[:]) + "." + extension(img.MIMEType)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads img unless an object with the same key already exists and
// returns the key.
func (s *Store) Put(ctx context.Context, img extract.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("objects: put: %w", ErrNotImage)
	}
	key := s.Key(img)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return key, nil
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("objects: head %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.MIMEType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("objects: put %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "image uploaded", "key", key, "bytes", len(img.Data))
	return key, nil
}

// Publish uploads img and returns a presigned GET URL for it.
func (s *Store) Publish(ctx context.Context, img extract.Image) (string, error) {
	if s.presign == nil {
		return "", errors.New("objects: no presigner configured")
	}
	key, err := s.Put(ctx, img)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("objects: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes the object for key. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// isNotFound reports whether err indicates the S3 object does not exist.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
