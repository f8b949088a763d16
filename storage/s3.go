package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/keymaster/interfaces"
)

// S3Store implements a secret store on Amazon S3 or a compatible service.
// Objects are written private with server-side encryption; the key is
// <prefix>/<itemID>/<account> with both elements URL-escaped.
type S3Store struct {
	client      s3iface.S3API
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// S3StoreConfig configures an S3Store.
type S3StoreConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// Static credentials; when empty the SDK's default chain applies
	// (environment, shared config, instance role).
	AccessKey string
	SecretKey string
}

// NewS3Store creates an S3-backed store.
func NewS3Store(cfg S3StoreConfig, log *slog.Logger) (*S3Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", interfaces.ErrInvalidLocationURI)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3StoreWithClient(s3.New(sess), cfg, log), nil
}

func newS3StoreWithClient(client s3iface.S3API, cfg S3StoreConfig, log *slog.Logger) *S3Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	uri := fmt.Sprintf("s3://%s/%s?region=%s", cfg.Bucket, prefix, cfg.Region)
	if cfg.Endpoint != "" {
		uri += "&endpoint=" + url.QueryEscape(cfg.Endpoint)
	}

	return &S3Store{
		client:      client,
		bucketName:  cfg.Bucket,
		prefix:      prefix,
		log:         log,
		locationURI: uri,
	}
}

// Get downloads an item.
func (s *S3Store) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	start := time.Now()
	key := s.objectKey(itemID, account)

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, interfaces.ErrItemNotFound
		}
		s.log.Error("Failed to get object from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.log.Debug("Fetched item from S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

// Put uploads an item, replacing any previous object.
func (s *S3Store) Put(ctx context.Context, itemID, account string, data []byte) error {
	key := s.objectKey(itemID, account)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucketName),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ACL:                  aws.String(s3.ObjectCannedACLPrivate),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		s.log.Error("Failed to upload object to S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", key),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Debug("Stored item in S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", key))
	return nil
}

// Delete removes an item. S3 deletes are idempotent, so the object is
// checked first to report ErrItemNotFound.
func (s *S3Store) Delete(ctx context.Context, itemID, account string) error {
	key := s.objectKey(itemID, account)

	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return interfaces.ErrItemNotFound
		}
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	if _, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Available checks if the bucket is reachable.
func (s *S3Store) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		s.log.Warn("S3 store unavailable",
			slog.String("bucket", s.bucketName),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

// LocationURI returns the URI that identifies this store.
func (s *S3Store) LocationURI() string {
	return s.locationURI
}

func (s *S3Store) objectKey(itemID, account string) string {
	return path.Join(s.prefix, escapePathElement(itemID), escapePathElement(account))
}

// isS3NotFound matches NoSuchKey from GetObject and the bare 404 HeadObject
// returns.
func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == 404 {
		return true
	}
	return false
}
